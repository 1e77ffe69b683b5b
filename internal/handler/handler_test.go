package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edms/internal/auth"
	"edms/internal/domain/models"
	"edms/internal/metrics"
	"edms/internal/middleware"
	"edms/internal/repository/memory"
	"edms/internal/service/documents"
	"edms/internal/service/notify"
	"edms/internal/service/transfer"
	"edms/internal/service/users"
	"edms/internal/storage"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type discardOutbox struct{}

func (discardOutbox) Enqueue(context.Context, notify.Message) error { return nil }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type stubDumper struct{}

func (stubDumper) Dump(context.Context, io.Writer) error { return transfer.ErrDumpUnavailable }

type apiFixture struct {
	server  http.Handler
	store   *memory.Store
	metrics *metrics.Metrics

	adminToken, aliceToken, bobToken string
	alice, bob                       *models.User
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	m := metrics.NewNop()

	tokens, err := auth.NewHMACTokens(strings.Repeat("s", 32), 0, logger)
	require.NoError(t, err)

	catalog, err := notify.LoadCatalog()
	require.NoError(t, err)
	dispatcher := notify.NewDispatcher(store.Notifications(), discardOutbox{}, catalog, m, logger, "https://edms.example.com")

	userSvc := users.NewService(store.Users(), store.Documents(), store.PasswordResets(), store.TransactionManager(),
		tokens, dispatcher, "https://edms.example.com", logger)
	docSvc := documents.NewDocumentService(store.Documents(), store.Signatures(), store.DocumentLogs(), store.Users(),
		store.TransactionManager(), dispatcher, storage.Disabled{}, logger)
	activitySvc := documents.NewActivityService(store.Documents(), store.DocumentLogs(), store.Notifications(), store.Users(), logger)
	transferSvc := transfer.NewService(store.Users(), store.Documents(), store.Signatures(), store.DocumentLogs(),
		store.TransactionManager(), transfer.NewRegistry(), stubDumper{}, m, logger)

	h := &Handlers{
		Health:   NewHealthHandler(fakePinger{}, logger),
		Auth:     NewAuthHandler(userSvc, logger),
		Users:    NewUserHandler(userSvc, logger),
		Docs:     NewDocumentHandler(docSvc, logger),
		Activity: NewActivityHandler(activitySvc, logger),
		Transfer: NewTransferHandler(transferSvc, logger),
	}
	mux := http.NewServeMux()
	h.Register(mux)

	var server http.Handler = mux
	server = middleware.AuthMiddleware(tokens, store.Users(), PublicPaths, logger)(server)
	server = middleware.Metrics(m, mux)(server)
	server = middleware.Recovery(logger, mux)(server)

	f := &apiFixture{server: server, store: store, metrics: m}
	mk := func(email string, role models.Role) (*models.User, string) {
		hash, err := auth.HashPassword("password1")
		require.NoError(t, err)
		u := &models.User{Email: email, FullName: email, Role: role, PasswordHash: hash, IsActive: true}
		require.NoError(t, store.Users().Create(ctx, u))
		token, _, err := tokens.Issue(u)
		require.NoError(t, err)
		return u, token
	}
	_, f.adminToken = mk("admin@example.com", models.RoleAdmin)
	f.alice, f.aliceToken = mk("alice@example.com", models.RoleStaff)
	f.bob, f.bobToken = mk("bob@example.com", models.RoleStaff)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) upload(t *testing.T, path, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_Authentication(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/documents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = f.do(t, http.MethodGet, "/api/documents", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("login", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "password1",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[struct {
			Token string `json:"token"`
		}](t, rec)

		rec = f.do(t, http.MethodGet, "/api/profile", resp.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		profile := decode[map[string]any](t, rec)
		assert.Equal(t, "alice@example.com", profile["email"])
		assert.NotContains(t, profile, "password_hash")
	})

	t.Run("bad credentials", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deactivated user loses access", func(t *testing.T) {
		bob, err := f.store.Users().GetByID(context.Background(), f.bob.ID)
		require.NoError(t, err)
		bob.IsActive = false
		require.NoError(t, f.store.Users().Update(context.Background(), bob))

		rec := f.do(t, http.MethodGet, "/api/profile", f.bobToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAPI_RegisterValidation(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "new@example.com", "full_name": "New", "password": "password1", "password_confirm": "password2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decode[map[string]any](t, rec)
	assert.Contains(t, problem, "fields")

	rec = f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "new@example.com", "full_name": "New", "password": "password1", "password_confirm": "password1",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "NEW@example.com", "full_name": "New", "password": "password1", "password_confirm": "password1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_DocumentWorkflow(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/documents", f.aliceToken, map[string]any{
		"title": "Contract", "recipient_ids": []int64{f.bob.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[models.Document](t, rec)
	assert.Equal(t, models.StatusSent, doc.Status)
	docPath := fmt.Sprintf("/api/documents/%d", doc.ID)

	rec = f.do(t, http.MethodGet, "/api/documents/received", f.bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.DocumentListItem](t, rec), 1)

	rec = f.do(t, http.MethodPatch, docPath, f.bobToken, map[string]string{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, docPath+"/comments", f.bobToken, map[string]string{"comment": "Looks good"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, docPath+"/sign", f.bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusSigned, decode[models.Document](t, rec).Status)

	rec = f.do(t, http.MethodPost, docPath+"/sign", f.bobToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "signature", decode[map[string]any](t, rec)["resource_type"])

	rec = f.do(t, http.MethodGet, docPath+"/logs", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.DocumentLog](t, rec), 3)

	rec = f.do(t, http.MethodGet, "/api/notifications/check", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/documents/abc", f.aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/documents/999", f.aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, docPath, f.aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues(http.MethodDelete, "DELETE /api/documents/{id}", "204")))
}

func TestAPI_FilesWithoutStorage(t *testing.T) {
	f := newAPI(t)

	rec := f.upload(t, "/api/files", f.aliceToken, "contract.pdf", "%PDF-1.4")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_AdminRoutes(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/admin/users", f.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/users", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, rec), 3)

	t.Run("export", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/admin/export/users?format=csv", f.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.True(t, strings.HasPrefix(rec.Body.String(), "ID,Email,Full Name,Role,Date Joined,Temp Password"))

		rec = f.do(t, http.MethodGet, "/api/admin/export/users?format=xlsx", f.adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("import", func(t *testing.T) {
		csv := "Email,Full Name,Role\ncarol@example.com,Carol,staff\nbroken,Broken,staff\n"
		rec := f.upload(t, "/api/admin/import/users", f.adminToken, "users.csv", csv)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[ImportResponse](t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, 1, resp.Summary.Created)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, 3, resp.Errors[0].Line)
	})

	t.Run("dump unavailable", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/admin/dump", f.adminToken, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHealthCheck_Degraded(t *testing.T) {
	h := NewHealthHandler(fakePinger{err: errors.New("connection refused")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
