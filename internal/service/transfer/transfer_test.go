package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"edms/internal/auth"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/services"
	"edms/internal/metrics"
	"edms/internal/repository/memory"
	"edms/internal/service/workflow"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDumper struct {
	called bool
}

func (d *fakeDumper) Dump(_ context.Context, w io.Writer) error {
	d.called = true
	_, err := io.WriteString(w, "-- dump\n")
	return err
}

type fixture struct {
	store   *memory.Store
	metrics *metrics.Metrics
	dumper  *fakeDumper
	svc     services.TransferService

	admin, alice, bob *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{store: store, metrics: metrics.NewNop(), dumper: &fakeDumper{}}
	mk := func(email, name string, role models.Role) *models.User {
		u := &models.User{Email: email, FullName: name, Role: role, IsActive: true, EmailNotifications: true}
		require.NoError(t, store.Users().Create(ctx, u))
		return u
	}
	f.admin = mk("admin@example.com", "Admin", models.RoleAdmin)
	f.alice = mk("alice@example.com", "Alice", models.RoleStaff)
	f.bob = mk("bob@example.com", "Bob", models.RoleStaff)

	f.svc = NewService(
		store.Users(),
		store.Documents(),
		store.Signatures(),
		store.DocumentLogs(),
		store.TransactionManager(),
		NewRegistry(),
		f.dumper,
		f.metrics,
		logger,
	)
	return f
}

// document creates a document owned by owner with the given recipients
func (f *fixture) document(t *testing.T, owner *models.User, title string, recipients ...*models.User) *models.Document {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{Title: title, OwnerID: owner.ID}
	require.NoError(t, f.store.Documents().Create(ctx, doc))

	lifecycle := workflow.NewLifecycle(f.store.Documents(), f.store.Signatures(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ids := []int64{}
	for _, r := range recipients {
		ids = append(ids, r.ID)
	}
	_, err := lifecycle.AddRecipients(ctx, doc.ID, ids)
	require.NoError(t, err)
	_, err = lifecycle.Refresh(ctx, doc)
	require.NoError(t, err)
	return doc
}

func (f *fixture) rows(entity, result string) float64 {
	return testutil.ToFloat64(f.metrics.ImportRows.WithLabelValues(entity, result))
}

func TestImportUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := "ID,Email,Full Name,Role,Date Joined,Temp Password\n" +
		"1,admin@example.com,Someone Else,staff,2020-01-01 00:00,\n" +
		"2,Carol@Example.com,Carol New,Сотрудник,2021-06-01 12:00:00,carolpass1\n" +
		"3,bob@example.com,Robert,superuser,,bobnewpass\n" +
		"4,not-an-email,Broken,staff,,\n" +
		"5,dan@example.com,Dan,admin,,short\n" +
		"6,erin@example.com,Erin\n"

	result, err := f.svc.Import(ctx, f.admin, services.EntityUsers, "users.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, services.ImportSummary{Created: 1, Updated: 1, Skipped: 1, Failed: 3, TotalRows: 6}, result.Summary)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, 5, result.Errors[0].Line)
	assert.Equal(t, "not-an-email", result.Errors[0].Key)
	assert.Equal(t, 6, result.Errors[1].Line)
	assert.Contains(t, result.Errors[1].Error, "at least 8")
	assert.Equal(t, 7, result.Errors[2].Line)

	t.Run("own row is skipped", func(t *testing.T) {
		admin, err := f.store.Users().GetByID(ctx, f.admin.ID)
		require.NoError(t, err)
		assert.Equal(t, "Admin", admin.FullName)
		assert.Equal(t, models.RoleAdmin, admin.Role)
	})

	t.Run("new user", func(t *testing.T) {
		carol, err := f.store.Users().GetByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Carol New", carol.FullName)
		assert.Equal(t, models.RoleStaff, carol.Role)
		assert.True(t, carol.IsActive)
		assert.Equal(t, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC), carol.DateJoined.UTC())
		assert.True(t, auth.CheckPassword(carol.PasswordHash, "carolpass1"))
	})

	t.Run("existing user updated", func(t *testing.T) {
		bob, err := f.store.Users().GetByID(ctx, f.bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "Robert", bob.FullName)
		assert.Equal(t, models.RoleStaff, bob.Role, "unknown role falls back to staff")
		assert.True(t, auth.CheckPassword(bob.PasswordHash, "bobnewpass"))
	})

	assert.Equal(t, float64(1), f.rows("users", "created"))
	assert.Equal(t, float64(3), f.rows("users", "failed"))
}

func TestImportUsers_SQL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	script := "-- exported users\n" +
		"INSERT INTO users_user (id, email, full_name, role, date_joined, password) VALUES (9, 'frank@example.com', 'Frank O''Hara', 'Администратор', '2022-01-01 10:00:00', 'frankpass');\n"

	result, err := f.svc.Import(ctx, f.admin, services.EntityUsers, "legacy.SQL", strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Created)
	assert.Empty(t, result.Errors)

	frank, err := f.store.Users().GetByEmail(ctx, "frank@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Frank O'Hara", frank.FullName)
	assert.Equal(t, models.RoleAdmin, frank.Role)
}

func TestImportDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := f.document(t, f.alice, "Existing", f.bob)
	_, err := f.store.Signatures().MarkSigned(ctx, existing.ID, f.bob.ID, time.Now())
	require.NoError(t, err)

	input := "ID,Title,Status,Owner,Recipients,Created At\n" +
		"50,Imported Contract,draft,alice@example.com,bob@example.com,2023-03-03 03:03:03\n" +
		"51,No Recipients,signed,bob@example.com,,\n" +
		",Orphan,draft,,,\n" +
		"52,Ghost,sent,alice@example.com,ghost@example.com,\n" +
		"1,Existing Renamed,draft,alice@example.com,bob@example.com,\n" +
		"1,Stolen,draft,bob@example.com,,\n" +
		"53,,draft,alice@example.com,,\n"

	result, err := f.svc.Import(ctx, f.admin, services.EntityDocuments, "documents.csv", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, services.ImportSummary{Created: 2, Updated: 1, Failed: 4, TotalRows: 7}, result.Summary)

	errs := map[int]services.ImportError{}
	for _, e := range result.Errors {
		errs[e.Line] = e
	}
	assert.Contains(t, errs[4].Error, "owner is required")
	assert.Equal(t, "Orphan", errs[4].Key)
	assert.Contains(t, errs[5].Error, "ghost@example.com")
	assert.Equal(t, "52", errs[5].Key)
	assert.Contains(t, errs[7].Error, "cannot change")
	assert.Contains(t, errs[8].Error, "title")

	t.Run("status is recomputed", func(t *testing.T) {
		doc, err := f.store.Documents().GetByID(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, doc.Status)
		assert.Equal(t, f.alice.ID, doc.OwnerID)
		assert.Equal(t, time.Date(2023, 3, 3, 3, 3, 3, 0, time.UTC), doc.CreatedAt.UTC())

		doc, err = f.store.Documents().GetByID(ctx, 51)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, doc.Status)
	})

	t.Run("update keeps signatures", func(t *testing.T) {
		doc, err := f.store.Documents().GetByID(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, "Existing Renamed", doc.Title)
		assert.Equal(t, models.StatusSigned, doc.Status)
	})

	t.Run("failed rows leave no trace", func(t *testing.T) {
		_, err := f.store.Documents().GetByID(ctx, 52)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("audit entries", func(t *testing.T) {
		logs, err := f.store.DocumentLogs().List(ctx, models.LogFilter{DocumentID: ptr(int64(50))})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.ActionCreate, logs[0].Action)
		assert.Equal(t, importComment, logs[0].Comment)
		assert.Equal(t, f.admin.ID, logs[0].UserID)
	})

	t.Run("ids continue after imported ones", func(t *testing.T) {
		doc := &models.Document{Title: "Next", OwnerID: f.alice.ID}
		require.NoError(t, f.store.Documents().Create(ctx, doc))
		assert.Equal(t, int64(52), doc.ID)
	})
}

func TestImport_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, f.alice, services.EntityUsers, "users.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Import(ctx, f.admin, services.EntityUsers, "users.xlsx", strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Import(ctx, f.admin, services.EntityUsers, "users.csv", strings.NewReader("Name\nx\n"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Import(ctx, f.admin, "folders", "folders.csv", strings.NewReader("Email\n"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExportUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, f.admin, services.EntityUsers, services.FormatCSV, &buf))

	users, err := CSVCodec{}.DecodeUsers(&buf)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"admin@example.com", "alice@example.com", "bob@example.com"},
		[]string{users[0].Email, users[1].Email, users[2].Email})
	assert.Equal(t, "admin", users[0].Role)
	for _, u := range users {
		assert.NoError(t, u.Err)
		assert.Len(t, u.TempPassword, 8)
	}
	assert.NotEqual(t, users[1].TempPassword, users[2].TempPassword)

	err = f.svc.Export(ctx, f.alice, services.EntityUsers, services.FormatCSV, io.Discard)
	var forbidden *domain.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))

	err = f.svc.Export(ctx, f.admin, services.EntityUsers, "xml", io.Discard)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExportDocuments_RoundTrip(t *testing.T) {
	src := newFixture(t)
	ctx := context.Background()
	src.document(t, src.alice, "Lease; 2024", src.bob)
	src.document(t, src.bob, "Memo")

	var buf bytes.Buffer
	require.NoError(t, src.svc.Export(ctx, src.admin, services.EntityDocuments, services.FormatSQL, &buf))
	out := buf.String()
	assert.Contains(t, out, "'Lease; 2024'")
	assert.Contains(t, out, "INSERT INTO document_recipients (document_id, user_email) VALUES (1, 'bob@example.com');")

	dst := newFixture(t)
	result, err := dst.svc.Import(ctx, dst.admin, services.EntityDocuments, "documents.sql", strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.Created)
	assert.Empty(t, result.Errors)

	docs, err := dst.store.Documents().List(ctx, models.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	byTitle := map[string]models.DocumentListItem{}
	for _, d := range docs {
		byTitle[d.Title] = d
	}
	assert.Equal(t, models.StatusSent, byTitle["Lease; 2024"].Status)
	assert.Equal(t, models.StatusDraft, byTitle["Memo"].Status)
	assert.Equal(t, "bob@example.com", byTitle["Memo"].OwnerEmail)
}

func TestDumpDatabase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.DumpDatabase(ctx, f.bob, io.Discard)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.False(t, f.dumper.called)

	var buf bytes.Buffer
	require.NoError(t, f.svc.DumpDatabase(ctx, f.admin, &buf))
	assert.Equal(t, "-- dump\n", buf.String())
}

func TestPgDumper_MissingBinary(t *testing.T) {
	d := NewPgDumper("/nonexistent/pg_dump", "postgres://localhost/edms", slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := d.Dump(context.Background(), io.Discard)
	assert.ErrorIs(t, err, ErrDumpUnavailable)
}

func ptr[T any](v T) *T { return &v }
