package users

import (
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
	"edms/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetMailer struct {
	urls []string
	err  error
}

func (m *fakeResetMailer) SendPasswordReset(_ context.Context, _ *models.User, url string) error {
	if m.err != nil {
		return m.err
	}
	m.urls = append(m.urls, url)
	return nil
}

type fixture struct {
	store  *memory.Store
	mailer *fakeResetMailer
	tokens *auth.HMACTokens
	svc    *userService
	admin  *models.User
	staff  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	tokens, err := auth.NewHMACTokens(strings.Repeat("k", 32), time.Hour, logger)
	require.NoError(t, err)

	f := &fixture{store: store, mailer: &fakeResetMailer{}, tokens: tokens}
	f.svc = NewService(
		store.Users(),
		store.Documents(),
		store.PasswordResets(),
		store.TransactionManager(),
		tokens,
		f.mailer,
		"https://edms.example.com/",
		logger,
	).(*userService)

	hash, err := auth.HashPassword("admin-password")
	require.NoError(t, err)
	f.admin = &models.User{Email: "admin@example.com", FullName: "Admin", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, store.Users().Create(context.Background(), f.admin))

	f.staff, err = f.svc.Register(context.Background(), &services.RegisterRequest{
		Email: "Bob@Example.com", FullName: "Bob", Password: "bob-password", PasswordConfirm: "bob-password",
	})
	require.NoError(t, err)
	return f
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "bob@example.com", f.staff.Email)
	assert.Equal(t, models.RoleStaff, f.staff.Role)
	assert.True(t, f.staff.EmailNotifications)

	tests := []struct {
		name string
		req  services.RegisterRequest
		want error
	}{
		{"bad email", services.RegisterRequest{Email: "nope", Password: "password1", PasswordConfirm: "password1"}, domain.ErrValidation},
		{"short password", services.RegisterRequest{Email: "c@example.com", Password: "short", PasswordConfirm: "short"}, domain.ErrValidation},
		{"mismatch", services.RegisterRequest{Email: "c@example.com", Password: "password1", PasswordConfirm: "password2"}, domain.ErrValidation},
		{"duplicate", services.RegisterRequest{Email: "BOB@example.com", Password: "password1", PasswordConfirm: "password1"}, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, &services.LoginRequest{Email: "bob@example.com", Password: "bob-password"})
	require.NoError(t, err)
	require.NotNil(t, resp.User.LastLogin)

	claims, err := f.tokens.VerifyToken(resp.Token)
	require.NoError(t, err)
	id, err := claims.GetUserID()
	require.NoError(t, err)
	assert.Equal(t, f.staff.ID, id)

	_, err = f.svc.Login(ctx, &services.LoginRequest{Email: "bob@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.Login(ctx, &services.LoginRequest{Email: "ghost@example.com", Password: "bob-password"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	inactive := false
	_, err = f.svc.UpdateUser(ctx, f.admin, f.staff.ID, &services.UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, &services.LoginRequest{Email: "bob@example.com", Password: "bob-password"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Robert"
	off := false
	user, err := f.svc.UpdateProfile(ctx, f.staff, &services.UpdateProfileRequest{FullName: &name, EmailNotifications: &off})
	require.NoError(t, err)
	assert.Equal(t, "Robert", user.FullName)
	assert.False(t, user.EmailNotifications)

	_, err = f.svc.UpdateProfile(ctx, f.staff, &services.UpdateProfileRequest{NewPassword: "new-password", PasswordConfirm: "other-password"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateProfile(ctx, f.staff, &services.UpdateProfileRequest{NewPassword: "new-password", PasswordConfirm: "new-password"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, &services.LoginRequest{Email: "bob@example.com", Password: "new-password"})
	assert.NoError(t, err)
}

func TestAdminOperations_RequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListUsers(ctx, f.staff)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.CreateUser(ctx, f.staff, &services.CreateUserRequest{Email: "x@example.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	admin := "admin"
	_, err = f.svc.UpdateUser(ctx, f.staff, f.staff.ID, &services.UpdateUserRequest{Role: &admin})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, f.staff, f.admin.ID), domain.ErrForbidden)
	_, err = f.svc.ToggleEmailNotifications(ctx, f.staff, f.staff.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	carol, err := f.svc.CreateUser(ctx, f.admin, &services.CreateUserRequest{
		Email: "carol@example.com", FullName: "Carol", Role: "Администратор", Password: "carol-password",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, carol.Role)

	_, err = f.svc.CreateUser(ctx, f.admin, &services.CreateUserRequest{Email: "d@example.com", Role: "boss", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	staff := "staff"
	carol, err = f.svc.UpdateUser(ctx, f.admin, carol.ID, &services.UpdateUserRequest{Role: &staff})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, carol.Role)

	_, err = f.svc.UpdateUser(ctx, f.admin, f.admin.ID, &services.UpdateUserRequest{Role: &staff})
	assert.ErrorIs(t, err, domain.ErrValidation)

	toggled, err := f.svc.ToggleEmailNotifications(ctx, f.admin, f.staff.ID)
	require.NoError(t, err)
	assert.False(t, toggled.EmailNotifications)

	all, err := f.svc.ListUsers(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, f.svc.DeleteUser(ctx, f.admin, f.admin.ID), domain.ErrValidation)
	require.NoError(t, f.svc.DeleteUser(ctx, f.admin, carol.ID))
	_, err = f.store.Users().GetByID(ctx, carol.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListUserDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Documents().Create(ctx, &models.Document{Title: "Bob's", OwnerID: f.staff.ID}))
	require.NoError(t, f.store.Documents().Create(ctx, &models.Document{Title: "Admin's", OwnerID: f.admin.ID}))

	docs, err := f.svc.ListUserDocuments(ctx, f.admin, f.staff.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Bob's", docs[0].Title)

	_, err = f.svc.ListUserDocuments(ctx, f.admin, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.RequestPasswordReset(ctx, &services.PasswordResetRequest{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, &services.PasswordResetRequest{Email: "BOB@example.com"}))
	require.Len(t, f.mailer.urls, 1)
	require.True(t, strings.HasPrefix(f.mailer.urls[0], "https://edms.example.com/password-reset/"))
	token := strings.TrimPrefix(f.mailer.urls[0], "https://edms.example.com/password-reset/")

	req := &services.PasswordResetConfirmRequest{Password: "fresh-password", PasswordConfirm: "fresh-password"}
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, req))
	_, err = f.svc.Login(ctx, &services.LoginRequest{Email: "bob@example.com", Password: "fresh-password"})
	require.NoError(t, err)

	// Tokens are single use
	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, token, req), domain.ErrValidation)
	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, "garbage", req), domain.ErrValidation)
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := uuid.New()
	past := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, f.store.PasswordResets().Create(ctx, &models.PasswordResetToken{
		Token: token, UserID: f.staff.ID, CreatedAt: past, ExpiresAt: past.Add(time.Hour),
	}))

	err := f.svc.ConfirmPasswordReset(ctx, token.String(), &services.PasswordResetConfirmRequest{Password: "fresh-password", PasswordConfirm: "fresh-password"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPasswordReset_EmailFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	err := f.svc.RequestPasswordReset(context.Background(), &services.PasswordResetRequest{Email: "bob@example.com"})
	assert.Error(t, err)
}
