// Package users implements accounts: registration, login, profiles,
// password resets and user administration.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"edms/internal/auth"
	"edms/internal/config"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/domain/services"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// userService implements both AuthService and UserService
type userService struct {
	userRepo  repositories.UserRepository
	docRepo   repositories.DocumentRepository
	resetRepo repositories.PasswordResetRepository
	txManager repositories.TransactionManager
	tokens    auth.TokenIssuer
	mailer    ResetMailer
	baseURL   string
	logger    *slog.Logger
	now       func() time.Time
}

// ResetMailer delivers password reset links
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error
}

// Service is the account service. It serves the public auth endpoints and
// the authenticated profile and admin endpoints.
type Service interface {
	services.AuthService
	services.UserService
}

// NewService creates the account service. baseURL prefixes password reset links.
func NewService(
	userRepo repositories.UserRepository,
	docRepo repositories.DocumentRepository,
	resetRepo repositories.PasswordResetRepository,
	txManager repositories.TransactionManager,
	tokens auth.TokenIssuer,
	mailer ResetMailer,
	baseURL string,
	logger *slog.Logger,
) Service {
	return &userService{
		userRepo:  userRepo,
		docRepo:   docRepo,
		resetRepo: resetRepo,
		txManager: txManager,
		tokens:    tokens,
		mailer:    mailer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validationErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

var (
	emailRules    = []validation.Rule{validation.Required, is.EmailFormat, validation.Length(1, 254)}
	fullNameRules = []validation.Rule{validation.Length(0, config.MaxFullNameLength)}
)

// checkNewPassword enforces the password rules on a new password and its
// confirmation
func checkNewPassword(password, confirm string) error {
	if len([]rune(password)) < config.MinPasswordLength {
		return &domain.ValidationError{
			Message: fmt.Sprintf("password must be at least %d characters", config.MinPasswordLength),
			Fields:  map[string]string{"password": "too short"},
		}
	}
	if password != confirm {
		return &domain.ValidationError{
			Message: "passwords do not match",
			Fields:  map[string]string{"password_confirm": "does not match"},
		}
	}
	return nil
}

func requireAdmin(actor *models.User) error {
	if !actor.IsAdmin() {
		return &domain.ForbiddenError{Message: "administrator role required"}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a staff account. Roles are only granted by admins.
func (s *userService) Register(ctx context.Context, req *services.RegisterRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	err := validation.ValidateStruct(req,
		validation.Field(&req.Email, emailRules...),
		validation.Field(&req.FullName, fullNameRules...),
		validation.Field(&req.Password, validation.Required),
	)
	if err != nil {
		return nil, validationErr(err)
	}
	if err := checkNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:              req.Email,
		FullName:           strings.TrimSpace(req.FullName),
		PasswordHash:       hash,
		Role:               models.RoleStaff,
		EmailNotifications: true,
		IsActive:           true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login checks credentials and issues an access token. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *userService) Login(ctx context.Context, req *services.LoginRequest) (*services.LoginResponse, error) {
	invalid := fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !user.IsActive || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("login failed", "user_id", user.ID)
		return nil, invalid
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &services.LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// RequestPasswordReset stores a single-use token and emails the link.
// Unknown emails are reported as not found.
func (s *userService) RequestPasswordReset(ctx context.Context, req *services.PasswordResetRequest) error {
	email := normalizeEmail(req.Email)
	if err := validation.Validate(email, emailRules...); err != nil {
		return validationErr(err)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.NotFoundError{Message: "no user with this email"}
		}
		return err
	}

	now := s.now()
	token := &models.PasswordResetToken{
		Token:     uuid.New(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(config.PasswordResetTTL),
	}
	if err := s.resetRepo.Create(ctx, token); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/password-reset/%s", s.baseURL, token.Token)
	if err := s.mailer.SendPasswordReset(ctx, user, resetURL); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ConfirmPasswordReset sets a new password. Expired or unknown tokens are
// rejected; a used token is deleted together with the password change.
// Expired tokens are left for DeleteExpired.
func (s *userService) ConfirmPasswordReset(ctx context.Context, rawToken string, req *services.PasswordResetConfirmRequest) error {
	token, err := uuid.Parse(rawToken)
	if err != nil {
		return &domain.ValidationError{Message: "reset link is invalid or has expired"}
	}
	if err := checkNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}

	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		stored, err := s.resetRepo.Get(txCtx, token)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.ValidationError{Message: "reset link is invalid or has expired"}
			}
			return err
		}
		if !stored.IsValid(s.now()) {
			return &domain.ValidationError{Message: "reset link is invalid or has expired"}
		}

		if err := s.userRepo.UpdatePassword(txCtx, stored.UserID, hash); err != nil {
			return err
		}
		if err := s.resetRepo.Delete(txCtx, token); err != nil {
			return err
		}
		s.logger.Info("password reset", "user_id", stored.UserID)
		return nil
	})
}
