package services

import (
	"context"
	"time"

	"edms/internal/domain/models"
)

// AuthService handles registration, login and password resets
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)

	// RequestPasswordReset emails a reset link to the account with the given email
	RequestPasswordReset(ctx context.Context, req *PasswordResetRequest) error

	// ConfirmPasswordReset sets a new password using a reset token. The
	// token is consumed.
	ConfirmPasswordReset(ctx context.Context, token string, req *PasswordResetConfirmRequest) error
}

// UserService handles profiles and user administration
type UserService interface {
	GetProfile(ctx context.Context, actor *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, actor *models.User, req *UpdateProfileRequest) (*models.User, error)

	// Admin operations
	ListUsers(ctx context.Context, actor *models.User) ([]models.User, error)
	CreateUser(ctx context.Context, actor *models.User, req *CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, actor *models.User, id int64, req *UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.User, id int64) error
	ToggleEmailNotifications(ctx context.Context, actor *models.User, id int64) (*models.User, error)
	ListUserDocuments(ctx context.Context, actor *models.User, id int64) ([]models.DocumentListItem, error)
}

type RegisterRequest struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// UpdateProfileRequest changes the caller's own profile. Password is
// changed only when NewPassword is set.
type UpdateProfileRequest struct {
	FullName           *string `json:"full_name,omitempty"`
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
	NewPassword        string  `json:"new_password,omitempty"`
	PasswordConfirm    string  `json:"password_confirm,omitempty"`
}

type CreateUserRequest struct {
	Email              string `json:"email"`
	FullName           string `json:"full_name"`
	Role               string `json:"role"`
	Password           string `json:"password"`
	EmailNotifications *bool  `json:"email_notifications,omitempty"`
}

type UpdateUserRequest struct {
	Email              *string `json:"email,omitempty"`
	FullName           *string `json:"full_name,omitempty"`
	Role               *string `json:"role,omitempty"`
	IsActive           *bool   `json:"is_active,omitempty"`
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
	Password           string  `json:"password,omitempty"`
}
