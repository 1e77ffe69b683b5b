package models

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the access token payload. The subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// GetUserID returns the numeric user ID from the subject claim
func (c *Claims) GetUserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// PasswordResetToken is a single-use password reset link
type PasswordResetToken struct {
	Token     uuid.UUID `json:"token" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// IsValid reports whether the token is still usable at the given time
func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}
