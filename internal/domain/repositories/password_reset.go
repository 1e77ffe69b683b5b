package repositories

import (
	"context"

	"github.com/google/uuid"

	"edms/internal/domain/models"
)

// PasswordResetRepository stores single-use password reset tokens
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Get(ctx context.Context, token uuid.UUID) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, token uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}
