package repositories

import (
	"context"
	"time"

	"edms/internal/domain/models"
)

// UserRepository defines data access operations for user accounts
type UserRepository interface {
	// Create inserts a user and fills in ID. A zero DateJoined defaults to now.
	// Returns ConflictError when the email is taken.
	Create(ctx context.Context, user *models.User) error

	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByEmail looks up a user by email, case-insensitively
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByIDs returns the users that exist among ids, in id order
	GetByIDs(ctx context.Context, ids []int64) ([]models.User, error)

	// List returns every user ordered by date joined, newest first
	List(ctx context.Context) ([]models.User, error)

	// Search matches email or full name, excluding the given user IDs
	Search(ctx context.Context, query string, exclude []int64, limit int) ([]models.User, error)

	// Update saves email, full name, role, notification flag and active flag
	Update(ctx context.Context, user *models.User) error

	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	Delete(ctx context.Context, id int64) error
}
