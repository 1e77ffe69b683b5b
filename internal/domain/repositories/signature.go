package repositories

import (
	"context"
	"time"

	"edms/internal/domain/models"
)

// SignatureRepository defines data access operations for signatures
type SignatureRepository interface {
	// Ensure returns the signature for the pair, creating an unsigned one
	// if none exists
	Ensure(ctx context.Context, documentID, userID int64) (*models.Signature, error)

	// Get returns the signature for the pair or ErrNotFound
	Get(ctx context.Context, documentID, userID int64) (*models.Signature, error)

	ListByDocument(ctx context.Context, documentID int64) ([]models.Signature, error)

	// MarkSigned sets signed_at if it is not set yet. It reports false when
	// the signature was already signed.
	MarkSigned(ctx context.Context, documentID, userID int64, at time.Time) (bool, error)
}
