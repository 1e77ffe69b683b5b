package repositories

import (
	"context"

	"edms/internal/domain/models"
)

// DocumentLogRepository is the append-only audit trail
type DocumentLogRepository interface {
	Append(ctx context.Context, entry *models.DocumentLog) error

	// List returns entries matching the filter, newest first
	List(ctx context.Context, filter models.LogFilter) ([]models.DocumentLog, error)

	// ListCommentsOnOwned returns the latest comments on documents owned by ownerID
	ListCommentsOnOwned(ctx context.Context, ownerID int64, limit int) ([]models.DocumentLog, error)
}
