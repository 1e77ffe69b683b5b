package repositories

import (
	"context"

	"edms/internal/domain/models"
)

// DocumentRepository defines data access operations for documents and
// their recipient relation
type DocumentRepository interface {
	// Create inserts a document. A non-zero doc.ID is kept as is (imports);
	// otherwise the database assigns one.
	Create(ctx context.Context, doc *models.Document) error

	GetByID(ctx context.Context, id int64) (*models.Document, error)

	// GetForUpdate reads a document and locks it until the surrounding
	// transaction ends. Every change to recipients or signatures takes
	// this lock first.
	GetForUpdate(ctx context.Context, id int64) (*models.Document, error)

	// Update saves title and file key
	Update(ctx context.Context, doc *models.Document) error

	// UpdateStatus persists a recomputed status
	UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus) error

	// Delete removes the document and everything that references it
	Delete(ctx context.Context, id int64) error

	// List returns documents matching the filter, newest first
	List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentListItem, error)

	// CountByStatus counts documents per status, optionally scoped by filter
	CountByStatus(ctx context.Context, filter models.DocumentFilter) (map[models.DocumentStatus]int, error)

	// SyncIDSequence moves the id sequence past the highest stored id
	SyncIDSequence(ctx context.Context) error

	// ListRecipients returns the recipients of a document ordered by name
	ListRecipients(ctx context.Context, documentID int64) ([]models.User, error)

	// AddRecipient adds the relation; adding an existing recipient is a no-op
	AddRecipient(ctx context.Context, documentID, userID int64) error

	// RemoveRecipient removes the relation together with its signature
	RemoveRecipient(ctx context.Context, documentID, userID int64) error

	IsRecipient(ctx context.Context, documentID, userID int64) (bool, error)
}
