package services

import (
	"context"
	"io"

	"edms/internal/domain/models"
)

// DocumentService handles the document workflow. Every method takes the
// acting user explicitly; authorization is decided per call.
type DocumentService interface {
	// CreateDocument creates a document owned by actor and routes it to the recipients
	CreateDocument(ctx context.Context, actor *models.User, req *CreateDocumentRequest) (*models.Document, error)

	// UpdateDocument changes title, file and recipients. Owner or admin only.
	UpdateDocument(ctx context.Context, actor *models.User, id int64, req *UpdateDocumentRequest) (*models.Document, error)

	DeleteDocument(ctx context.Context, actor *models.User, id int64) error

	// SignDocument records actor's signature. Signing twice is a conflict.
	SignDocument(ctx context.Context, actor *models.User, id int64) (*models.Document, error)

	// AddComment appends a comment to the audit trail. Recipients only.
	AddComment(ctx context.Context, actor *models.User, id int64, req *CommentRequest) (*models.DocumentLog, error)

	GetDocument(ctx context.Context, actor *models.User, id int64) (*models.DocumentDetail, error)

	// ListDocuments lists every document for admins and owned documents otherwise
	ListDocuments(ctx context.Context, actor *models.User, req *ListDocumentsRequest) ([]models.DocumentListItem, error)

	// ListReceived lists documents where actor is a recipient
	ListReceived(ctx context.Context, actor *models.User) ([]models.DocumentListItem, error)

	// GetDocumentLogs returns the audit trail of a document, newest first
	GetDocumentLogs(ctx context.Context, actor *models.User, id int64) ([]models.DocumentLog, error)

	// FileURL returns a time-limited download link for the document file
	FileURL(ctx context.Context, actor *models.User, id int64) (string, error)

	// UploadFile stores a file and returns the key to put in a create or update request
	UploadFile(ctx context.Context, actor *models.User, filename, contentType string, r io.Reader, size int64) (string, error)
}

// ActivityService serves the per-user views around documents
type ActivityService interface {
	Dashboard(ctx context.Context, actor *models.User) (*models.Dashboard, error)
	ListNotifications(ctx context.Context, actor *models.User) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, actor *models.User, id int64) error
	CheckNotifications(ctx context.Context, actor *models.User) (*models.NotificationCheck, error)

	// ListAuditLog returns the global audit log. Admin only.
	ListAuditLog(ctx context.Context, actor *models.User, req *AuditLogRequest) ([]models.DocumentLog, error)

	// SearchUsers finds users to add as recipients. With a short query and a
	// document ID it returns that document's current recipients instead.
	SearchUsers(ctx context.Context, actor *models.User, query string, documentID *int64) ([]models.UserSummary, error)
}

// CreateDocumentRequest represents a document creation request
type CreateDocumentRequest struct {
	Title        string  `json:"title"`
	FileKey      string  `json:"file_key"`
	RecipientIDs []int64 `json:"recipient_ids"`
}

// UpdateDocumentRequest represents a partial document update.
// A nil RecipientIDs leaves recipients untouched; an empty list clears them.
type UpdateDocumentRequest struct {
	Title        *string  `json:"title,omitempty"`
	FileKey      *string  `json:"file_key,omitempty"`
	RecipientIDs *[]int64 `json:"recipient_ids,omitempty"`
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

// ListDocumentsRequest holds the optional listing filters
type ListDocumentsRequest struct {
	Title     string
	Status    string
	Recipient string
}

// AuditLogRequest holds the optional audit log filters. Dates are
// YYYY-MM-DD and inclusive; unparseable dates are ignored.
type AuditLogRequest struct {
	UserID   *int64
	Action   string
	DateFrom string
	DateTo   string
}
