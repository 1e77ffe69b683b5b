package models

import "time"

// NotificationType identifies why a notification was raised
type NotificationType string

const (
	NotificationNewDocument     NotificationType = "new_document"
	NotificationDocumentUpdated NotificationType = "document_updated"
	NotificationNewComment      NotificationType = "new_comment"
)

// Notification is an in-app notice for a user about a document.
// Only IsRead ever changes after creation.
type Notification struct {
	ID            int64            `json:"id" db:"id"`
	UserID        int64            `json:"user_id" db:"user_id"`
	DocumentID    int64            `json:"document_id" db:"document_id"`
	DocumentTitle string           `json:"document_title,omitempty"` // Joined, not stored
	Type          NotificationType `json:"type" db:"type"`
	IsRead        bool             `json:"is_read" db:"is_read"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// NotificationCheck is the polling summary of unread notifications
type NotificationCheck struct {
	Count  int           `json:"count"`
	Latest *Notification `json:"latest"`
}
