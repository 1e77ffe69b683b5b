package repositories

import (
	"context"

	"edms/internal/domain/models"
)

// NotificationRepository defines data access operations for notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error

	// ListByUser returns the user's notifications, newest first.
	// limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)

	// MarkRead marks a notification read. Notifications of other users are
	// reported as not found.
	MarkRead(ctx context.Context, id, userID int64) error

	CountUnread(ctx context.Context, userID int64) (int, error)
}
