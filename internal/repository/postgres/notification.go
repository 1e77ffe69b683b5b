package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotificationRepository implements the NotificationRepository interface
type PostgresNotificationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(config *RepositoryConfig) repositories.NotificationRepository {
	return &PostgresNotificationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new notification
func (r *PostgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, document_id, type, is_read)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, created_at
	`, r.tables.Notifications)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, n.UserID, n.DocumentID, string(n.Type)).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("notification target: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create notification: %w", err)
	}
	n.IsRead = false
	return nil
}

// ListByUser retrieves a user's notifications with the document title, newest first
func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := fmt.Sprintf(`
		SELECT n.id, n.user_id, n.document_id, d.title, n.type, n.is_read, n.created_at
		FROM %s n
		JOIN %s d ON d.id = n.document_id
		WHERE n.user_id = $1 AND ($2 = FALSE OR n.is_read = FALSE)
		ORDER BY n.created_at DESC, n.id DESC
	`, r.tables.Notifications, r.tables.Documents)
	args := []any{userID, unreadOnly}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.DocumentID, &n.DocumentTitle, &n.Type, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications as read
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET is_read = TRUE WHERE id = $1 AND user_id = $2`, r.tables.Notifications)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountUnread counts the user's unread notifications
func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND is_read = FALSE`, r.tables.Notifications)

	var count int
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
