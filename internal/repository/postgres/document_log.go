package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDocumentLogRepository implements the DocumentLogRepository interface
type PostgresDocumentLogRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDocumentLogRepository creates a new audit log repository
func NewDocumentLogRepository(config *RepositoryConfig) repositories.DocumentLogRepository {
	return &PostgresDocumentLogRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Append inserts an audit entry
func (r *PostgresDocumentLogRepository) Append(ctx context.Context, entry *models.DocumentLog) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, user_id, action, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp
	`, r.tables.DocumentLogs)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		entry.DocumentID,
		entry.UserID,
		string(entry.Action),
		entry.Comment,
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("log target: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("append document log: %w", err)
	}
	return nil
}

func (r *PostgresDocumentLogRepository) selectEntries() *goqu.SelectDataset {
	return builder().
		From(goqu.T(r.tables.DocumentLogs).As("l")).
		Join(goqu.T(r.tables.Documents).As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("l.document_id")))).
		Join(goqu.T(r.tables.Users).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id")))).
		Select("l.id", "l.document_id", "d.title", "l.user_id", "u.email", "u.full_name", "l.action", "l.timestamp", "l.comment").
		Order(goqu.I("l.timestamp").Desc(), goqu.I("l.id").Desc())
}

// List retrieves entries matching the filter, newest first
func (r *PostgresDocumentLogRepository) List(ctx context.Context, filter models.LogFilter) ([]models.DocumentLog, error) {
	ds := r.selectEntries()
	if filter.DocumentID != nil {
		ds = ds.Where(goqu.I("l.document_id").Eq(*filter.DocumentID))
	}
	if filter.UserID != nil {
		ds = ds.Where(goqu.I("l.user_id").Eq(*filter.UserID))
	}
	if filter.Action != "" {
		ds = ds.Where(goqu.I("l.action").Eq(string(filter.Action)))
	}
	if filter.From != nil {
		ds = ds.Where(goqu.I("l.timestamp").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.I("l.timestamp").Lt(*filter.To))
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	return r.query(ctx, ds)
}

// ListCommentsOnOwned retrieves the latest comments left on ownerID's documents
func (r *PostgresDocumentLogRepository) ListCommentsOnOwned(ctx context.Context, ownerID int64, limit int) ([]models.DocumentLog, error) {
	ds := r.selectEntries().
		Where(
			goqu.I("d.owner_id").Eq(ownerID),
			goqu.I("l.action").Eq(string(models.ActionComment)),
		)
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return r.query(ctx, ds)
}

func (r *PostgresDocumentLogRepository) query(ctx context.Context, ds *goqu.SelectDataset) ([]models.DocumentLog, error) {
	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list document logs: %w", err)
	}
	defer rows.Close()

	entries := []models.DocumentLog{}
	for rows.Next() {
		var e models.DocumentLog
		err := rows.Scan(
			&e.ID,
			&e.DocumentID,
			&e.DocumentTitle,
			&e.UserID,
			&e.UserEmail,
			&e.UserFullName,
			&e.Action,
			&e.Timestamp,
			&e.Comment,
		)
		if err != nil {
			return nil, fmt.Errorf("scan document log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document logs: %w", err)
	}
	return entries, nil
}
