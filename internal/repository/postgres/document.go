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

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new document, keeping doc.ID when it is set
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.Status == "" {
		doc.Status = models.StatusDraft
	}

	var query string
	args := []any{doc.Title, doc.FileKey, doc.OwnerID, string(doc.Status)}
	if doc.ID != 0 {
		query = fmt.Sprintf(`
			INSERT INTO %s (title, file_key, owner_id, status, created_at, id)
			VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6)
			RETURNING id, created_at
		`, r.tables.Documents)
		var createdAt any
		if !doc.CreatedAt.IsZero() {
			createdAt = doc.CreatedAt
		}
		args = append(args, createdAt, doc.ID)
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %s (title, file_key, owner_id, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, r.tables.Documents)
	}

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("document %d already exists", doc.ID),
				ResourceType: "document",
				ResourceID:   fmt.Sprint(doc.ID),
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("owner %d: %w", doc.OwnerID, domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves a document and locks its row
func (r *PostgresDocumentRepository) GetForUpdate(ctx context.Context, id int64) (*models.Document, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *PostgresDocumentRepository) get(ctx context.Context, id int64, lock string) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT id, title, file_key, owner_id, status, created_at
		FROM %s
		WHERE id = $1
		%s
	`, r.tables.Documents, lock)

	var doc models.Document
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.FileKey,
		&doc.OwnerID,
		&doc.Status,
		&doc.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// Update saves title and file key. Owner and status are not touched.
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`UPDATE %s SET title = $1, file_key = $2 WHERE id = $3`, r.tables.Documents)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, doc.Title, doc.FileKey, doc.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", doc.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdateStatus persists a recomputed status
func (r *PostgresDocumentRepository) UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $1 WHERE id = $2`, r.tables.Documents)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete deletes a document; recipients, signatures, notifications and
// log entries cascade
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Documents)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// applyFilter adds the WHERE clauses of a document filter. The documents
// table must be aliased "d".
func (r *PostgresDocumentRepository) applyFilter(ds *goqu.SelectDataset, filter models.DocumentFilter) *goqu.SelectDataset {
	if filter.OwnerID != nil {
		ds = ds.Where(goqu.I("d.owner_id").Eq(*filter.OwnerID))
	}
	if filter.RecipientID != nil {
		ds = ds.Where(goqu.L(
			fmt.Sprintf("EXISTS (SELECT 1 FROM %s r WHERE r.document_id = d.id AND r.user_id = ?)", r.tables.Recipients),
			*filter.RecipientID,
		))
	}
	if filter.Title != "" {
		ds = ds.Where(goqu.I("d.title").ILike(containsPattern(filter.Title)))
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.I("d.status").Eq(string(filter.Status)))
	}
	if filter.RecipientName != "" {
		pattern := containsPattern(filter.RecipientName)
		ds = ds.Where(goqu.L(
			fmt.Sprintf(`EXISTS (
				SELECT 1 FROM %s r JOIN %s ru ON ru.id = r.user_id
				WHERE r.document_id = d.id AND (ru.full_name ILIKE ? OR ru.email ILIKE ?))`,
				r.tables.Recipients, r.tables.Users),
			pattern, pattern,
		))
	}
	return ds
}

// List retrieves documents matching the filter, newest first
func (r *PostgresDocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentListItem, error) {
	ds := builder().
		From(goqu.T(r.tables.Documents).As("d")).
		Join(goqu.T(r.tables.Users).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("d.owner_id")))).
		Select("d.id", "d.title", "d.file_key", "d.owner_id", "d.status", "d.created_at", "u.email").
		Order(goqu.I("d.created_at").Desc(), goqu.I("d.id").Desc())
	ds = r.applyFilter(ds, filter)

	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := []models.DocumentListItem{}
	index := map[int64]int{}
	for rows.Next() {
		var item models.DocumentListItem
		err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.FileKey,
			&item.OwnerID,
			&item.Status,
			&item.CreatedAt,
			&item.OwnerEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		item.Recipients = []models.UserSummary{}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	recipients, err := r.recipientsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for docID, users := range recipients {
		items[index[docID]].Recipients = users
	}

	return items, nil
}

// recipientsOf loads recipient summaries for several documents at once
func (r *PostgresDocumentRepository) recipientsOf(ctx context.Context, documentIDs []int64) (map[int64][]models.UserSummary, error) {
	query := fmt.Sprintf(`
		SELECT r.document_id, u.id, u.email, u.full_name
		FROM %s r
		JOIN %s u ON u.id = r.user_id
		WHERE r.document_id = ANY($1)
		ORDER BY u.full_name, u.id
	`, r.tables.Recipients, r.tables.Users)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]models.UserSummary)
	for rows.Next() {
		var docID int64
		var u models.UserSummary
		if err := rows.Scan(&docID, &u.ID, &u.Email, &u.FullName); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		result[docID] = append(result[docID], u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return result, nil
}

// CountByStatus counts documents per status
func (r *PostgresDocumentRepository) CountByStatus(ctx context.Context, filter models.DocumentFilter) (map[models.DocumentStatus]int, error) {
	ds := builder().
		From(goqu.T(r.tables.Documents).As("d")).
		Select(goqu.I("d.status"), goqu.COUNT("*")).
		GroupBy(goqu.I("d.status"))
	ds = r.applyFilter(ds, filter)

	query, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()

	counts := map[models.DocumentStatus]int{
		models.StatusDraft:  0,
		models.StatusSent:   0,
		models.StatusSigned: 0,
	}
	for rows.Next() {
		var status models.DocumentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// SyncIDSequence moves the id sequence past the highest stored id so that
// documents imported with explicit ids do not collide with new ones
func (r *PostgresDocumentRepository) SyncIDSequence(ctx context.Context) error {
	query := fmt.Sprintf(`
		SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)
	`, r.tables.Documents, r.tables.Documents)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("sync document id sequence: %w", err)
	}
	return nil
}

// ListRecipients retrieves the recipients of a document
func (r *PostgresDocumentRepository) ListRecipients(ctx context.Context, documentID int64) ([]models.User, error) {
	query := fmt.Sprintf(`
		SELECT u.id, u.email, u.full_name, u.password_hash, u.role, u.email_notifications, u.is_active, u.date_joined, u.last_login
		FROM %s r
		JOIN %s u ON u.id = r.user_id
		WHERE r.document_id = $1
		ORDER BY u.full_name, u.id
	`, r.tables.Recipients, r.tables.Users)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return users, nil
}

// AddRecipient adds a user to the recipient relation
func (r *PostgresDocumentRepository) AddRecipient(ctx context.Context, documentID, userID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (document_id, user_id) DO NOTHING
	`, r.tables.Recipients)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, documentID, userID); err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("recipient %d of document %d: %w", userID, documentID, domain.ErrNotFound)
		}
		return fmt.Errorf("add recipient: %w", err)
	}
	return nil
}

// RemoveRecipient removes a user from the recipient relation. The
// signature goes with it through the composite foreign key.
func (r *PostgresDocumentRepository) RemoveRecipient(ctx context.Context, documentID, userID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1 AND user_id = $2`, r.tables.Recipients)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, documentID, userID); err != nil {
		return fmt.Errorf("remove recipient: %w", err)
	}
	return nil
}

// IsRecipient reports whether the user is a recipient of the document
func (r *PostgresDocumentRepository) IsRecipient(ctx context.Context, documentID, userID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE document_id = $1 AND user_id = $2)
	`, r.tables.Recipients)

	var exists bool
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, documentID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recipient: %w", err)
	}
	return exists, nil
}
