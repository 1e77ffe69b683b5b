package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSignatureRepository implements the SignatureRepository interface
type PostgresSignatureRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(config *RepositoryConfig) repositories.SignatureRepository {
	return &PostgresSignatureRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanSignature(row rowScanner) (*models.Signature, error) {
	var sig models.Signature
	err := row.Scan(&sig.ID, &sig.DocumentID, &sig.UserID, &sig.SignedAt, &sig.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// Ensure returns the signature for (document, user), creating an unsigned
// one when missing. The recipient relation must exist.
func (r *PostgresSignatureRepository) Ensure(ctx context.Context, documentID, userID int64) (*models.Signature, error) {
	// The no-op update makes RETURNING yield the existing row on conflict
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (document_id, user_id) DO UPDATE SET document_id = EXCLUDED.document_id
		RETURNING id, document_id, user_id, signed_at, created_at
	`, r.tables.Signatures)

	sig, err := scanSignature(GetExecutor(ctx, r.pool).QueryRow(ctx, query, documentID, userID))
	if err != nil {
		if IsPgForeignKeyError(err) {
			return nil, fmt.Errorf("user %d is not a recipient of document %d: %w", userID, documentID, domain.ErrValidation)
		}
		return nil, fmt.Errorf("ensure signature: %w", err)
	}
	return sig, nil
}

// Get retrieves the signature for (document, user)
func (r *PostgresSignatureRepository) Get(ctx context.Context, documentID, userID int64) (*models.Signature, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, user_id, signed_at, created_at
		FROM %s
		WHERE document_id = $1 AND user_id = $2
	`, r.tables.Signatures)

	sig, err := scanSignature(GetExecutor(ctx, r.pool).QueryRow(ctx, query, documentID, userID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("signature of user %d on document %d: %w", userID, documentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get signature: %w", err)
	}
	return sig, nil
}

// ListByDocument retrieves every signature of a document
func (r *PostgresSignatureRepository) ListByDocument(ctx context.Context, documentID int64) ([]models.Signature, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, user_id, signed_at, created_at
		FROM %s
		WHERE document_id = $1
		ORDER BY id
	`, r.tables.Signatures)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	sigs := []models.Signature{}
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sigs = append(sigs, *sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return sigs, nil
}

// MarkSigned sets signed_at once. Concurrent signers race on the
// signed_at IS NULL guard and exactly one wins.
func (r *PostgresSignatureRepository) MarkSigned(ctx context.Context, documentID, userID int64, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET signed_at = $1
		WHERE document_id = $2 AND user_id = $3 AND signed_at IS NULL
	`, r.tables.Signatures)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, at, documentID, userID)
	if err != nil {
		return false, fmt.Errorf("mark signed: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
