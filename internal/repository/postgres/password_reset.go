package postgres

import (
	"context"
	"fmt"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPasswordResetRepository implements the PasswordResetRepository interface
type PostgresPasswordResetRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewPasswordResetRepository creates a new password reset token repository
func NewPasswordResetRepository(config *RepositoryConfig) repositories.PasswordResetRepository {
	return &PostgresPasswordResetRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func (r *PostgresPasswordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, r.tables.PasswordResets)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, token.Token, token.UserID, token.ExpiresAt).
		Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("create password reset token: %w", err)
	}
	return nil
}

func (r *PostgresPasswordResetRepository) Get(ctx context.Context, token uuid.UUID) (*models.PasswordResetToken, error) {
	query := fmt.Sprintf(`
		SELECT token, user_id, created_at, expires_at
		FROM %s
		WHERE token = $1
	`, r.tables.PasswordResets)

	var t models.PasswordResetToken
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, token).Scan(&t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("password reset token: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get password reset token: %w", err)
	}
	return &t, nil
}

func (r *PostgresPasswordResetRepository) Delete(ctx context.Context, token uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE token = $1`, r.tables.PasswordResets)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, token); err != nil {
		return fmt.Errorf("delete password reset token: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens past their expiry and returns how many went
func (r *PostgresPasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < NOW()`, r.tables.PasswordResets)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired password reset tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
