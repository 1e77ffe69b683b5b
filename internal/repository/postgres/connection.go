package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"edms/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Prefix         string
	Users          string
	Documents      string
	Recipients     string
	Signatures     string
	Notifications  string
	DocumentLogs   string
	PasswordResets string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Prefix:         prefix,
		Users:          fmt.Sprintf("%susers", prefix),
		Documents:      fmt.Sprintf("%sdocuments", prefix),
		Recipients:     fmt.Sprintf("%sdocument_recipients", prefix),
		Signatures:     fmt.Sprintf("%ssignatures", prefix),
		Notifications:  fmt.Sprintf("%snotifications", prefix),
		DocumentLogs:   fmt.Sprintf("%sdocument_logs", prefix),
		PasswordResets: fmt.Sprintf("%spassword_reset_tokens", prefix),
	}
}

// All returns every table in dependency order (referenced tables first)
func (t *TableNames) All() []string {
	return []string{t.Users, t.Documents, t.Recipients, t.Signatures, t.Notifications, t.DocumentLogs, t.PasswordResets}
}

// CreateConnectionPool creates a new pgx connection pool.
//
// Statements are prepared and cached by default. PgBouncer in transaction
// pooling mode (port 6543) cannot hold prepared statements, so for that port
// the pool switches to QueryExecModeCacheDescribe unless the connection string
// sets default_query_exec_mode explicitly.
//
// Table names are interpolated with fmt.Sprintf before the statement reaches
// the server, so each prefix gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	// Configure pool size
	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("using cache_describe mode for pgbouncer", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the appropriate query executor for the context.
// If a transaction is present in the context, it returns the transaction.
// Otherwise, it returns the provided pool.
// This enables repositories to automatically participate in transactions when they exist.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	// Check if there's a transaction in the context
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	// No transaction, use the pool
	return pool
}
