package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"edms/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx executes a function within a read-write transaction
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return tm.exec(ctx, pgx.TxOptions{}, fn)
}

// ExecSnapshot executes a function within a REPEATABLE READ, READ ONLY
// transaction. Every query inside fn sees the same snapshot.
func (tm *TransactionManager) ExecSnapshot(ctx context.Context, fn repositories.TxFn) error {
	return tm.exec(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

func (tm *TransactionManager) exec(ctx context.Context, opts pgx.TxOptions, fn repositories.TxFn) error {
	// Nested calls join the outer transaction
	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Rollback after commit is a no-op
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	txCtx, runHooks := repositories.WithCommitHooks(repositories.SetTx(ctx, tx))

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	runHooks()
	return nil
}
