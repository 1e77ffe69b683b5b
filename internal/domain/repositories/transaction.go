package repositories

import (
	"context"
	"sync"
)

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx executes a function within a transaction
	ExecTx(ctx context.Context, fn TxFn) error

	// ExecSnapshot executes a function within a read-only transaction that
	// sees a single consistent snapshot of the database
	ExecSnapshot(ctx context.Context, fn TxFn) error
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks marks ctx as running inside a transaction. The returned
// func runs the hooks registered through AfterCommit; transaction managers
// call it once the commit succeeded and drop it otherwise.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	hooks := &commitHooks{}
	run := func() {
		hooks.mu.Lock()
		fns := hooks.fns
		hooks.fns = nil
		hooks.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
	return context.WithValue(ctx, commitHooksKey{}, hooks), run
}

// AfterCommit runs fn when the transaction in ctx commits, or right away
// when ctx carries no transaction
func AfterCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()
}

// InTx reports whether ctx runs inside a transaction
func InTx(ctx context.Context) bool {
	if GetTx(ctx) != nil {
		return true
	}
	_, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	return ok
}
