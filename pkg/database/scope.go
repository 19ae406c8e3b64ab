package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// WithScope runs fn inside a transaction with `app.current_agent_id` set to
// agentID for its duration, feeding the row-visibility policy. SET LOCAL is
// transaction-local, so concurrent callers on the pool never observe each
// other's scope.
func WithScope(ctx context.Context, pool interface {
	Begin(context.Context) (pgx.Tx, error)
}, agentID string, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if _, err := tx.Exec(ctx, "SELECT set_config('app.current_agent_id', $1, true)", agentID); err != nil {
		return fmt.Errorf("database: set scope: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
