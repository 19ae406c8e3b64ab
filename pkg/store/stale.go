package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// StaleFragment is one row reported by GatherStale.
type StaleFragment struct {
	ID                string
	Topic             string
	DaysSinceVerified int
}

// GatherStale returns the top-limit fragments ordered by days-since-verified
// descending, run under the maintenance scope.
func (s *Store) GatherStale(ctx context.Context, limit int) ([]StaleFragment, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []StaleFragment
	err := s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, topic, EXTRACT(DAY FROM now() - verified_at)::int AS days_since_verified
			FROM fragments
			ORDER BY verified_at ASC
			LIMIT $1`, limit)
		if err != nil {
			return memerr.NewBackend("gatherStale", err)
		}
		defer rows.Close()

		type r struct {
			ID                string `db:"id"`
			Topic             string `db:"topic"`
			DaysSinceVerified int    `db:"days_since_verified"`
		}
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[r])
		if err != nil {
			return memerr.NewBackend("gatherStale", err)
		}
		out = make([]StaleFragment, len(results))
		for i, row := range results {
			out[i] = StaleFragment{ID: row.ID, Topic: row.Topic, DaysSinceVerified: row.DaysSinceVerified}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the total row count, used by FragmentSearch's ranking
// activation threshold. The store-size signal is global, so it runs under
// the maintenance scope.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM fragments`).Scan(&n); err != nil {
			return memerr.NewBackend("count", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
