package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/embedding"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// SweepConfig parameterizes the four consolidator-invoked sweeps.
type SweepConfig struct {
	ExpirationMinImportance float64
	ExpirationInactivity    time.Duration
	ExpirationMinLinks      int
	DecayFactor             float64
	DecayInactivity         time.Duration
	DemoteInactivity        time.Duration
	HubLinkCount            int
}

// maintenanceExec runs one statement under the maintenance scope and
// returns the affected-row count — the shared shape of the sweeps below.
func (s *Store) maintenanceExec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	var affected int64
	err := s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return memerr.NewBackend(op, err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// DeleteExpired drops rows matching the eviction predicate. All sweeps run
// under the maintenance scope, which the row-visibility policy admits to
// every row.
func (s *Store) DeleteExpired(ctx context.Context, cfg SweepConfig) (int64, error) {
	cutoff := s.clock().Add(-cfg.ExpirationInactivity)
	return s.maintenanceExec(ctx, "deleteExpired", `
		DELETE FROM fragments
		WHERE importance < $1
		  AND ttl_tier != 'permanent'
		  AND NOT is_anchor
		  AND (accessed_at < $2 OR (accessed_at IS NULL AND created_at < $2))
		  AND cardinality(linked_to) < $3`,
		cfg.ExpirationMinImportance, cutoff, cfg.ExpirationMinLinks,
	)
}

// DecayImportance multiplies importance by cfg.DecayFactor for eligible rows.
func (s *Store) DecayImportance(ctx context.Context, cfg SweepConfig) (int64, error) {
	cutoff := s.clock().Add(-cfg.DecayInactivity)
	return s.maintenanceExec(ctx, "decayImportance", `
		UPDATE fragments SET importance = importance * $1
		WHERE ttl_tier != 'permanent'
		  AND type != 'preference'
		  AND NOT is_anchor
		  AND (accessed_at < $2 OR (accessed_at IS NULL AND created_at < $2))`,
		cfg.DecayFactor, cutoff,
	)
}

// TransitionTTL promotes preference/hub/high-importance rows to permanent
// and demotes stale warm rows to cold.
func (s *Store) TransitionTTL(ctx context.Context, cfg SweepConfig) (int64, error) {
	promoted, err := s.maintenanceExec(ctx, "transitionTTL.promote", `
		UPDATE fragments SET ttl_tier = 'permanent'
		WHERE ttl_tier != 'permanent'
		  AND (type = 'preference' OR cardinality(linked_to) >= $1 OR importance >= 0.8)`,
		cfg.HubLinkCount,
	)
	if err != nil {
		return 0, err
	}

	demoteCutoff := s.clock().Add(-cfg.DemoteInactivity)
	demoted, err := s.maintenanceExec(ctx, "transitionTTL.demote", `
		UPDATE fragments SET ttl_tier = 'cold'
		WHERE ttl_tier = 'warm'
		  AND NOT is_anchor
		  AND (importance < 0.3 OR (accessed_at < $1 OR (accessed_at IS NULL AND created_at < $1)))`,
		demoteCutoff,
	)
	if err != nil {
		return 0, err
	}
	return promoted + demoted, nil
}

// GenerateMissingEmbeddings picks the top-n NULL-embedding rows by
// importance and backfills them through provider. The candidate select and
// each write run in their own scoped transactions so no transaction stays
// open across a provider call.
func (s *Store) GenerateMissingEmbeddings(ctx context.Context, n int, provider embedding.Provider) (int, error) {
	if n <= 0 {
		n = 5
	}
	type candidate struct {
		ID      string `db:"id"`
		Content string `db:"content"`
	}
	var candidates []candidate
	err := s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, content FROM fragments
			WHERE embedding IS NULL
			ORDER BY importance DESC
			LIMIT $1`, n)
		if err != nil {
			return memerr.NewBackend("generateMissingEmbeddings.select", err)
		}
		defer rows.Close()
		candidates, err = pgx.CollectRows(rows, pgx.RowToStructByName[candidate])
		if err != nil {
			return memerr.NewBackend("generateMissingEmbeddings.select", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	backfilled := 0
	for _, c := range candidates {
		vec, err := provider.Embed(ctx, c.Content)
		if err != nil || len(vec) == 0 {
			continue
		}
		if _, err := s.maintenanceExec(ctx, "generateMissingEmbeddings.update",
			`UPDATE fragments SET embedding = $1 WHERE id = $2`, vectorOf(vec), c.ID,
		); err != nil {
			continue
		}
		backfilled++
	}
	return backfilled, nil
}
