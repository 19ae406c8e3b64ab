package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// DuplicateGroup is one content_hash shared by more than one row.
type DuplicateGroup struct {
	ContentHash string
	IDs         []string // created_at ascending; IDs[0] is the survivor
}

// FindDuplicates lists every content_hash with more than one row, ids
// ordered earliest-created first.
func (s *Store) FindDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	var out []DuplicateGroup
	err := s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT content_hash, array_agg(id ORDER BY created_at ASC) AS ids
			FROM fragments
			GROUP BY content_hash
			HAVING count(*) > 1`)
		if err != nil {
			return memerr.NewBackend("findDuplicates", err)
		}
		defer rows.Close()

		type agg struct {
			ContentHash string   `db:"content_hash"`
			IDs         []string `db:"ids"`
		}
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[agg])
		if err != nil {
			return memerr.NewBackend("findDuplicates", err)
		}
		out = make([]DuplicateGroup, len(results))
		for i, r := range results {
			out[i] = DuplicateGroup{ContentHash: r.ContentHash, IDs: r.IDs}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MergeDuplicates collapses group into its survivor: edges and linked_to
// references pointing at any loser are rewritten to the survivor, losers'
// access_count accrues to the survivor, then the losers are deleted.
func (s *Store) MergeDuplicates(ctx context.Context, group DuplicateGroup) error {
	if len(group.IDs) < 2 {
		return nil
	}
	survivor := group.IDs[0]
	losers := group.IDs[1:]

	return s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		for _, loser := range losers {
			if _, err := tx.Exec(ctx, `UPDATE fragment_links SET from_id = $1 WHERE from_id = $2`, survivor, loser); err != nil {
				return memerr.NewBackend("mergeDuplicates.rewriteFrom", err)
			}
			if _, err := tx.Exec(ctx, `UPDATE fragment_links SET to_id = $1 WHERE to_id = $2`, survivor, loser); err != nil {
				return memerr.NewBackend("mergeDuplicates.rewriteTo", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE fragments SET linked_to = array_replace(linked_to, $1, $2) WHERE $1 = ANY(linked_to)`,
				loser, survivor,
			); err != nil {
				return memerr.NewBackend("mergeDuplicates.rewriteLinkedTo", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE fragments SET access_count = access_count + (SELECT access_count FROM fragments WHERE id = $1) WHERE id = $2`,
				loser, survivor,
			); err != nil {
				return memerr.NewBackend("mergeDuplicates.accrueAccess", err)
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fragment_links WHERE from_id = ANY($1) OR to_id = ANY($1)`, losers); err != nil {
			return memerr.NewBackend("mergeDuplicates.dropLoserEdges", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fragments WHERE id = ANY($1)`, losers); err != nil {
			return memerr.NewBackend("mergeDuplicates.deleteLosers", err)
		}
		return nil
	})
}

// RecomputeUtility rewrites utility_score for every row using the log
// formula.
func (s *Store) RecomputeUtility(ctx context.Context) (int64, error) {
	return s.maintenanceExec(ctx, "recomputeUtility", `
		UPDATE fragments SET utility_score = importance * (1 + ln(GREATEST(access_count, 1)))`)
}

// PromoteAnchors marks rows with access_count >= minAccess and importance
// >= minImportance as anchors.
func (s *Store) PromoteAnchors(ctx context.Context, minAccess int, minImportance float64) (int64, error) {
	return s.maintenanceExec(ctx, "promoteAnchors", `
		UPDATE fragments SET is_anchor = true
		WHERE NOT is_anchor AND access_count >= $1 AND importance >= $2`,
		minAccess, minImportance,
	)
}
