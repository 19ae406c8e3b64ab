package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// ContradictionCandidate is one same-topic pair above the similarity
// threshold, considered by Consolidator stage 8(a).
type ContradictionCandidate struct {
	AID        string
	AContent   string
	BID        string
	BContent   string
	Similarity float64
}

// FindContradictionCandidates returns rows created since sinceWatermark
// paired with same-topic peers whose cosine similarity exceeds
// simThreshold.
func (s *Store) FindContradictionCandidates(ctx context.Context, sinceWatermark time.Time, simThreshold float64) ([]ContradictionCandidate, error) {
	var out []ContradictionCandidate
	err := s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT a.id AS a_id, a.content AS a_content, b.id AS b_id, b.content AS b_content,
			       1 - (a.embedding <=> b.embedding) AS similarity
			FROM fragments a
			JOIN fragments b ON a.topic = b.topic AND a.id < b.id
			WHERE a.created_at >= $1
			  AND a.embedding IS NOT NULL AND b.embedding IS NOT NULL
			  AND 1 - (a.embedding <=> b.embedding) > $2
			  AND NOT EXISTS (
			      SELECT 1 FROM fragment_links l
			      WHERE (l.from_id = a.id AND l.to_id = b.id) OR (l.from_id = b.id AND l.to_id = a.id)
			  )`,
			sinceWatermark, simThreshold,
		)
		if err != nil {
			return memerr.NewBackend("findContradictionCandidates", err)
		}
		defer rows.Close()

		type candidate struct {
			AID        string  `db:"a_id"`
			AContent   string  `db:"a_content"`
			BID        string  `db:"b_id"`
			BContent   string  `db:"b_content"`
			Similarity float64 `db:"similarity"`
		}
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[candidate])
		if err != nil {
			return memerr.NewBackend("findContradictionCandidates", err)
		}
		out = make([]ContradictionCandidate, len(results))
		for i, r := range results {
			out[i] = ContradictionCandidate{AID: r.AID, AContent: r.AContent, BID: r.BID, BContent: r.BContent, Similarity: r.Similarity}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveContradiction records the contradicts edge and applies the
// time-ordering heuristic: the chronologically newer fragment supersedes
// the older, whose importance is halved unless it's an anchor.
func (s *Store) ResolveContradiction(ctx context.Context, aID, bID string) error {
	return s.withScope(ctx, fragment.MaintenanceScope, func(tx pgx.Tx) error {
		var olderID, newerID string
		var olderIsAnchor bool
		err := tx.QueryRow(ctx, `
			SELECT
				CASE WHEN a.created_at <= b.created_at THEN a.id ELSE b.id END,
				CASE WHEN a.created_at <= b.created_at THEN b.id ELSE a.id END,
				CASE WHEN a.created_at <= b.created_at THEN a.is_anchor ELSE b.is_anchor END
			FROM fragments a, fragments b WHERE a.id = $1 AND b.id = $2`,
			aID, bID,
		).Scan(&olderID, &newerID, &olderIsAnchor)
		if err != nil {
			return memerr.NewBackend("resolveContradiction.order", err)
		}

		// Both edges go through the shared helper so the linked_to mirrors
		// stay consistent for consolidator-created edges too.
		if err := createLinkTx(ctx, tx, aID, bID, fragment.RelationContradicts); err != nil {
			return err
		}
		if err := createLinkTx(ctx, tx, olderID, newerID, fragment.RelationSupersededBy); err != nil {
			return err
		}
		if !olderIsAnchor {
			if _, err := tx.Exec(ctx, `UPDATE fragments SET importance = importance / 2 WHERE id = $1`, olderID); err != nil {
				return memerr.NewBackend("resolveContradiction.halveImportance", err)
			}
		}
		return nil
	})
}
