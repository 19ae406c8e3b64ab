package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// Stats is the aggregate snapshot memory_stats returns.
type Stats struct {
	TotalFragments int            `json:"totalFragments"`
	ByType         map[string]int `json:"byType"`
	ByTier         map[string]int `json:"byTier"`
	Anchors        int            `json:"anchors"`
	WithEmbedding  int            `json:"withEmbedding"`
	TotalLinks     int            `json:"totalLinks"`
	TotalVersions  int            `json:"totalVersions"`
}

// GetStats aggregates fragment counts by type and tier plus link/version
// totals, scoped to agentID's visibility.
func (s *Store) GetStats(ctx context.Context, agentID string) (*Stats, error) {
	stats := &Stats{ByType: map[string]int{}, ByTier: map[string]int{}}
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, args := scopeFilter(agentID, 1)
		rows, err := tx.Query(ctx, `
			SELECT type, ttl_tier,
			       count(*) AS n,
			       count(*) FILTER (WHERE is_anchor) AS anchors,
			       count(*) FILTER (WHERE embedding IS NOT NULL) AS embedded
			FROM fragments WHERE `+filter+`
			GROUP BY type, ttl_tier`, args...)
		if err != nil {
			return memerr.NewBackend("getStats", err)
		}
		defer rows.Close()
		type bucket struct {
			Type     string `db:"type"`
			TTLTier  string `db:"ttl_tier"`
			N        int    `db:"n"`
			Anchors  int    `db:"anchors"`
			Embedded int    `db:"embedded"`
		}
		buckets, err := pgx.CollectRows(rows, pgx.RowToStructByName[bucket])
		if err != nil {
			return memerr.NewBackend("getStats", err)
		}
		for _, b := range buckets {
			stats.TotalFragments += b.N
			stats.ByType[b.Type] += b.N
			stats.ByTier[b.TTLTier] += b.N
			stats.Anchors += b.Anchors
			stats.WithEmbedding += b.Embedded
		}

		if err := tx.QueryRow(ctx, `SELECT count(*) FROM fragment_links`).Scan(&stats.TotalLinks); err != nil {
			return memerr.NewBackend("getStats.links", err)
		}
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM fragment_versions`).Scan(&stats.TotalVersions); err != nil {
			return memerr.NewBackend("getStats.versions", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
