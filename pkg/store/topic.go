package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// FindByTopic lists every fragment under topic visible to agentID, used by
// MemoryManager.forget's topic-targeted deletion.
func (s *Store) FindByTopic(ctx context.Context, topic, agentID string) ([]*fragment.Fragment, error) {
	var out []*fragment.Fragment
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		filter, args := scopeFilter(agentID, 2)
		query := fmt.Sprintf(`SELECT %s FROM fragments WHERE topic = $1 AND %s`, fragmentColumns, filter)
		rows, err := tx.Query(ctx, query, append([]interface{}{topic}, args...)...)
		if err != nil {
			return memerr.NewBackend("findByTopic", err)
		}
		defer rows.Close()
		results, err := pgx.CollectRows(rows, pgx.RowToStructByName[row])
		if err != nil {
			return memerr.NewBackend("findByTopic", err)
		}
		out = make([]*fragment.Fragment, len(results))
		for i, r := range results {
			out[i] = r.toFragment()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
