package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// Delete removes fragment edges, prunes linked_to references pointing at
// id, then deletes the row. Deletion is
// verified against scope first so a caller can't delete a row it can't see.
func (s *Store) Delete(ctx context.Context, id, agentID string) error {
	return s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		if _, err := s.getByIDTx(ctx, tx, id, agentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fragment_links WHERE from_id = $1 OR to_id = $1`, id); err != nil {
			return memerr.NewBackend("delete.edges", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE fragments SET linked_to = array_remove(linked_to, $1) WHERE $1 = ANY(linked_to)`, id); err != nil {
			return memerr.NewBackend("delete.pruneLinkedTo", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fragments WHERE id = $1`, id); err != nil {
			return memerr.NewBackend("delete", err)
		}
		return nil
	})
}
