package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// Patch carries the mutable fields amend may change; a nil pointer means
// "leave unchanged".
type Patch struct {
	Content    *string
	Topic      *string
	Keywords   []string
	Type       *fragment.Type
	Importance *float64
	IsAnchor   *bool
}

// UpdateResult reports whether the row was updated or merged into an
// existing different row by a content-hash collision.
type UpdateResult struct {
	Updated    bool
	Merged     bool
	ExistingID string
}

// Update archives the current row into fragment_versions, then applies
// patch. Content changes recompute content_hash and invalidate the
// embedding; a hash collision with a different row aborts the mutation
// and reports the merge instead.
func (s *Store) Update(ctx context.Context, id string, patch Patch, newHash string, agentID string) (*UpdateResult, error) {
	var result *UpdateResult
	err := s.withScope(ctx, agentID, func(tx pgx.Tx) error {
		current, err := s.getByIDTx(ctx, tx, id, agentID)
		if err != nil {
			return err
		}

		contentChanged := patch.Content != nil && *patch.Content != current.Content
		if contentChanged {
			var existingID string
			err := tx.QueryRow(ctx,
				`SELECT id FROM fragments WHERE content_hash = $1 AND id != $2 AND (agent_id = $3 OR agent_id = $4)`,
				newHash, id, agentID, fragment.DefaultSharedScope,
			).Scan(&existingID)
			if err == nil {
				result = &UpdateResult{Merged: true, ExistingID: existingID}
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return memerr.NewBackend("update.collisionCheck", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO fragment_versions (fragment_id, content, topic, keywords, type, importance, amended_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			current.ID, current.Content, current.Topic, current.Keywords, string(current.Type), current.Importance, agentID,
		); err != nil {
			return memerr.NewBackend("update.archive", err)
		}

		applyPatch(current, patch)
		if contentChanged {
			current.ContentHash = newHash
			current.Embedding = nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE fragments SET content=$1, topic=$2, keywords=$3, type=$4, importance=$5,
				content_hash=$6, embedding=$7, is_anchor=$8, verified_at=now(), accessed_at=now()
			WHERE id=$9`,
			current.Content, current.Topic, current.Keywords, string(current.Type), current.Importance,
			current.ContentHash, embeddingOrNil(current.Embedding), current.IsAnchor, id,
		)
		if err != nil {
			return memerr.NewBackend("update", err)
		}
		result = &UpdateResult{Updated: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyPatch(f *fragment.Fragment, patch Patch) {
	if patch.Content != nil {
		f.Content = *patch.Content
	}
	if patch.Topic != nil {
		f.Topic = *patch.Topic
	}
	if patch.Keywords != nil {
		f.Keywords = patch.Keywords
	}
	if patch.Type != nil {
		f.Type = *patch.Type
	}
	if patch.Importance != nil {
		f.Importance = *patch.Importance
	}
	if patch.IsAnchor != nil {
		f.IsAnchor = *patch.IsAnchor
	}
}

func (s *Store) getByIDTx(ctx context.Context, tx pgx.Tx, id, agentID string) (*fragment.Fragment, error) {
	filter, args := scopeFilter(agentID, 2)
	query := fmt.Sprintf(`SELECT %s FROM fragments WHERE id = $1 AND %s FOR UPDATE`, fragmentColumns, filter)
	rows, err := tx.Query(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return nil, memerr.NewBackend("getByIdTx", err)
	}
	defer rows.Close()
	r, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[row])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, memerr.NewNotFound("fragment", id)
	}
	if err != nil {
		return nil, memerr.NewBackend("getByIdTx", err)
	}
	return r.toFragment(), nil
}

func embeddingOrNil(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return vectorOf(v)
}
