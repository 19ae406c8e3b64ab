package memory

import (
	"context"
	"log/slog"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/masking"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// AmendParams is the amend operation's argument shape. Nil
// pointers leave the corresponding field untouched.
type AmendParams struct {
	ID         string
	Content    *string
	Topic      *string
	Keywords   []string
	Type       *fragment.Type
	Importance *float64
	IsAnchor   *bool
	Supersedes string
	AgentID    string
}

// AmendResult mirrors store.UpdateResult for the wire: Updated on success,
// Merged+ExistingID when the new content's hash collided with another row.
type AmendResult struct {
	Updated    bool   `json:"updated"`
	Merged     bool   `json:"merged,omitempty"`
	ExistingID string `json:"existingId,omitempty"`
}

// Amend archives the previous version, applies the patch, and reindexes.
// Content passes through the same redact+truncate+hash
// pipeline as creation, so PII idempotence and hash stability hold across
// amendments.
func (m *Manager) Amend(ctx context.Context, p AmendParams) (*AmendResult, error) {
	if p.ID == "" {
		return nil, memerr.NewValidationError("id", "required")
	}
	if p.Type != nil && !p.Type.Valid() {
		return nil, memerr.NewValidationError("type", "must be one of fact|decision|error|preference|procedure|relation")
	}
	agentID := scopeOf(p.AgentID)

	before, err := m.store.GetByID(ctx, p.ID, agentID)
	if err != nil {
		return nil, err
	}

	patch := store.Patch{
		Topic: p.Topic, Keywords: p.Keywords, Type: p.Type,
		Importance: p.Importance, IsAnchor: p.IsAnchor,
	}
	var newHash string
	if p.Content != nil {
		cleaned := fragment.TruncateContent(masking.Redact(*p.Content))
		patch.Content = &cleaned
		newHash = fragment.HashContent(cleaned)
	}

	res, err := m.store.Update(ctx, p.ID, patch, newHash, agentID)
	if err != nil {
		return nil, err
	}
	if res.Merged {
		return &AmendResult{Merged: true, ExistingID: res.ExistingID}, nil
	}

	after, err := m.store.GetByID(ctx, p.ID, agentID)
	if err == nil {
		m.index.Deindex(ctx, before.ID, before.Keywords, before.Topic, string(before.Type))
		m.index.Index(ctx, after, "")
	} else {
		slog.Warn("amend: reindex fetch failed", "fragment_id", p.ID, "error", err)
	}

	if p.Supersedes != "" {
		m.applySupersedes(ctx, p.Supersedes, p.ID, agentID)
	}
	return &AmendResult{Updated: true}, nil
}

// applySupersedes records that the amended copy replaces an older
// fragment: a related edge from the original to the updated copy, and the
// original's importance dropped to 0.3.
func (m *Manager) applySupersedes(ctx context.Context, originalID, updatedID, agentID string) {
	if err := m.store.CreateLink(ctx, originalID, updatedID, fragment.RelationRelated, agentID); err != nil {
		slog.Warn("amend: supersedes link failed", "original", originalID, "updated", updatedID, "error", err)
		return
	}
	dropped := 0.3
	if _, err := m.store.Update(ctx, originalID, store.Patch{Importance: &dropped}, "", agentID); err != nil {
		slog.Warn("amend: supersedes importance drop failed", "original", originalID, "error", err)
	}
}
