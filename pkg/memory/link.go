package memory

import (
	"context"
	"log/slog"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// LinkParams is the link operation's argument shape.
type LinkParams struct {
	FromID       string
	ToID         string
	RelationType fragment.RelationType
	AgentID      string
}

// LinkResult reports the created edge.
type LinkResult struct {
	FromID       string                `json:"fromId"`
	ToID         string                `json:"toId"`
	RelationType fragment.RelationType `json:"relationType"`
}

// Link creates the edge. A resolved_by edge pointing at an error fragment
// of importance > 0.5 additionally halves that error's importance.
func (m *Manager) Link(ctx context.Context, p LinkParams) (*LinkResult, error) {
	if p.FromID == "" {
		return nil, memerr.NewValidationError("fromId", "required")
	}
	if p.ToID == "" {
		return nil, memerr.NewValidationError("toId", "required")
	}
	relation := p.RelationType
	if relation == "" {
		relation = fragment.RelationRelated
	}
	if !relation.Valid() {
		return nil, memerr.NewValidationError("relationType", "unknown relation type")
	}
	agentID := scopeOf(p.AgentID)

	if err := m.store.CreateLink(ctx, p.FromID, p.ToID, relation, agentID); err != nil {
		return nil, err
	}

	if relation == fragment.RelationResolvedBy {
		m.halveResolvedError(ctx, p.ToID, agentID)
	}
	return &LinkResult{FromID: p.FromID, ToID: p.ToID, RelationType: relation}, nil
}

// halveResolvedError applies the resolution reward: an error that has just
// gained a resolver no longer needs its elevated importance.
func (m *Manager) halveResolvedError(ctx context.Context, id, agentID string) {
	f, err := m.store.GetByID(ctx, id, agentID)
	if err != nil {
		slog.Warn("link: resolved error lookup failed", "fragment_id", id, "error", err)
		return
	}
	if f.Type != fragment.TypeError || f.Importance <= 0.5 {
		return
	}
	halved := f.Importance / 2
	if _, err := m.store.Update(ctx, id, store.Patch{Importance: &halved}, "", agentID); err != nil {
		slog.Warn("link: halving resolved error importance failed", "fragment_id", id, "error", err)
	}
}
