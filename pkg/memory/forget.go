package memory

import (
	"context"
	"log/slog"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// ForgetParams is the forget operation's argument shape:
// delete by id or by topic; permanent rows require Force.
type ForgetParams struct {
	ID      string
	Topic   string
	Force   bool
	AgentID string
}

// ForgetResult counts deletions and force-protected skips.
type ForgetResult struct {
	Deleted   int `json:"deleted"`
	Protected int `json:"protected"`
}

// Forget deletes by id or by topic, counting permanent-tier rows as
// protected rather than failing hard when a topic sweep mixes protected
// and deletable targets.
func (m *Manager) Forget(ctx context.Context, p ForgetParams) (*ForgetResult, error) {
	if p.ID == "" && p.Topic == "" {
		return nil, memerr.NewValidationError("id", "either id or topic is required")
	}
	agentID := scopeOf(p.AgentID)

	var targets []*fragment.Fragment
	if p.ID != "" {
		f, err := m.store.GetByID(ctx, p.ID, agentID)
		if err != nil {
			return nil, err
		}
		targets = append(targets, f)
	} else {
		found, err := m.store.FindByTopic(ctx, p.Topic, agentID)
		if err != nil {
			return nil, err
		}
		targets = found
	}

	result := &ForgetResult{}
	for _, f := range targets {
		if f.TTLTier == fragment.TierPermanent && !p.Force {
			result.Protected++
			continue
		}
		if err := m.store.Delete(ctx, f.ID, agentID); err != nil {
			if p.ID != "" {
				return nil, err
			}
			slog.Warn("forget: topic-scoped delete failed, continuing", "fragment_id", f.ID, "error", err)
			continue
		}
		m.index.Deindex(ctx, f.ID, f.Keywords, f.Topic, string(f.Type))
		result.Deleted++
	}
	return result, nil
}
