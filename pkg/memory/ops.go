package memory

import (
	"context"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/consolidator"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// Limits on the free-text tool_feedback fields.
const (
	maxSuggestionLen = 100
	maxContextLen    = 50
)

// ToolFeedbackParams is the tool_feedback operation's argument shape.
type ToolFeedbackParams struct {
	ToolName    string
	Relevant    bool
	Sufficient  bool
	Suggestion  string
	Context     string
	SessionID   string
	TriggerType fragment.ToolFeedbackTrigger
}

// ToolFeedback records one tool-usefulness report.
func (m *Manager) ToolFeedback(ctx context.Context, p ToolFeedbackParams) error {
	if p.ToolName == "" {
		return memerr.NewValidationError("tool_name", "required")
	}
	if len(p.Suggestion) > maxSuggestionLen {
		return memerr.NewValidationError("suggestion", "must be at most 100 characters")
	}
	if len(p.Context) > maxContextLen {
		return memerr.NewValidationError("context", "must be at most 50 characters")
	}
	trigger := p.TriggerType
	if trigger == "" {
		trigger = fragment.TriggerVoluntary
	}
	if trigger != fragment.TriggerSampled && trigger != fragment.TriggerVoluntary {
		return memerr.NewValidationError("trigger_type", "must be sampled or voluntary")
	}
	return m.store.InsertToolFeedback(ctx, fragment.ToolFeedback{
		ToolName: p.ToolName, Relevant: p.Relevant, Sufficient: p.Sufficient,
		Suggestion: p.Suggestion, Context: p.Context, SessionID: p.SessionID,
		TriggerType: trigger, CreatedAt: m.clock(),
	})
}

// GraphNode is one entry of a graph_explore result.
type GraphNode struct {
	ID         string                `json:"id"`
	Content    string                `json:"content"`
	Topic      string                `json:"topic"`
	Type       fragment.Type         `json:"type"`
	Importance float64               `json:"importance"`
	Relation   fragment.RelationType `json:"relation,omitempty"`
	Depth      int                   `json:"depth"`
}

// GraphExplore walks the RCA chain from startID: the start node plus its
// caused_by/resolved_by targets.
func (m *Manager) GraphExplore(ctx context.Context, startID, agentID string) ([]GraphNode, error) {
	if startID == "" {
		return nil, memerr.NewValidationError("startId", "required")
	}
	chain, err := m.store.GetRCAChain(ctx, startID, scopeOf(agentID))
	if err != nil {
		return nil, err
	}
	nodes := make([]GraphNode, len(chain))
	for i, lf := range chain {
		nodes[i] = GraphNode{
			ID: lf.Fragment.ID, Content: lf.Fragment.Content, Topic: lf.Fragment.Topic,
			Type: lf.Fragment.Type, Importance: lf.Fragment.Importance,
			Relation: lf.Relation, Depth: lf.Depth,
		}
	}
	return nodes, nil
}

// Consolidate runs the 11-stage maintenance pipeline once.
func (m *Manager) Consolidate(ctx context.Context) *consolidator.Result {
	return m.consolidator.Run(ctx)
}

// Stats returns the aggregate memory snapshot.
func (m *Manager) Stats(ctx context.Context, agentID string) (*store.Stats, error) {
	return m.store.GetStats(ctx, scopeOf(agentID))
}
