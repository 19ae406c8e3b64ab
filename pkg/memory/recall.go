package memory

import (
	"context"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/search"
)

// RecallParams is the recall operation's argument shape. All
// fields are optional; with no filter at all the cascade falls back to the
// recency ordering.
type RecallParams struct {
	Keywords         []string
	Topic            string
	Type             string
	Text             string
	MinImportance    float64
	TokenBudget      int
	IncludeLinks     *bool
	LinkRelationType fragment.RelationType
	Threshold        float64
	SessionID        string
	AgentID          string
}

// RecalledFragment is one result row, flattened for the wire.
type RecalledFragment struct {
	ID                string           `json:"id"`
	Content           string           `json:"content"`
	Topic             string           `json:"topic"`
	Keywords          []string         `json:"keywords"`
	Type              fragment.Type    `json:"type"`
	Importance        float64          `json:"importance"`
	TTLTier           fragment.TTLTier `json:"ttlTier"`
	EstimatedTokens   int              `json:"estimatedTokens"`
	Similarity        *float64         `json:"similarity,omitempty"`
	Stale             bool             `json:"stale,omitempty"`
	StaleWarning      string           `json:"staleWarning,omitempty"`
	DaysSinceVerified int              `json:"daysSinceVerification,omitempty"`
}

// RecallResult is the typed RecallResult container.
type RecallResult struct {
	Fragments   []RecalledFragment `json:"fragments"`
	TotalTokens int                `json:"totalTokens"`
	SearchPath  string             `json:"searchPath"`
	Count       int                `json:"count"`
}

// Recall runs the three-tier cascade and returns ranked, budget-trimmed,
// stale-annotated results.
func (m *Manager) Recall(ctx context.Context, p RecallParams) (*RecallResult, error) {
	res, err := m.search.Search(ctx, search.Params{
		Keywords: p.Keywords, Topic: p.Topic, Type: p.Type, Text: p.Text,
		MinImportance: p.MinImportance, TokenBudget: p.TokenBudget,
		IncludeLinks: p.IncludeLinks, LinkRelationType: p.LinkRelationType,
		Threshold: p.Threshold, AgentID: scopeOf(p.AgentID),
	})
	if err != nil {
		return nil, err
	}

	out := &RecallResult{
		Fragments:   make([]RecalledFragment, len(res.Fragments)),
		TotalTokens: res.TotalTokens,
		SearchPath:  res.SearchPath,
		Count:       res.Count,
	}
	for i, c := range res.Fragments {
		rf := RecalledFragment{
			ID: c.Fragment.ID, Content: c.Fragment.Content, Topic: c.Fragment.Topic,
			Keywords: c.Fragment.Keywords, Type: c.Fragment.Type,
			Importance: c.Fragment.Importance, TTLTier: c.Fragment.TTLTier,
			EstimatedTokens: c.Fragment.EstimatedTokens, Similarity: c.Similarity,
		}
		if c.StaleInfo != nil {
			rf.Stale = true
			rf.StaleWarning = c.StaleInfo.Warning
			rf.DaysSinceVerified = c.StaleInfo.DaysSinceVerified
		}
		out.Fragments[i] = rf
		m.activity.RecordFragment(ctx, p.SessionID, c.Fragment.ID)
	}
	m.activity.RecordKeywords(ctx, p.SessionID, p.Keywords)
	return out, nil
}
