package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/embedding"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/evaluator"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// ScopeSession routes a remember into working memory only; ScopePermanent
// (the default) writes through to the durable store.
const (
	ScopePermanent = "permanent"
	ScopeSession   = "session"
)

// RememberParams is the remember operation's argument shape.
type RememberParams struct {
	Content    string
	Topic      string
	Keywords   []string
	Type       fragment.Type
	Importance float64
	Source     string
	LinkedTo   []string
	Scope      string
	IsAnchor   bool
	SessionID  string
	AgentID    string
}

// Conflict is one semantically-near same-topic peer surfaced to the caller
// at remember time.
type Conflict struct {
	FragmentID string  `json:"fragmentId"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RememberResult is the remember operation's return shape.
type RememberResult struct {
	ID        string           `json:"id"`
	Keywords  []string         `json:"keywords"`
	TTLTier   fragment.TTLTier `json:"ttlTier"`
	Scope     string           `json:"scope"`
	Created   bool             `json:"created"`
	Conflicts []Conflict       `json:"conflicts,omitempty"`
	Note      string           `json:"note,omitempty"`
}

// Remember runs the write path: validate → redact+hash
// (factory) → store-insert → index → auto-link → enqueue. A failure before
// store-insert prevents all later effects; after it, every later effect is
// best-effort.
func (m *Manager) Remember(ctx context.Context, p RememberParams) (*RememberResult, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, memerr.NewValidationError("content", "required")
	}
	if strings.TrimSpace(p.Topic) == "" {
		return nil, memerr.NewValidationError("topic", "required")
	}
	if !p.Type.Valid() {
		return nil, memerr.NewValidationError("type", "must be one of fact|decision|error|preference|procedure|relation")
	}
	if p.Scope != "" && p.Scope != ScopePermanent && p.Scope != ScopeSession {
		return nil, memerr.NewValidationError("scope", "must be permanent or session")
	}

	agentID := scopeOf(p.AgentID)
	f, err := m.factory.Create(fragment.CreateParams{
		Content: p.Content, Topic: p.Topic, Keywords: p.Keywords, Type: p.Type,
		Importance: p.Importance, Source: p.Source, LinkedTo: p.LinkedTo,
		AgentID: agentID, IsAnchor: p.IsAnchor,
	})
	if err != nil {
		return nil, memerr.NewValidationError("type", err.Error())
	}

	if p.Scope == ScopeSession {
		return m.rememberToSession(ctx, f, p.SessionID)
	}

	var embed []float32
	if embedding.ShouldEmbed(f.Importance, m.embedder) {
		embed, _ = m.embedder.Embed(ctx, f.Content)
	}

	id, created, err := m.store.Insert(ctx, f, embed)
	if err != nil {
		return nil, err
	}
	if !created {
		// Hash collision: the existing row keeps its id and the greater
		// importance.
		return &RememberResult{ID: id, Keywords: f.Keywords, TTLTier: f.TTLTier, Scope: ScopePermanent, Created: false}, nil
	}
	f.Embedding = embed

	result := &RememberResult{ID: id, Keywords: f.Keywords, TTLTier: f.TTLTier, Scope: ScopePermanent, Created: true}
	if !m.index.Index(ctx, f, p.SessionID) {
		result.Note = "keyword index update failed; fragment stored but not yet visible to L1"
	}
	m.activity.RecordFragment(ctx, p.SessionID, id)
	m.activity.RecordKeywords(ctx, p.SessionID, f.Keywords)

	for _, linked := range p.LinkedTo {
		if err := m.store.CreateLink(ctx, id, linked, fragment.RelationRelated, agentID); err != nil {
			slog.Warn("remember: explicit link failed", "from", id, "to", linked, "error", err)
		}
	}

	if !f.Type.EvaluationExcluded() {
		m.index.EnqueueEvaluation(ctx, evaluator.Job{
			FragmentID: id, AgentID: agentID, Type: string(f.Type), Content: f.Content,
		})
	}

	if len(embed) > 0 {
		result.Conflicts = m.scanConflicts(ctx, f, embed, agentID)
		m.autoLink(ctx, f, embed, agentID)
	}
	return result, nil
}

// rememberToSession honours scope=session by writing only to the session's
// working-memory queue.
func (m *Manager) rememberToSession(ctx context.Context, f *fragment.Fragment, sessionID string) (*RememberResult, error) {
	if sessionID == "" {
		return nil, memerr.NewValidationError("sessionId", "required for scope=session")
	}
	m.index.PushWorkingMemory(ctx, sessionID, index.WorkingMemoryEntry{
		FragmentID: f.ID, Content: f.Content, Topic: f.Topic,
		Tokens: f.EstimatedTokens, Importance: f.Importance,
	})
	m.activity.RecordKeywords(ctx, sessionID, f.Keywords)
	return &RememberResult{ID: f.ID, Keywords: f.Keywords, TTLTier: f.TTLTier, Scope: ScopeSession, Created: true}, nil
}

// scanConflicts reports same-topic peers whose cosine similarity exceeds
// the conflict threshold. Similarity is taken from L3 only.
func (m *Manager) scanConflicts(ctx context.Context, f *fragment.Fragment, embed []float32, agentID string) []Conflict {
	peers, err := m.store.SearchBySemantic(ctx, embed, 10, m.cfg.ConflictSimilarity, agentID)
	if err != nil {
		slog.Warn("remember: conflict scan failed", "fragment_id", f.ID, "error", err)
		return nil
	}
	var conflicts []Conflict
	for _, peer := range peers {
		if peer.Fragment.ID == f.ID || peer.Fragment.Topic != f.Topic {
			continue
		}
		conflicts = append(conflicts, Conflict{
			FragmentID: peer.Fragment.ID, Content: peer.Fragment.Content, Similarity: peer.Similarity,
		})
	}
	return conflicts
}

// autoLink runs insert-time similarity-driven edge
// creation: up to AutoLinkLimit same-topic peers above the similarity
// floor, each classified into resolved_by/superseded_by/related.
func (m *Manager) autoLink(ctx context.Context, f *fragment.Fragment, embed []float32, agentID string) {
	peers, err := m.store.SearchBySemantic(ctx, embed, 10, m.cfg.AutoLinkSimilarity, agentID)
	if err != nil {
		slog.Warn("remember: auto-link scan failed", "fragment_id", f.ID, "error", err)
		return
	}
	linked := 0
	for _, peer := range peers {
		if linked >= m.cfg.AutoLinkLimit {
			break
		}
		if peer.Fragment.ID == f.ID || peer.Fragment.Topic != f.Topic {
			continue
		}
		from, to, rel := classifyAutoLink(f, peer.Fragment, peer.Similarity, m.cfg.SupersedeSimilarity)
		if err := m.store.CreateLink(ctx, from, to, rel, agentID); err != nil {
			slog.Warn("remember: auto-link failed", "from", from, "to", to, "relation", rel, "error", err)
			continue
		}
		linked++
	}
}

// classifyAutoLink picks the edge for a (new fragment, existing peer) pair.
func classifyAutoLink(newFrag, peer *fragment.Fragment, similarity, supersedeSim float64) (from, to string, rel fragment.RelationType) {
	switch {
	case newFrag.Type == fragment.TypeError && peer.Type == fragment.TypeError && marksResolution(newFrag.Content):
		return newFrag.ID, peer.ID, fragment.RelationResolvedBy
	case newFrag.Type == peer.Type && similarity > supersedeSim && newFrag.CreatedAt.After(peer.CreatedAt):
		return peer.ID, newFrag.ID, fragment.RelationSupersededBy
	default:
		return newFrag.ID, peer.ID, fragment.RelationRelated
	}
}

// resolutionMarkers are the content cues that a new error fragment records
// a resolution rather than a fresh failure.
var resolutionMarkers = []string{"[해결됨]", "해결", "resolved", "fixed"}

func marksResolution(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range resolutionMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// rememberDirect is the internal write path reflect uses: it bypasses the
// scope/session branching but keeps the full post-insert pipeline.
func (m *Manager) rememberDirect(ctx context.Context, p fragment.CreateParams, sessionID string) (*fragment.Fragment, error) {
	f, err := m.factory.Create(p)
	if err != nil {
		return nil, memerr.NewValidationError("type", err.Error())
	}
	var embed []float32
	if embedding.ShouldEmbed(f.Importance, m.embedder) {
		embed, _ = m.embedder.Embed(ctx, f.Content)
	}
	id, created, err := m.store.Insert(ctx, f, embed)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := m.store.GetByID(ctx, id, p.AgentID)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}
	f.Embedding = embed
	m.index.Index(ctx, f, sessionID)
	m.activity.RecordFragment(ctx, sessionID, id)
	return f, nil
}

// insertPrepared stores an already-constructed fragment, used by reflect's
// split-summary path where the factory ran in CreateSplit.
func (m *Manager) insertPrepared(ctx context.Context, f *fragment.Fragment, sessionID string) (string, error) {
	var embed []float32
	if embedding.ShouldEmbed(f.Importance, m.embedder) {
		embed, _ = m.embedder.Embed(ctx, f.Content)
	}
	id, created, err := m.store.Insert(ctx, f, embed)
	if err != nil {
		return "", err
	}
	if created {
		f.Embedding = embed
		m.index.Index(ctx, f, sessionID)
		m.activity.RecordFragment(ctx, sessionID, id)
	}
	return id, nil
}
