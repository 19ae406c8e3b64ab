// Package memory implements MemoryManager: the single
// facade exposing the eleven agent operations, composing the factory,
// store, index, search, NLI, evaluator queue, consolidator, and session
// activity tracker, and enforcing the cross-component invariants none of
// them can see alone. The manager is an explicit construction with
// injected collaborators — no package-level singleton — so tests and
// shutdown own its lifetime.
package memory

import (
	"context"
	"time"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/activity"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/consolidator"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/embedding"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/llm"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/search"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Config holds the facade-level thresholds.
type Config struct {
	// ConflictSimilarity is the L3 cosine floor above which a same-topic
	// peer counts as a conflict at remember time. Compared against raw
	// cosine similarity, never the composite score.
	ConflictSimilarity float64
	// AutoLinkSimilarity is the cosine floor for auto-link candidates.
	AutoLinkSimilarity float64
	// SupersedeSimilarity is the cosine floor at which a same-type, newer
	// fragment supersedes its peer instead of merely relating to it.
	SupersedeSimilarity float64
	// AutoLinkLimit caps auto-link candidates per remember.
	AutoLinkLimit int
	// ContextTokenBudget is the default context() budget.
	ContextTokenBudget int
	// CoreMemoryShare is the fraction of the context budget given to Core
	// Memory; the remainder goes to Working Memory.
	CoreMemoryShare float64
	// CoreMinImportance filters the per-type Core Memory recalls.
	CoreMinImportance float64
	// CycleCheckLimit bounds the BFS used to guard reflect's auto-links.
	CycleCheckLimit int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ConflictSimilarity:  0.8,
		AutoLinkSimilarity:  0.7,
		SupersedeSimilarity: 0.85,
		AutoLinkLimit:       3,
		ContextTokenBudget:  2000,
		CoreMemoryShare:     0.65,
		CoreMinImportance:   0.3,
		CycleCheckLimit:     20,
	}
}

// Manager is MemoryManager.
type Manager struct {
	factory      *fragment.Factory
	store        *store.Store
	index        *index.Index
	search       *search.Search
	embedder     embedding.Provider
	llm          llm.Client
	consolidator *consolidator.Consolidator
	activity     *activity.Tracker
	cfg          Config
	clock        Clock
}

// New constructs a Manager with injected collaborators.
func New(
	factory *fragment.Factory,
	st *store.Store,
	idx *index.Index,
	srch *search.Search,
	embedder embedding.Provider,
	llmClient llm.Client,
	cons *consolidator.Consolidator,
	tracker *activity.Tracker,
	cfg Config,
	clock Clock,
) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if cfg.ConflictSimilarity == 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		factory: factory, store: st, index: idx, search: srch,
		embedder: embedder, llm: llmClient, consolidator: cons,
		activity: tracker, cfg: cfg, clock: clock,
	}
}

// scopeOf normalizes a caller-supplied agent id to the shared pool tag
// when absent.
func scopeOf(agentID string) string {
	if agentID == "" {
		return fragment.DefaultSharedScope
	}
	return agentID
}

// RecordToolCall forwards a tool invocation to the session activity
// tracker, called by the transport layer for every operation.
func (m *Manager) RecordToolCall(ctx context.Context, sessionID, tool string) {
	m.activity.RecordToolCall(ctx, sessionID, tool)
}
