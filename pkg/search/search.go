// Package search implements FragmentSearch: the three-tier
// cascade (L1 keyword-set → L2 durable keyword search → L3 semantic),
// composite/simple ranking, token-budget trimming, link expansion, stale
// annotation, and threshold filtering. Modeled as a pipeline of stage
// functions over a shared accumulator.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/embedding"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Config tunes ranking, staleness, and link expansion.
type Config struct {
	ImportanceWeight    float64
	RecencyWeight       float64
	ActivationThreshold int
	LinkedFragmentLimit int
	DefaultTokenBudget  int
	Stale               StaleThresholds
}

// StaleThresholds holds per-type days-since-verified cutoffs.
type StaleThresholds struct {
	Procedure int
	Fact      int
	Decision  int
	Default   int
}

func (t StaleThresholds) forType(typ fragment.Type) int {
	switch typ {
	case fragment.TypeProcedure:
		return t.Procedure
	case fragment.TypeFact:
		return t.Fact
	case fragment.TypeDecision:
		return t.Decision
	default:
		return t.Default
	}
}

// Search is FragmentSearch.
type Search struct {
	store     *store.Store
	index     *index.Index
	embedder  embedding.Provider
	cfg       Config
	clock     Clock
}

// New constructs a Search with injected collaborators.
func New(st *store.Store, idx *index.Index, embedder embedding.Provider, cfg Config, clock Clock) *Search {
	if clock == nil {
		clock = time.Now
	}
	if cfg.LinkedFragmentLimit <= 0 {
		cfg.LinkedFragmentLimit = 10
	}
	if cfg.DefaultTokenBudget <= 0 {
		cfg.DefaultTokenBudget = 1000
	}
	return &Search{store: st, index: idx, embedder: embedder, cfg: cfg, clock: clock}
}

// Params is one recall's search parameters.
type Params struct {
	Keywords         []string
	Topic            string
	Type             string
	Text             string
	MinImportance    float64
	TokenBudget      int
	IncludeLinks     *bool
	LinkRelationType fragment.RelationType
	Threshold        float64
	AgentID          string
}

// Candidate wraps a fragment with the similarity score that produced it,
// if any — the shared accumulator the cascade stages append into.
type Candidate struct {
	Fragment   *fragment.Fragment
	Similarity *float64 // nil for L1/L2-only hits
	StaleInfo  *StaleInfo
}

// StaleInfo annotates a fragment whose verification has aged out.
type StaleInfo struct {
	Warning           string
	DaysSinceVerified int
}

// Result is RecallResult.
type Result struct {
	Fragments   []Candidate
	TotalTokens int
	SearchPath  string
	Count       int
}

// Search runs the cascade and returns ranked, budget-trimmed, annotated results.
func (s *Search) Search(ctx context.Context, p Params) (*Result, error) {
	var pathParts []string
	candidates := map[string]*Candidate{}

	l1IDs := s.l1(ctx, p)
	pathParts = append(pathParts, sprintfStage("L1", len(l1IDs)))
	for _, id := range l1IDs {
		if f, ok := s.index.GetHot(ctx, id); ok {
			candidates[id] = &Candidate{Fragment: f}
		}
	}
	hotHits := len(candidates)
	if hotHits > 0 {
		pathParts = append(pathParts, sprintfStage("HotCache", hotHits))
	}

	missing := idsNotIn(l1IDs, candidates)
	if len(missing) > 0 {
		fetched, err := s.store.GetByIDs(ctx, missing, p.AgentID)
		if err != nil {
			slog.Warn("search: fetch L1 misses from store failed", "error", err)
		}
		for _, f := range fetched {
			candidates[f.ID] = &Candidate{Fragment: f}
		}
	}

	needsL2 := len(candidates) < 3 || p.MinImportance > 0
	if needsL2 {
		l2, err := s.store.SearchByKeywords(ctx, p.Keywords, store.KeywordSearchParams{
			Type: p.Type, Topic: p.Topic, MinImportance: p.MinImportance, Limit: 30,
		}, p.AgentID)
		if err != nil {
			slog.Warn("search: L2 failed", "error", err)
		} else {
			pathParts = append(pathParts, sprintfStage("L2", len(l2)))
			for _, f := range l2 {
				if _, exists := candidates[f.ID]; !exists {
					candidates[f.ID] = &Candidate{Fragment: f}
				}
			}
		}
	}

	if len(candidates) < 3 && p.Text != "" && s.embedder != nil {
		l3, err := s.runL3(ctx, p)
		if err != nil {
			slog.Warn("search: L3 failed", "error", err)
		} else {
			pathParts = append(pathParts, sprintfStage("L3", len(l3)))
			for _, c := range l3 {
				c := c
				existing, ok := candidates[c.Fragment.ID]
				if !ok || (c.Similarity != nil && (existing.Similarity == nil || *c.Similarity > *existing.Similarity)) {
					candidates[c.Fragment.ID] = &c
				}
			}
		}
	}

	list := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, *c)
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		slog.Warn("search: store count failed, defaulting to simple ranking", "error", err)
	}
	s.rank(list, total >= s.cfg.ActivationThreshold)

	includeLinks := p.IncludeLinks == nil || *p.IncludeLinks
	if includeLinks && len(list) > 0 {
		list = s.expandLinks(ctx, list, p)
		s.rank(list, total >= s.cfg.ActivationThreshold)
	}

	s.annotateStale(list)

	if p.Threshold > 0 {
		list = filterThreshold(list, p.Threshold)
	}

	budget := p.TokenBudget
	if budget <= 0 {
		budget = s.cfg.DefaultTokenBudget
	}
	trimmed, tokens := s.trimToBudget(list, budget)

	ids := make([]string, len(trimmed))
	for i, c := range trimmed {
		ids[i] = c.Fragment.ID
	}
	go s.postRetrieval(context.Background(), ids, p.AgentID, trimmed)

	return &Result{
		Fragments:   trimmed,
		TotalTokens: tokens,
		SearchPath:  joinStages(pathParts),
		Count:       len(trimmed),
	}, nil
}

// l1 builds the L1 candidate id set: intersect keyword/topic/type filters,
// falling back to recency when no filter was supplied.
func (s *Search) l1(ctx context.Context, p Params) []string {
	var sets [][]string
	if len(p.Keywords) > 0 {
		sets = append(sets, s.index.SearchByKeywords(ctx, p.Keywords, 3))
	}
	if p.Topic != "" {
		sets = append(sets, s.index.SearchByTopic(ctx, p.Topic))
	}
	if p.Type != "" {
		sets = append(sets, s.index.SearchByType(ctx, p.Type))
	}
	if len(sets) == 0 {
		return s.index.Recent(ctx, 20)
	}
	return intersectAll(sets)
}

func (s *Search) runL3(ctx context.Context, p Params) ([]Candidate, error) {
	text := prepareQueryText(p.Text, 32000) // ~8k tokens at ~4 chars/token
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		return nil, err
	}
	results, err := s.store.SearchBySemantic(ctx, vec, 10, 0.3, p.AgentID)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, len(results))
	for i, r := range results {
		sim := r.Similarity
		out[i] = Candidate{Fragment: r.Fragment, Similarity: &sim}
	}
	return out, nil
}

func (s *Search) expandLinks(ctx context.Context, list []Candidate, p Params) []Candidate {
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.Fragment.ID
	}
	relation := p.LinkRelationType
	linked, err := s.store.GetLinkedFragments(ctx, ids, relation, s.cfg.LinkedFragmentLimit, p.AgentID)
	if err != nil {
		slog.Warn("search: link expansion failed", "error", err)
		return list
	}
	seen := map[string]bool{}
	for _, c := range list {
		seen[c.Fragment.ID] = true
	}
	for _, lf := range linked {
		if seen[lf.Fragment.ID] {
			continue
		}
		seen[lf.Fragment.ID] = true
		list = append(list, Candidate{Fragment: lf.Fragment})
	}
	return list
}

func (s *Search) rank(list []Candidate, composite bool) {
	now := s.clock()
	sort.SliceStable(list, func(i, j int) bool {
		return s.score(list[i].Fragment, now, composite) > s.score(list[j].Fragment, now, composite)
	})
}

func (s *Search) score(f *fragment.Fragment, now time.Time, composite bool) float64 {
	if !composite {
		return f.Importance
	}
	ageDays := now.Sub(f.CreatedAt).Hours() / 24
	recency := math.Max(0, 1-ageDays/90)
	return s.cfg.ImportanceWeight*f.Importance + s.cfg.RecencyWeight*recency
}

func (s *Search) annotateStale(list []Candidate) {
	now := s.clock()
	for i := range list {
		f := list[i].Fragment
		threshold := s.cfg.Stale.forType(f.Type)
		daysSince := int(now.Sub(f.VerifiedAt).Hours() / 24)
		if daysSince > threshold {
			list[i].StaleInfo = &StaleInfo{
				Warning:           "fragment has not been verified recently",
				DaysSinceVerified: daysSince,
			}
		}
	}
}

func filterThreshold(list []Candidate, threshold float64) []Candidate {
	out := list[:0]
	for _, c := range list {
		if c.Similarity != nil && *c.Similarity < threshold {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Search) trimToBudget(list []Candidate, budget int) ([]Candidate, int) {
	var out []Candidate
	total := 0
	for _, c := range list {
		if total+c.Fragment.EstimatedTokens > budget {
			break
		}
		out = append(out, c)
		total += c.Fragment.EstimatedTokens
	}
	return out, total
}

// postRetrieval increments access counters and repopulates the hot cache,
// asynchronously.
func (s *Search) postRetrieval(ctx context.Context, ids []string, agentID string, results []Candidate) {
	if len(ids) == 0 {
		return
	}
	if err := s.store.IncrementAccess(ctx, ids, agentID); err != nil {
		slog.Warn("search: post-retrieval access increment failed", "error", err)
	}
	for _, c := range results {
		s.index.PutHot(ctx, c.Fragment)
	}
}

func idsNotIn(ids []string, have map[string]*Candidate) []string {
	var out []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func intersectAll(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, set := range sets {
		seen := map[string]bool{}
		for _, id := range set {
			if seen[id] {
				continue
			}
			seen[id] = true
			counts[id]++
		}
	}
	var out []string
	for id, c := range counts {
		if c == len(sets) {
			out = append(out, id)
		}
	}
	return out
}

func sprintfStage(name string, n int) string {
	return name + ":" + strconv.Itoa(n)
}

func joinStages(parts []string) string {
	return strings.Join(parts, " → ")
}
