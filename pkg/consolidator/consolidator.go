// Package consolidator implements the 11-stage on-demand maintenance
// pipeline: a struct holding its injected collaborators with one method
// per stage, each stage logging its own count and swallowing its own
// failure so the pipeline always runs to completion. Run is on-demand,
// one instance at a time per process.
package consolidator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/embedding"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/llm"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/nli"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// Notifier is the subset of pkg/notify.Service the Consolidator needs. A nil
// Notifier (the zero value of the concrete type, which is itself nil-safe)
// is fine — both stages that use it already tolerate nil.
type Notifier interface {
	ConsolidationReport(ctx context.Context, report string)
	PendingContradiction(ctx context.Context, aID, bID string, similarity float64)
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Config parameterizes every stage.
type Config struct {
	Sweep                     store.SweepConfig
	AnchorAccessCount         int
	AnchorImportance          float64
	ContradictionSimThreshold float64
	PendingEnqueueThreshold   float64
	PendingDrainLimit         int
	EmbeddingBackfillBatch    int
	StaleGatherLimit          int
}

// Result reports per-stage counters for one Run, returned to the caller
// (MemoryManager.consolidate) and logged.
type Result struct {
	TTLTransitions          int64 `json:"ttlTransitions"`
	Decayed                 int64 `json:"decayed"`
	Expired                 int64 `json:"expired"`
	DedupMerged             int   `json:"dedupMerged"`
	EmbeddingsBackfilled    int   `json:"embeddingsBackfilled"`
	UtilityRecomputed       int64 `json:"utilityRecomputed"`
	AnchorsPromoted         int64 `json:"anchorsPromoted"`
	ContradictionsResolved  int   `json:"contradictionsResolved"`
	ContradictionsEscalated int   `json:"contradictionsEscalated"`
	PendingDrained          int   `json:"pendingDrained"`
	PendingResolved         int   `json:"pendingResolved"`
	IndexSetsPruned         int   `json:"indexSetsPruned"`
	IndexMembersPruned      int   `json:"indexMembersPruned"`
	StaleGathered           int   `json:"staleGathered"`
	ReportEmitted           bool  `json:"reportEmitted"`
}

// Consolidator is Consolidate, holding every collaborator it orchestrates.
type Consolidator struct {
	store      *store.Store
	index      *index.Index
	embedder   embedding.Provider
	llm        llm.Client
	classifier nli.Classifier
	notifier   Notifier
	cfg        Config
	clock      Clock

	mu      sync.Mutex
	running bool
}

// New constructs a Consolidator with injected collaborators.
func New(st *store.Store, idx *index.Index, embedder embedding.Provider, llmClient llm.Client, classifier nli.Classifier, notifier Notifier, cfg Config, clock Clock) *Consolidator {
	if clock == nil {
		clock = time.Now
	}
	return &Consolidator{store: st, index: idx, embedder: embedder, llm: llmClient, classifier: classifier, notifier: notifier, cfg: cfg, clock: clock}
}

// Run executes the 11-stage pipeline once. A second concurrent call while
// one is already running returns immediately with a zero Result.
func (c *Consolidator) Run(ctx context.Context) *Result {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		slog.Warn("consolidator: run already in progress, skipping")
		return &Result{}
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	res := &Result{}
	log := slog.With("component", "consolidator")
	log.Info("consolidation run started")

	c.stage("ttl transitions", func() { res.TTLTransitions = c.runTTLTransitions(ctx) })
	c.stage("decay", func() { res.Decayed = c.runDecay(ctx) })
	c.stage("expiry", func() { res.Expired = c.runExpiry(ctx) })
	c.stage("dedup merge", func() { res.DedupMerged = c.runDedup(ctx) })
	c.stage("embedding backfill", func() { res.EmbeddingsBackfilled = c.runEmbeddingBackfill(ctx) })
	c.stage("utility recompute", func() { res.UtilityRecomputed = c.runUtilityRecompute(ctx) })
	c.stage("anchor promotion", func() { res.AnchorsPromoted = c.runAnchorPromotion(ctx) })
	c.stage("contradiction detection", func() { c.runContradictionDetection(ctx, res) })
	c.stage("pending queue drain", func() { c.runPendingDrain(ctx, res) })
	c.stage("feedback report", func() { res.ReportEmitted = c.runFeedbackReport(ctx) })
	c.stage("index pruning and stale gather", func() {
		res.IndexSetsPruned, res.IndexMembersPruned = c.index.PruneOversizedSets(ctx)
		stale, err := c.store.GatherStale(ctx, c.cfg.StaleGatherLimit)
		if err != nil {
			slog.Warn("consolidator: stale gather failed", "error", err)
			return
		}
		res.StaleGathered = len(stale)
	})

	log.Info("consolidation run finished",
		"ttl_transitions", res.TTLTransitions, "decayed", res.Decayed, "expired", res.Expired,
		"dedup_merged", res.DedupMerged, "embeddings_backfilled", res.EmbeddingsBackfilled,
		"contradictions_resolved", res.ContradictionsResolved, "contradictions_escalated", res.ContradictionsEscalated,
	)
	return res
}

// stage runs fn with panic recovery, so one stage's crash never aborts the
// rest of the pipeline.
func (c *Consolidator) stage(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("consolidator: stage panicked, continuing", "stage", name, "panic", r)
		}
	}()
	fn()
}

func (c *Consolidator) runTTLTransitions(ctx context.Context) int64 {
	n, err := c.store.TransitionTTL(ctx, c.cfg.Sweep)
	if err != nil {
		slog.Warn("consolidator: ttl transition failed", "error", err)
		return 0
	}
	return n
}

func (c *Consolidator) runDecay(ctx context.Context) int64 {
	n, err := c.store.DecayImportance(ctx, c.cfg.Sweep)
	if err != nil {
		slog.Warn("consolidator: decay failed", "error", err)
		return 0
	}
	return n
}

func (c *Consolidator) runExpiry(ctx context.Context) int64 {
	n, err := c.store.DeleteExpired(ctx, c.cfg.Sweep)
	if err != nil {
		slog.Warn("consolidator: expiry sweep failed", "error", err)
		return 0
	}
	return n
}

func (c *Consolidator) runDedup(ctx context.Context) int {
	groups, err := c.store.FindDuplicates(ctx)
	if err != nil {
		slog.Warn("consolidator: find duplicates failed", "error", err)
		return 0
	}
	merged := 0
	for _, g := range groups {
		if err := c.store.MergeDuplicates(ctx, g); err != nil {
			slog.Warn("consolidator: merge duplicates failed", "content_hash", g.ContentHash, "error", err)
			continue
		}
		merged += len(g.IDs) - 1
	}
	return merged
}

func (c *Consolidator) runEmbeddingBackfill(ctx context.Context) int {
	if c.embedder == nil {
		return 0
	}
	n, err := c.store.GenerateMissingEmbeddings(ctx, c.cfg.EmbeddingBackfillBatch, c.embedder)
	if err != nil {
		slog.Warn("consolidator: embedding backfill failed", "error", err)
		return 0
	}
	return n
}

func (c *Consolidator) runUtilityRecompute(ctx context.Context) int64 {
	n, err := c.store.RecomputeUtility(ctx)
	if err != nil {
		slog.Warn("consolidator: utility recompute failed", "error", err)
		return 0
	}
	return n
}

func (c *Consolidator) runAnchorPromotion(ctx context.Context) int64 {
	n, err := c.store.PromoteAnchors(ctx, c.cfg.AnchorAccessCount, c.cfg.AnchorImportance)
	if err != nil {
		slog.Warn("consolidator: anchor promotion failed", "error", err)
		return 0
	}
	return n
}

// runContradictionDetection finds same-topic candidate pairs since the
// last watermark, classifies each through the hybrid NLI detector,
// resolves outright verdicts, escalates ambiguous ones to the LLM, and
// queues what's left for later.
func (c *Consolidator) runContradictionDetection(ctx context.Context, res *Result) {
	since, err := c.store.Watermark(ctx, "contradiction_detection")
	if err != nil {
		slog.Warn("consolidator: contradiction watermark read failed", "error", err)
		return
	}
	candidates, err := c.store.FindContradictionCandidates(ctx, since, c.cfg.ContradictionSimThreshold)
	if err != nil {
		slog.Warn("consolidator: find contradiction candidates failed", "error", err)
		return
	}
	for _, cand := range candidates {
		c.resolvePair(ctx, cand.AID, cand.AContent, cand.BID, cand.BContent, cand.Similarity, res)
	}
	if err := c.store.SetWatermark(ctx, "contradiction_detection", c.clock()); err != nil {
		slog.Warn("consolidator: contradiction watermark write failed", "error", err)
	}
}

// resolvePair runs the hybrid NLI/LLM/pending-queue cascade on one
// candidate pair.
func (c *Consolidator) resolvePair(ctx context.Context, aID, aContent, bID, bContent string, similarity float64, res *Result) {
	verdict := nli.DetectContradiction(ctx, c.classifier, aContent, bContent)
	if !verdict.NeedsEscalation {
		if verdict.Contradicts {
			c.resolve(ctx, aID, bID, res)
		}
		return
	}

	if c.llm != nil && c.llm.Reachable() {
		contradicts, ok := c.askLLM(ctx, aContent, bContent)
		if ok {
			if contradicts {
				c.resolve(ctx, aID, bID, res)
			}
			return
		}
	}

	if similarity >= c.cfg.PendingEnqueueThreshold {
		c.index.EnqueuePendingContradiction(ctx, index.PendingContradiction{AID: aID, AContent: aContent, BID: bID, BContent: bContent, Similarity: similarity})
		res.ContradictionsEscalated++
		if c.notifier != nil {
			c.notifier.PendingContradiction(ctx, aID, bID, similarity)
		}
	}
}

func (c *Consolidator) resolve(ctx context.Context, aID, bID string, res *Result) {
	if err := c.store.ResolveContradiction(ctx, aID, bID); err != nil {
		slog.Warn("consolidator: resolve contradiction failed", "a_id", aID, "b_id", bID, "error", err)
		return
	}
	res.ContradictionsResolved++
}

type llmVerdict struct {
	Contradicts bool `json:"contradicts"`
}

func (c *Consolidator) askLLM(ctx context.Context, a, b string) (contradicts bool, ok bool) {
	prompt := fmt.Sprintf(
		"Do these two memory fragments contradict each other? Respond with JSON {\"contradicts\": true|false}.\nA: %s\nB: %s",
		a, b,
	)
	raw, err := c.llm.CompleteJSON(ctx, prompt)
	if err != nil {
		return false, false
	}
	var v llmVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v.Contradicts, true
}

// runPendingDrain re-attempts the same cascade on queued pairs,
// re-enqueueing anything still unresolved.
func (c *Consolidator) runPendingDrain(ctx context.Context, res *Result) {
	pending := c.index.DrainPendingContradictions(ctx, c.cfg.PendingDrainLimit)
	res.PendingDrained = len(pending)
	for _, p := range pending {
		before := res.ContradictionsResolved
		c.resolvePair(ctx, p.AID, p.AContent, p.BID, p.BContent, p.Similarity, res)
		if res.ContradictionsResolved > before {
			res.PendingResolved++
		}
	}
}

// runFeedbackReport aggregates tool/task feedback since the last report
// watermark into a markdown artifact and notifies, then advances the
// watermark.
func (c *Consolidator) runFeedbackReport(ctx context.Context) bool {
	since, err := c.store.Watermark(ctx, "feedback_report")
	if err != nil {
		slog.Warn("consolidator: feedback watermark read failed", "error", err)
		return false
	}
	tool, task, err := c.store.FeedbackSince(ctx, since)
	if err != nil {
		slog.Warn("consolidator: feedback aggregation failed", "error", err)
		return false
	}
	if len(tool) == 0 && len(task) == 0 {
		return false
	}
	report := buildFeedbackReport(tool, task)
	if c.notifier != nil {
		c.notifier.ConsolidationReport(ctx, report)
	}
	if err := c.store.SetWatermark(ctx, "feedback_report", c.clock()); err != nil {
		slog.Warn("consolidator: feedback watermark write failed", "error", err)
	}
	return true
}

func buildFeedbackReport(tool []fragment.ToolFeedback, task []fragment.TaskFeedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Memory feedback report*\n")
	fmt.Fprintf(&b, "- tool feedback entries: %d\n", len(tool))
	fmt.Fprintf(&b, "- task feedback entries: %d\n", len(task))
	irrelevant := 0
	for _, f := range tool {
		if !f.Relevant {
			irrelevant++
		}
	}
	if irrelevant > 0 {
		fmt.Fprintf(&b, "- tools flagged not relevant: %d\n", irrelevant)
	}
	failures := 0
	for _, f := range task {
		if !f.OverallSuccess {
			failures++
		}
	}
	if failures > 0 {
		fmt.Fprintf(&b, "- sessions with unsuccessful outcomes: %d\n", failures)
	}
	return b.String()
}
