// Package evaluator implements the background quality evaluator: a
// Start(ctx)/Stop() worker with a stopCh, sync.Once, WaitGroup, and a
// health accessor, polling the durable evaluation queue in the in-memory
// store and writing LLM verdicts back onto fragments.
package evaluator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/llm"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
)

// Job is one queued evaluation request.
type Job struct {
	FragmentID string `json:"fragmentId"`
	AgentID    string `json:"agentId"`
	Type       string `json:"type"`
	Content    string `json:"content"`
}

// Queue is the subset of the in-memory index the Evaluator needs. It
// exchanges raw JSON rather than a concrete Job type so *index.Index can
// satisfy this interface structurally without the evaluator package
// depending on go-redis or the index package depending on evaluator.
type Queue interface {
	DequeueEvaluation(ctx context.Context, timeout time.Duration) (json.RawMessage, bool)
}

// verdict is the LLM's structured judgement.
type verdict struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	Action    string  `json:"action"`
}

// Status reports the worker's current health.
type Status struct {
	Running       bool
	JobsProcessed int
	LastActivity  time.Time
}

// Evaluator is the background worker.
type Evaluator struct {
	queue        Queue
	store        *store.Store
	llm          llm.Client
	pollInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	running       bool
	jobsProcessed int
	lastActivity  time.Time
}

// New constructs an Evaluator with injected collaborators.
func New(queue Queue, st *store.Store, llmClient llm.Client, pollInterval time.Duration) *Evaluator {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Evaluator{queue: queue, store: st, llm: llmClient, pollInterval: pollInterval, stopCh: make(chan struct{})}
}

// Start begins the poll loop in a goroutine.
func (e *Evaluator) Start(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	e.wg.Add(1)
	go e.run(ctx)
}

// Stop signals the worker to stop and waits for the current job to finish.
func (e *Evaluator) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Health returns the worker's current status.
func (e *Evaluator) Health() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{Running: e.running, JobsProcessed: e.jobsProcessed, LastActivity: e.lastActivity}
}

func (e *Evaluator) run(ctx context.Context) {
	defer e.wg.Done()
	log := slog.With("component", "evaluator")
	log.Info("evaluator started")

	for {
		select {
		case <-e.stopCh:
			log.Info("evaluator shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, evaluator shutting down")
			return
		default:
		}

		raw, ok := e.queue.DequeueEvaluation(ctx, e.pollInterval)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			log.Warn("evaluator: malformed job, dropping", "error", err)
			continue
		}
		e.process(ctx, &job)
	}
}

func (e *Evaluator) process(ctx context.Context, job *Job) {
	log := slog.With("fragment_id", job.FragmentID)
	if !e.llm.Reachable() {
		log.Warn("evaluator: LLM unreachable, dropping job")
		return
	}

	prompt := buildPrompt(job)
	raw, err := e.llm.CompleteJSON(ctx, prompt)
	if err != nil {
		log.Warn("evaluator: LLM call failed, dropping job", "error", err)
		return
	}

	var v verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn("evaluator: malformed LLM verdict, dropping job", "error", err)
		return
	}

	importance := clampByAction(v.Score, v.Action)
	if err := e.applyVerdict(ctx, job, importance, v.Rationale); err != nil {
		log.Warn("evaluator: failed to apply verdict", "error", err)
		return
	}

	e.mu.Lock()
	e.jobsProcessed++
	e.lastActivity = time.Now()
	e.mu.Unlock()
}

// clampByAction caps the LLM's score by verdict action: downgrade at
// 0.3, discard at 0.1.
func clampByAction(score float64, action string) float64 {
	switch action {
	case "downgrade":
		return clampMax(score, 0.3)
	case "discard":
		return clampMax(score, 0.1)
	default:
		return score
	}
}

func clampMax(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func buildPrompt(job *Job) string {
	return "Evaluate this stored memory fragment for quality and continued relevance.\n" +
		"Type: " + job.Type + "\n" +
		"Content: " + job.Content + "\n" +
		`Respond with JSON: {"score": <0..1>, "rationale": "<string>", "action": "keep|downgrade|discard"}`
}

func (e *Evaluator) applyVerdict(ctx context.Context, job *Job, importance float64, rationale string) error {
	patch := store.Patch{Importance: &importance}
	_, err := e.store.Update(ctx, job.FragmentID, patch, "", job.AgentID)
	if err != nil {
		return err
	}
	return e.appendRationaleKeyword(ctx, job, rationale)
}

func (e *Evaluator) appendRationaleKeyword(ctx context.Context, job *Job, rationale string) error {
	f, err := e.store.GetByID(ctx, job.FragmentID, job.AgentID)
	if err != nil {
		return err
	}
	keywords := append(append([]string{}, f.Keywords...), "Rationale: "+rationale)
	patch := store.Patch{Keywords: keywords}
	_, err = e.store.Update(ctx, job.FragmentID, patch, f.ContentHash, job.AgentID)
	return err
}

// ExcludedFromEvaluation reports whether a fragment type is excluded from
// the evaluation queue.
func ExcludedFromEvaluation(typ string) bool {
	switch typ {
	case "fact", "procedure", "error":
		return true
	default:
		return false
	}
}
