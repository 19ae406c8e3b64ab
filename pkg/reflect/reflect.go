// Package reflect implements AutoReflect: the session-end
// summarizer triggered on session close, idle expiry, and server shutdown.
// The idle-expiry sweep uses the same stopCh/sync.Once/WaitGroup worker
// shape as pkg/evaluator. It depends on pkg/activity and pkg/llm
// directly, but reaches MemoryManager only through the narrow Reflecter/
// Rememberer interfaces below — never importing pkg/memory — so
// pkg/memory can depend on pkg/reflect without a cycle.
package reflect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/activity"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/llm"
)

// TaskEffectiveness is reflect's optional session-level outcome report.
type TaskEffectiveness struct {
	OverallSuccess bool
	ToolHighlights []string
	ToolPainPoints []string
}

// Params is MemoryManager.reflect's argument shape.
type Params struct {
	Summary           string
	SessionID         string
	Decisions         []string
	ErrorsResolved    []string
	NewProcedures     []string
	OpenQuestions     []string
	TaskEffectiveness *TaskEffectiveness
	AgentID           string
}

// Result reports the fragments reflect materialised.
type Result struct {
	FragmentIDs []string
}

// Reflecter is the subset of MemoryManager AutoReflect drives when an LLM
// is reachable.
type Reflecter interface {
	Reflect(ctx context.Context, p Params) (*Result, error)
}

// RememberParams is MemoryManager.remember's argument shape, narrowed to
// the fields AutoReflect's LLM-unreachable fallback needs.
type RememberParams struct {
	Content string
	Type    fragment.Type
	AgentID string
}

// Rememberer is the subset of MemoryManager AutoReflect drives when no LLM
// is reachable, to write the single minimal fact fragment.
type Rememberer interface {
	Remember(ctx context.Context, p RememberParams) (*fragment.Fragment, error)
}

// summary is the LLM's structured reflection.
type summary struct {
	Summary        string   `json:"summary"`
	Decisions      []string `json:"decisions"`
	ErrorsResolved []string `json:"errors_resolved"`
	NewProcedures  []string `json:"new_procedures"`
	OpenQuestions  []string `json:"open_questions"`
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// AutoReflect is the session-end summarizer.
type AutoReflect struct {
	activity   *activity.Tracker
	llm        llm.Client
	reflecter  Reflecter
	rememberer Rememberer
	idleAfter  time.Duration
	sweepEvery time.Duration
	clock      Clock

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs an AutoReflect with injected collaborators.
func New(tracker *activity.Tracker, llmClient llm.Client, reflecter Reflecter, rememberer Rememberer, idleAfter, sweepEvery time.Duration, clock Clock) *AutoReflect {
	if idleAfter <= 0 {
		idleAfter = 30 * time.Minute
	}
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &AutoReflect{
		activity: tracker, llm: llmClient, reflecter: reflecter, rememberer: rememberer,
		idleAfter: idleAfter, sweepEvery: sweepEvery, clock: clock, stopCh: make(chan struct{}),
	}
}

// OnSessionEnd runs AutoReflect for one session, triggered by
// an explicit close or by the idle-expiry sweep. It always marks the
// session reflected before returning, even on an LLM or store failure,
// since reflection is best-effort and must not retry forever.
func (a *AutoReflect) OnSessionEnd(ctx context.Context, sessionID, agentID string) error {
	rec, ok := a.activity.Get(ctx, sessionID)
	if !ok || rec.Reflected || len(rec.ToolCalls) == 0 {
		a.activity.MarkReflected(ctx, sessionID)
		return nil
	}
	defer a.activity.MarkReflected(ctx, sessionID)

	if a.llm != nil && a.llm.Reachable() {
		if err := a.reflectViaLLM(ctx, rec, sessionID, agentID); err == nil {
			return nil
		} else {
			slog.Warn("autoreflect: llm-structured reflect failed, falling back to minimal fact", "session_id", sessionID, "error", err)
		}
	}

	return a.reflectMinimal(ctx, rec, sessionID, agentID)
}

func (a *AutoReflect) reflectViaLLM(ctx context.Context, rec *activity.Record, sessionID, agentID string) error {
	prompt := buildSummaryPrompt(sessionID, rec)
	raw, err := a.llm.CompleteJSON(ctx, prompt)
	if err != nil {
		return fmt.Errorf("reflect: llm completion failed: %w", err)
	}
	var s summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("reflect: malformed llm summary: %w", err)
	}
	_, err = a.reflecter.Reflect(ctx, Params{
		Summary:        s.Summary,
		SessionID:      sessionID,
		Decisions:      s.Decisions,
		ErrorsResolved: s.ErrorsResolved,
		NewProcedures:  s.NewProcedures,
		OpenQuestions:  s.OpenQuestions,
		AgentID:        agentID,
	})
	return err
}

func (a *AutoReflect) reflectMinimal(ctx context.Context, rec *activity.Record, sessionID, agentID string) error {
	duration := rec.LastActivity.Sub(rec.StartedAt).Round(time.Second)
	content := fmt.Sprintf("session %s: %s, tools=%s, fragments=%d", sessionID, duration, summarizeTools(rec.ToolCalls), len(rec.Fragments))
	_, err := a.rememberer.Remember(ctx, RememberParams{Content: content, Type: fragment.TypeFact, AgentID: agentID})
	return err
}

func buildSummaryPrompt(sessionID string, rec *activity.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize session %s. Respond with JSON {\"summary\":string,\"decisions\":[string],\"errors_resolved\":[string],\"new_procedures\":[string],\"open_questions\":[string]}.\n", sessionID)
	fmt.Fprintf(&b, "Tools used: %s\n", summarizeTools(rec.ToolCalls))
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(rec.Keywords, ", "))
	fmt.Fprintf(&b, "Fragments touched: %d\n", len(rec.Fragments))
	return b.String()
}

func summarizeTools(calls map[string]int) string {
	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s(%d)", name, calls[name]))
	}
	return strings.Join(parts, ",")
}

// Start begins the idle-expiry sweep: every sweepEvery, any unreflected
// session whose lastActivity is older than idleAfter is treated as expired
// and reflected.
func (a *AutoReflect) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			case <-ticker.C:
				a.sweepExpired(ctx)
			}
		}
	}()
}

func (a *AutoReflect) sweepExpired(ctx context.Context) {
	candidates := a.activity.ScanUnreflected(ctx, 100)
	cutoff := a.clock().Add(-a.idleAfter)
	for _, sessionID := range candidates {
		rec, ok := a.activity.Get(ctx, sessionID)
		if !ok || rec.LastActivity.After(cutoff) {
			continue
		}
		if err := a.OnSessionEnd(ctx, sessionID, fragment.DefaultSharedScope); err != nil {
			slog.Warn("autoreflect: idle-expiry reflect failed", "session_id", sessionID, "error", err)
		}
	}
}

// ReflectAll reflects every still-unreflected session regardless of idle
// age, called once on server shutdown.
func (a *AutoReflect) ReflectAll(ctx context.Context) {
	for _, sessionID := range a.activity.ScanUnreflected(ctx, 100) {
		if err := a.OnSessionEnd(ctx, sessionID, fragment.DefaultSharedScope); err != nil {
			slog.Warn("autoreflect: shutdown reflect failed", "session_id", sessionID, "error", err)
		}
	}
}

// Stop halts the idle-expiry sweep, used on server shutdown alongside a
// final ReflectAll pass for any still-open sessions.
func (a *AutoReflect) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}
