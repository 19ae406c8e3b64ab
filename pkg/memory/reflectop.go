package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/reflect"
)

// reflectTopic groups fragments materialised from a session recap; recall
// by keyword or type still reaches them individually.
const reflectTopic = "session"

// Prefixes applied to reflect's list entries.
const (
	resolvedPrefix = "[해결됨] "
	openPrefix     = "[미해결] "
)

// Reflect splits the summary into fact
// fragments, materialise each list entry as a typed fragment, run the
// rule-based auto-linking between them, optionally persist task
// effectiveness, and clear the session's working memory. It satisfies
// pkg/reflect.Reflecter so AutoReflect can drive it without importing this
// package.
func (m *Manager) Reflect(ctx context.Context, p reflect.Params) (*reflect.Result, error) {
	if strings.TrimSpace(p.Summary) == "" {
		return nil, memerr.NewValidationError("summary", "required")
	}
	agentID := scopeOf(p.AgentID)

	result := &reflect.Result{}

	summaryFrags, err := m.factory.CreateSplit(p.Summary, fragment.CreateParams{
		Topic: reflectTopic, Type: fragment.TypeFact, AgentID: agentID,
	})
	if err != nil {
		return nil, memerr.NewValidationError("summary", err.Error())
	}
	summaryIDs := make([]string, 0, len(summaryFrags))
	for _, f := range summaryFrags {
		id, err := m.insertPrepared(ctx, f, p.SessionID)
		if err != nil {
			return nil, err
		}
		summaryIDs = append(summaryIDs, id)
		result.FragmentIDs = append(result.FragmentIDs, id)
	}
	// The factory chained the split fragments through their linked_to
	// mirrors; the edge table is authoritative, so materialise the chain.
	for i := 1; i < len(summaryIDs); i++ {
		if err := m.store.CreateLink(ctx, summaryIDs[i-1], summaryIDs[i], fragment.RelationRelated, agentID); err != nil {
			slog.Warn("reflect: summary chain link failed", "from", summaryIDs[i-1], "to", summaryIDs[i], "error", err)
		}
	}

	decisionIDs := m.reflectList(ctx, p.Decisions, "", fragment.TypeDecision, p.SessionID, agentID, result)
	errorIDs := m.reflectList(ctx, p.ErrorsResolved, resolvedPrefix, fragment.TypeError, p.SessionID, agentID, result)
	procedureIDs := m.reflectList(ctx, p.NewProcedures, "", fragment.TypeProcedure, p.SessionID, agentID, result)
	m.reflectList(ctx, p.OpenQuestions, openPrefix, fragment.TypeFact, p.SessionID, agentID, result)

	// Rule-based auto-linking: errors are caused_by the decisions of the
	// same recap, procedures are the resolvers of its errors — each edge
	// guarded by a bounded cycle check.
	for _, errID := range errorIDs {
		for _, decID := range decisionIDs {
			m.linkIfAcyclic(ctx, errID, decID, fragment.RelationCausedBy, agentID)
		}
	}
	for _, procID := range procedureIDs {
		for _, errID := range errorIDs {
			m.linkIfAcyclic(ctx, procID, errID, fragment.RelationResolvedBy, agentID)
		}
	}

	if p.TaskEffectiveness != nil && p.SessionID != "" {
		if err := m.store.InsertTaskFeedback(ctx, fragment.TaskFeedback{
			SessionID:      p.SessionID,
			OverallSuccess: p.TaskEffectiveness.OverallSuccess,
			ToolHighlights: p.TaskEffectiveness.ToolHighlights,
			ToolPainPoints: p.TaskEffectiveness.ToolPainPoints,
			CreatedAt:      m.clock(),
		}); err != nil {
			slog.Warn("reflect: task effectiveness persist failed", "session_id", p.SessionID, "error", err)
		}
	}

	if p.SessionID != "" {
		m.index.ClearWorkingMemory(ctx, p.SessionID)
	}
	return result, nil
}

// reflectList materialises one recap list as typed fragments, returning
// the ids it created.
func (m *Manager) reflectList(ctx context.Context, entries []string, prefix string, typ fragment.Type, sessionID, agentID string, result *reflect.Result) []string {
	var ids []string
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		f, err := m.rememberDirect(ctx, fragment.CreateParams{
			Content: prefix + entry, Topic: reflectTopic, Type: typ, AgentID: agentID,
		}, sessionID)
		if err != nil {
			slog.Warn("reflect: list entry persist failed", "type", typ, "error", err)
			continue
		}
		ids = append(ids, f.ID)
		result.FragmentIDs = append(result.FragmentIDs, f.ID)
	}
	return ids
}

// linkIfAcyclic creates the edge unless doing so would close a directed
// cycle reachable within the BFS bound.
func (m *Manager) linkIfAcyclic(ctx context.Context, from, to string, rel fragment.RelationType, agentID string) {
	if m.wouldCreateCycle(ctx, from, to, agentID) {
		slog.Warn("reflect: auto-link skipped, would create cycle", "from", from, "to", to, "relation", rel)
		return
	}
	if err := m.store.CreateLink(ctx, from, to, rel, agentID); err != nil {
		slog.Warn("reflect: auto-link failed", "from", from, "to", to, "relation", rel, "error", err)
	}
}

// wouldCreateCycle walks outgoing edges from `to` breadth-first, visiting
// at most CycleCheckLimit nodes; reaching `from` means the new edge would
// close a cycle.
func (m *Manager) wouldCreateCycle(ctx context.Context, from, to, agentID string) bool {
	return bfsReaches(m.cfg.CycleCheckLimit, to, from, func(id string) []string {
		linked, err := m.store.GetLinkedFragments(ctx, []string{id}, "", 50, agentID)
		if err != nil {
			slog.Warn("reflect: cycle check walk failed, assuming acyclic", "fragment_id", id, "error", err)
			return nil
		}
		ids := make([]string, len(linked))
		for i, lf := range linked {
			ids[i] = lf.Fragment.ID
		}
		return ids
	})
}

// bfsReaches reports whether target is reachable from start via neighbors,
// visiting at most limit nodes.
func bfsReaches(limit int, start, target string, neighbors func(id string) []string) bool {
	if start == target {
		return true
	}
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 && len(visited) <= limit {
		current := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(current) {
			if next == target {
				return true
			}
			if visited[next] || len(visited) > limit {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return false
}

// minimalRememberer adapts the Manager to pkg/reflect.Rememberer for
// AutoReflect's LLM-unreachable fallback fragment.
type minimalRememberer struct{ m *Manager }

// NewMinimalRememberer returns the reflect.Rememberer view of mgr.
func NewMinimalRememberer(mgr *Manager) reflect.Rememberer {
	return minimalRememberer{m: mgr}
}

func (r minimalRememberer) Remember(ctx context.Context, p reflect.RememberParams) (*fragment.Fragment, error) {
	return r.m.rememberDirect(ctx, fragment.CreateParams{
		Content: p.Content, Topic: reflectTopic, Type: p.Type, AgentID: scopeOf(p.AgentID),
	}, "")
}
