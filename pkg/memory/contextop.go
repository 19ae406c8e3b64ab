package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/search"
)

// charsPerToken is the char≈4·token conversion the context budget uses.
const charsPerToken = 4

// DefaultCoreTypes is the Core Memory slice loaded when the caller doesn't
// narrow types.
var DefaultCoreTypes = []fragment.Type{fragment.TypePreference, fragment.TypeError, fragment.TypeProcedure}

// ContextParams is the context operation's argument shape.
type ContextParams struct {
	TokenBudget int
	Types       []fragment.Type
	SessionID   string
	AgentID     string
}

// ContextResult carries the session-bootstrap injection text plus counters
// for the caller's own accounting.
type ContextResult struct {
	InjectionText       string `json:"injectionText"`
	CoreFragments       int    `json:"coreFragments"`
	WorkingEntries      int    `json:"workingEntries"`
	TokenBudget         int    `json:"tokenBudget"`
	UnreflectedSessions int    `json:"unreflectedSessions"`
}

// coreLine is one Core Memory candidate, ready for budget packing.
type coreLine struct {
	text       string
	importance float64
}

// Context assembles session-bootstrap context: Core Memory (one recall
// bucket per type, top-1 of each guaranteed, filled to the core share of
// the budget), Working Memory (session queue, filled to the remainder),
// and a system hint when unreflected sessions exist.
func (m *Manager) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	budget := p.TokenBudget
	if budget <= 0 {
		budget = m.cfg.ContextTokenBudget
	}
	types := p.Types
	if len(types) == 0 {
		types = DefaultCoreTypes
	}
	agentID := scopeOf(p.AgentID)

	coreCharBudget := int(m.cfg.CoreMemoryShare*float64(budget)) * charsPerToken
	wmCharBudget := int((1-m.cfg.CoreMemoryShare)*float64(budget)) * charsPerToken

	buckets := make([][]coreLine, 0, len(types))
	noLinks := false
	for _, typ := range types {
		res, err := m.search.Search(ctx, search.Params{
			Type: string(typ), MinImportance: m.cfg.CoreMinImportance,
			TokenBudget: budget, IncludeLinks: &noLinks, AgentID: agentID,
		})
		if err != nil {
			slog.Warn("context: core bucket recall failed", "type", typ, "error", err)
			continue
		}
		bucket := make([]coreLine, 0, len(res.Fragments))
		for _, c := range res.Fragments {
			bucket = append(bucket, coreLine{
				text:       fmt.Sprintf("- [%s] %s", c.Fragment.Type, c.Fragment.Content),
				importance: c.Fragment.Importance,
			})
		}
		buckets = append(buckets, bucket)
	}

	coreLines := assembleCore(buckets, coreCharBudget)

	var wmLines []string
	if p.SessionID != "" {
		used := 0
		for _, entry := range m.index.WorkingMemory(ctx, p.SessionID) {
			line := "- " + entry.Content
			if used+len(line) > wmCharBudget {
				break
			}
			wmLines = append(wmLines, line)
			used += len(line)
		}
	}

	unreflected := len(m.activity.ScanUnreflected(ctx, 5))

	var b strings.Builder
	if len(coreLines) > 0 {
		b.WriteString("[CORE MEMORY]\n")
		b.WriteString(strings.Join(coreLines, "\n"))
		b.WriteString("\n")
	}
	if len(wmLines) > 0 {
		b.WriteString("[WORKING MEMORY]\n")
		b.WriteString(strings.Join(wmLines, "\n"))
		b.WriteString("\n")
	}
	if unreflected > 0 {
		fmt.Fprintf(&b, "[SYSTEM HINT] %d session(s) have pending reflection\n", unreflected)
	}

	return &ContextResult{
		InjectionText:       b.String(),
		CoreFragments:       len(coreLines),
		WorkingEntries:      len(wmLines),
		TokenBudget:         budget,
		UnreflectedSessions: unreflected,
	}, nil
}

// assembleCore packs Core Memory lines into charBudget: the top-1 of each
// bucket is guaranteed a slot first, then the remaining lines compete in
// importance order.
func assembleCore(buckets [][]coreLine, charBudget int) []string {
	var lines []string
	used := 0
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		lines = append(lines, bucket[0].text)
		used += len(bucket[0].text)
	}

	var rest []coreLine
	for _, bucket := range buckets {
		if len(bucket) > 1 {
			rest = append(rest, bucket[1:]...)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].importance > rest[j].importance })

	for _, line := range rest {
		if used+len(line.text) > charBudget {
			break
		}
		lines = append(lines, line.text)
		used += len(line.text)
	}
	return lines
}
