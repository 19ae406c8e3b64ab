package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/activity"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/tokencount"
)

// newBareManager builds a Manager whose Redis-backed collaborators degrade
// to no-ops (nil clients) and whose store is never reached — enough for
// the validation and session-scope paths.
func newBareManager(t *testing.T) *Manager {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	factory := fragment.NewFactory(tokencount.NewCounter(), clock)
	idx := index.New(nil, index.Options{})
	tracker := activity.New(nil, 0, clock)
	return New(factory, nil, idx, nil, nil, nil, nil, tracker, DefaultConfig(), clock)
}

func TestRememberValidation(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	_, err := m.Remember(ctx, RememberParams{Topic: "t", Type: fragment.TypeFact})
	assert.True(t, memerr.IsValidation(err))

	_, err = m.Remember(ctx, RememberParams{Content: "c", Type: fragment.TypeFact})
	assert.True(t, memerr.IsValidation(err))

	_, err = m.Remember(ctx, RememberParams{Content: "c", Topic: "t", Type: "opinion"})
	assert.True(t, memerr.IsValidation(err))

	_, err = m.Remember(ctx, RememberParams{Content: "c", Topic: "t", Type: fragment.TypeFact, Scope: "global"})
	assert.True(t, memerr.IsValidation(err))
}

func TestRememberSessionScopeRequiresSessionID(t *testing.T) {
	m := newBareManager(t)
	_, err := m.Remember(context.Background(), RememberParams{
		Content: "c", Topic: "t", Type: fragment.TypeFact, Scope: ScopeSession,
	})
	assert.True(t, memerr.IsValidation(err))
}

func TestRememberSessionScopeBypassesStore(t *testing.T) {
	m := newBareManager(t) // nil store: any durable write would panic
	res, err := m.Remember(context.Background(), RememberParams{
		Content: "ephemeral note", Topic: "t", Type: fragment.TypeFact,
		Scope: ScopeSession, SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeSession, res.Scope)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.ID)
}

func TestLinkValidation(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	_, err := m.Link(ctx, LinkParams{ToID: "frag-b"})
	assert.True(t, memerr.IsValidation(err))

	_, err = m.Link(ctx, LinkParams{FromID: "frag-a"})
	assert.True(t, memerr.IsValidation(err))

	_, err = m.Link(ctx, LinkParams{FromID: "frag-a", ToID: "frag-b", RelationType: "follows"})
	assert.True(t, memerr.IsValidation(err))
}

func TestForgetRequiresTarget(t *testing.T) {
	m := newBareManager(t)
	_, err := m.Forget(context.Background(), ForgetParams{})
	assert.True(t, memerr.IsValidation(err))
}

func TestToolFeedbackValidation(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	err := m.ToolFeedback(ctx, ToolFeedbackParams{Relevant: true})
	assert.True(t, memerr.IsValidation(err))

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	err = m.ToolFeedback(ctx, ToolFeedbackParams{ToolName: "recall", Suggestion: string(long)})
	assert.True(t, memerr.IsValidation(err))

	err = m.ToolFeedback(ctx, ToolFeedbackParams{ToolName: "recall", TriggerType: "forced"})
	assert.True(t, memerr.IsValidation(err))
}

func TestScopeOf(t *testing.T) {
	assert.Equal(t, fragment.DefaultSharedScope, scopeOf(""))
	assert.Equal(t, "agent-7", scopeOf("agent-7"))
}

func TestClassifyAutoLink(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	peer := &fragment.Fragment{ID: "frag-old", Type: fragment.TypeError, CreatedAt: base}

	resolution := &fragment.Fragment{
		ID: "frag-new", Type: fragment.TypeError,
		Content: "[해결됨] NOAUTH fixed by setting REDIS_PASSWORD", CreatedAt: base.Add(time.Hour),
	}
	from, to, rel := classifyAutoLink(resolution, peer, 0.75, 0.85)
	assert.Equal(t, "frag-new", from)
	assert.Equal(t, "frag-old", to)
	assert.Equal(t, fragment.RelationResolvedBy, rel)

	newer := &fragment.Fragment{
		ID: "frag-new", Type: fragment.TypeError,
		Content: "connection refused on startup", CreatedAt: base.Add(time.Hour),
	}
	from, to, rel = classifyAutoLink(newer, peer, 0.9, 0.85)
	assert.Equal(t, "frag-old", from)
	assert.Equal(t, "frag-new", to)
	assert.Equal(t, fragment.RelationSupersededBy, rel)

	// Same type but below the supersede floor stays a plain relation.
	from, to, rel = classifyAutoLink(newer, peer, 0.8, 0.85)
	assert.Equal(t, "frag-new", from)
	assert.Equal(t, fragment.RelationRelated, rel)
	_ = to
}

func TestMarksResolution(t *testing.T) {
	assert.True(t, marksResolution("[해결됨] redis auth"))
	assert.True(t, marksResolution("Fixed the pool sizing"))
	assert.True(t, marksResolution("finally RESOLVED after restart"))
	assert.False(t, marksResolution("pool exhausted under load"))
}

func TestBFSReaches(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}
	neighbors := func(id string) []string { return graph[id] }

	assert.True(t, bfsReaches(20, "a", "c", neighbors))
	assert.False(t, bfsReaches(20, "c", "a", neighbors))
	assert.True(t, bfsReaches(20, "a", "a", neighbors))
}

func TestBFSReachesHonoursLimit(t *testing.T) {
	// A long chain: the target sits past the visit cap.
	graph := map[string][]string{}
	prev := "n0"
	for i := 1; i <= 40; i++ {
		id := "n" + string(rune('0'+i%10)) + string(rune('a'+i/10))
		graph[prev] = []string{id}
		prev = id
	}
	neighbors := func(id string) []string { return graph[id] }
	assert.False(t, bfsReaches(5, "n0", prev, neighbors))
}

func TestAssembleCoreGuaranteesTopOfEachBucket(t *testing.T) {
	buckets := [][]coreLine{
		{{text: "- [preference] prefers tabular summaries", importance: 0.95}},
		{{text: "- [error] NOAUTH when REDIS_PASSWORD unset", importance: 0.9},
			{text: "- [error] pgvector ops class missing", importance: 0.85}},
		{{text: "- [procedure] verify sentinel.conf after changes", importance: 0.7}},
	}

	// Budget fits nothing beyond the guaranteed heads.
	lines := assembleCore(buckets, 1)
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "preference")
	assert.Contains(t, lines[1], "NOAUTH")
	assert.Contains(t, lines[2], "procedure")

	// A generous budget admits the remainder in importance order.
	lines = assembleCore(buckets, 10_000)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[3], "pgvector")
}

func TestAssembleCoreSkipsEmptyBuckets(t *testing.T) {
	buckets := [][]coreLine{
		{},
		{{text: "- [error] x", importance: 0.9}},
	}
	lines := assembleCore(buckets, 1000)
	assert.Len(t, lines, 1)
}
