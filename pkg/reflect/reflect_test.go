package reflect

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/activity"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
)

type fakeLLM struct {
	reachable bool
	response  json.RawMessage
	err       error
}

func (f *fakeLLM) Reachable() bool { return f.reachable }
func (f *fakeLLM) CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	return f.response, f.err
}

type fakeReflecter struct {
	called bool
	params Params
}

func (f *fakeReflecter) Reflect(ctx context.Context, p Params) (*Result, error) {
	f.called = true
	f.params = p
	return &Result{FragmentIDs: []string{"frag-1"}}, nil
}

type fakeRememberer struct {
	called  bool
	content string
}

func (f *fakeRememberer) Remember(ctx context.Context, p RememberParams) (*fragment.Fragment, error) {
	f.called = true
	f.content = p.Content
	return &fragment.Fragment{ID: "frag-min"}, nil
}

func newTestTracker(t *testing.T) *activity.Tracker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return activity.New(client, time.Hour, nil)
}

func TestOnSessionEndSkipsEmptySession(t *testing.T) {
	tr := newTestTracker(t)
	reflecter := &fakeReflecter{}
	rememberer := &fakeRememberer{}
	a := New(tr, &fakeLLM{reachable: false}, reflecter, rememberer, 0, 0, nil)

	err := a.OnSessionEnd(context.Background(), "sess-empty", "agent-1")

	require.NoError(t, err)
	assert.False(t, reflecter.called)
	assert.False(t, rememberer.called)
}

func TestOnSessionEndUsesLLMWhenReachable(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	tr.RecordToolCall(ctx, "sess-1", "recall")

	llmResp := json.RawMessage(`{"summary":"did a thing","decisions":["use env vars"],"errors_resolved":["noauth"],"new_procedures":[],"open_questions":[]}`)
	reflecter := &fakeReflecter{}
	rememberer := &fakeRememberer{}
	a := New(tr, &fakeLLM{reachable: true, response: llmResp}, reflecter, rememberer, 0, 0, nil)

	err := a.OnSessionEnd(ctx, "sess-1", "agent-1")

	require.NoError(t, err)
	assert.True(t, reflecter.called)
	assert.False(t, rememberer.called)
	assert.Equal(t, "did a thing", reflecter.params.Summary)
	assert.Equal(t, []string{"use env vars"}, reflecter.params.Decisions)

	rec, ok := tr.Get(ctx, "sess-1")
	require.True(t, ok)
	assert.True(t, rec.Reflected)
}

func TestOnSessionEndFallsBackToMinimalFactWhenLLMUnreachable(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	tr.RecordToolCall(ctx, "sess-1", "recall")
	tr.RecordFragment(ctx, "sess-1", "frag-abc")

	reflecter := &fakeReflecter{}
	rememberer := &fakeRememberer{}
	a := New(tr, &fakeLLM{reachable: false}, reflecter, rememberer, 0, 0, nil)

	err := a.OnSessionEnd(ctx, "sess-1", "agent-1")

	require.NoError(t, err)
	assert.False(t, reflecter.called)
	assert.True(t, rememberer.called)
	assert.Contains(t, rememberer.content, "sess-1")
	assert.Contains(t, rememberer.content, "tools=recall(1)")
	assert.Contains(t, rememberer.content, "fragments=1")
}

func TestOnSessionEndFallsBackWhenLLMResponseMalformed(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	tr.RecordToolCall(ctx, "sess-1", "recall")

	reflecter := &fakeReflecter{}
	rememberer := &fakeRememberer{}
	a := New(tr, &fakeLLM{reachable: true, response: json.RawMessage(`not json`)}, reflecter, rememberer, 0, 0, nil)

	err := a.OnSessionEnd(ctx, "sess-1", "agent-1")

	require.NoError(t, err)
	assert.False(t, reflecter.called)
	assert.True(t, rememberer.called)
}
