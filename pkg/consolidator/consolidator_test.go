package consolidator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/nli"
)

type fakeClassifier struct {
	result *nli.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, premise, hypothesis string) (*nli.Result, error) {
	return f.result, f.err
}

type recordingNotifier struct {
	pending []string
}

func (r *recordingNotifier) ConsolidationReport(ctx context.Context, report string) {}
func (r *recordingNotifier) PendingContradiction(ctx context.Context, aID, bID string, similarity float64) {
	r.pending = append(r.pending, aID+":"+bID)
}

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return index.New(client, index.Options{})
}

func TestResolvePairEntailmentNeedsNoAction(t *testing.T) {
	idx := newTestIndex(t)
	classifier := &fakeClassifier{result: &nli.Result{Scores: map[nli.Label]float64{nli.LabelEntailment: 0.9}}}
	notifier := &recordingNotifier{}
	c := New(nil, idx, nil, nil, classifier, notifier, Config{PendingEnqueueThreshold: 0.6}, nil)

	res := &Result{}
	c.resolvePair(context.Background(), "a", "redis is up", "b", "redis is running", 0.95, res)

	assert.Equal(t, 0, res.ContradictionsResolved)
	assert.Equal(t, 0, res.ContradictionsEscalated)
	assert.Empty(t, notifier.pending)
}

func TestResolvePairAmbiguousBelowThresholdIsDropped(t *testing.T) {
	idx := newTestIndex(t)
	classifier := &fakeClassifier{result: &nli.Result{Scores: map[nli.Label]float64{nli.LabelContradiction: 0.3}}}
	notifier := &recordingNotifier{}
	c := New(nil, idx, nil, nil, classifier, notifier, Config{PendingEnqueueThreshold: 0.9}, nil)

	res := &Result{}
	c.resolvePair(context.Background(), "a", "content a", "b", "content b", 0.5, res)

	assert.Equal(t, 0, res.ContradictionsEscalated)
	assert.Empty(t, notifier.pending)
	assert.Empty(t, idx.DrainPendingContradictions(context.Background(), 10))
}

func TestResolvePairAmbiguousAboveThresholdEnqueuesPending(t *testing.T) {
	idx := newTestIndex(t)
	classifier := &fakeClassifier{result: &nli.Result{Scores: map[nli.Label]float64{nli.LabelContradiction: 0.3}}}
	notifier := &recordingNotifier{}
	c := New(nil, idx, nil, nil, classifier, notifier, Config{PendingEnqueueThreshold: 0.4}, nil)

	res := &Result{}
	c.resolvePair(context.Background(), "a", "content a", "b", "content b", 0.5, res)

	assert.Equal(t, 1, res.ContradictionsEscalated)
	assert.Equal(t, []string{"a:b"}, notifier.pending)
	drained := idx.DrainPendingContradictions(context.Background(), 10)
	require.Len(t, drained, 1)
	assert.Equal(t, "a", drained[0].AID)
	assert.Equal(t, 0.5, drained[0].Similarity)
}

func TestRunRefusesConcurrentInstance(t *testing.T) {
	c := New(nil, newTestIndex(t), nil, nil, nil, nil, Config{}, nil)
	c.running = true

	res := c.Run(context.Background())

	assert.Equal(t, &Result{}, res)
}

func TestBuildFeedbackReportSummarizesCounts(t *testing.T) {
	tool := []fragment.ToolFeedback{
		{ToolName: "recall", Relevant: true},
		{ToolName: "remember", Relevant: false},
	}
	task := []fragment.TaskFeedback{
		{SessionID: "s1", OverallSuccess: false},
	}

	report := buildFeedbackReport(tool, task)

	assert.Contains(t, report, "tool feedback entries: 2")
	assert.Contains(t, report, "task feedback entries: 1")
	assert.Contains(t, report, "tools flagged not relevant: 1")
	assert.Contains(t, report, "sessions with unsuccessful outcomes: 1")
}

func TestNewDefaultsClock(t *testing.T) {
	c := New(nil, newTestIndex(t), nil, nil, nil, nil, Config{}, nil)
	assert.NotNil(t, c.clock)
	assert.WithinDuration(t, time.Now(), c.clock(), time.Second)
}
