package activity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, time.Hour, nil)
}

func TestRecordToolCallAccumulates(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	tr.RecordToolCall(ctx, "sess-1", "recall")
	tr.RecordToolCall(ctx, "sess-1", "recall")
	tr.RecordToolCall(ctx, "sess-1", "remember")

	rec, ok := tr.Get(ctx, "sess-1")
	require.True(t, ok)
	assert.Equal(t, 2, rec.ToolCalls["recall"])
	assert.Equal(t, 1, rec.ToolCalls["remember"])
	assert.False(t, rec.Reflected)
}

func TestRecordKeywordsIsBoundedAndUnique(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	tr.RecordToolCall(ctx, "sess-1", "recall")

	for i := 0; i < 60; i++ {
		tr.RecordKeywords(ctx, "sess-1", []string{"kw-same"})
	}
	rec, ok := tr.Get(ctx, "sess-1")
	require.True(t, ok)
	assert.Len(t, rec.Keywords, 1)

	for i := 0; i < 60; i++ {
		tr.RecordKeywords(ctx, "sess-1", []string{keywordFor(i)})
	}
	rec, ok = tr.Get(ctx, "sess-1")
	require.True(t, ok)
	assert.LessOrEqual(t, len(rec.Keywords), maxKeywords)
}

func keywordFor(i int) string {
	return string(rune('a' + i%26))
}

func TestMarkReflectedExcludesFromScan(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	tr.RecordToolCall(ctx, "sess-1", "recall")
	tr.RecordToolCall(ctx, "sess-2", "recall")

	unreflected := tr.ScanUnreflected(ctx, 10)
	assert.ElementsMatch(t, []string{"sess-1", "sess-2"}, unreflected)

	tr.MarkReflected(ctx, "sess-1")
	unreflected = tr.ScanUnreflected(ctx, 10)
	assert.Equal(t, []string{"sess-2"}, unreflected)
}

func TestNilClientDegradesToNoOp(t *testing.T) {
	tr := New(nil, 0, nil)
	ctx := context.Background()
	tr.RecordToolCall(ctx, "sess-1", "recall")
	_, ok := tr.Get(ctx, "sess-1")
	assert.False(t, ok)
	assert.Empty(t, tr.ScanUnreflected(ctx, 10))
}
