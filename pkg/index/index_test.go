package index

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
)

func newTestIndex(t *testing.T) (*Index, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, Options{WMMaxTokens: 100, MaxSetSize: 5, HotCacheTTL: time.Hour, SessionTTL: time.Hour}), mr
}

func sampleFragment(id string, keywords ...string) *fragment.Fragment {
	return &fragment.Fragment{
		ID:        id,
		Type:      fragment.TypeFact,
		Topic:     "billing",
		Keywords:  keywords,
		CreatedAt: time.Now(),
	}
}

func TestIndexAndSearchByKeywords(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ix.Index(ctx, sampleFragment("f1", "invoice", "retry"), "sess-1")
	ix.Index(ctx, sampleFragment("f2", "invoice"), "sess-1")

	got := ix.SearchByKeywords(ctx, []string{"invoice"}, 1)
	assert.ElementsMatch(t, []string{"f1", "f2"}, got)

	got = ix.SearchByKeywords(ctx, []string{"invoice", "retry"}, 5)
	assert.ElementsMatch(t, []string{"f1", "f2"}, got, "intersection below minResults should fall back to union")
}

func TestSearchByKeywordsIntersectionSufficient(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ix.Index(ctx, sampleFragment("f1", "invoice", "retry"), "")
	ix.Index(ctx, sampleFragment("f2", "invoice"), "")

	got := ix.SearchByKeywords(ctx, []string{"invoice", "retry"}, 1)
	assert.Equal(t, []string{"f1"}, got)
}

func TestSearchByTopicAndType(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	ix.Index(ctx, sampleFragment("f1"), "")

	assert.Equal(t, []string{"f1"}, ix.SearchByTopic(ctx, "billing"))
	assert.Equal(t, []string{"f1"}, ix.SearchByType(ctx, string(fragment.TypeFact)))
}

func TestDeindexRemovesMemberships(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	f := sampleFragment("f1", "invoice")
	ix.Index(ctx, f, "")

	ix.Deindex(ctx, f.ID, f.Keywords, f.Topic, string(f.Type))

	assert.Empty(t, ix.SearchByKeywords(ctx, []string{"invoice"}, 1))
	assert.Empty(t, ix.SearchByTopic(ctx, "billing"))
	_, ok := ix.GetHot(ctx, "f1")
	assert.False(t, ok)
}

func TestRecentOrdering(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	older := sampleFragment("f1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := sampleFragment("f2")
	newer.CreatedAt = time.Now()

	ix.Index(ctx, older, "")
	ix.Index(ctx, newer, "")

	assert.Equal(t, []string{"f2", "f1"}, ix.Recent(ctx, 10))
}

func TestHotCacheRoundtrip(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	f := sampleFragment("f1", "invoice")

	ix.Index(ctx, f, "")
	got, ok := ix.GetHot(ctx, "f1")
	require.True(t, ok)
	assert.Equal(t, f.ID, got.ID)

	f2 := sampleFragment("f1", "invoice", "refund")
	ix.PutHot(ctx, f2)
	got, ok = ix.GetHot(ctx, "f1")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"invoice", "refund"}, got.Keywords)
}

func TestSessionMembers(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	ix.Index(ctx, sampleFragment("f1"), "sess-1")
	ix.Index(ctx, sampleFragment("f2"), "sess-1")
	ix.Index(ctx, sampleFragment("f3"), "sess-2")

	assert.ElementsMatch(t, []string{"f1", "f2"}, ix.SessionMembers(ctx, "sess-1"))
	assert.ElementsMatch(t, []string{"f3"}, ix.SessionMembers(ctx, "sess-2"))
}

func TestPruneOversizedSets(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		ix.Index(ctx, sampleFragment(string(rune('a'+i)), "hot"), "")
	}

	prunedSets, prunedMembers := ix.PruneOversizedSets(ctx)
	assert.Equal(t, 1, prunedSets)
	assert.Equal(t, 3, prunedMembers)

	remaining := ix.SearchByKeywords(ctx, []string{"hot"}, 100)
	assert.Len(t, remaining, 5)
}

func TestMethodsDegradeGracefullyWithoutClient(t *testing.T) {
	ix := New(nil, Options{})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		ix.Index(ctx, sampleFragment("f1"), "sess-1")
		ix.Deindex(ctx, "f1", nil, "", "")
		assert.Nil(t, ix.SearchByKeywords(ctx, []string{"x"}, 1))
		assert.Nil(t, ix.SearchByTopic(ctx, "x"))
		assert.Nil(t, ix.Recent(ctx, 1))
		_, ok := ix.GetHot(ctx, "f1")
		assert.False(t, ok)
		sets, members := ix.PruneOversizedSets(ctx)
		assert.Zero(t, sets)
		assert.Zero(t, members)
	})
}
