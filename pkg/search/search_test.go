package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
)

func testSearch() *Search {
	fixed := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	return New(nil, nil, nil, Config{
		ImportanceWeight:    0.6,
		RecencyWeight:       0.4,
		ActivationThreshold: 100,
		Stale: StaleThresholds{Procedure: 30, Fact: 60, Decision: 90, Default: 60},
	}, func() time.Time { return fixed })
}

func TestRankSimpleSortsByImportance(t *testing.T) {
	s := testSearch()
	list := []Candidate{
		{Fragment: &fragment.Fragment{ID: "a", Importance: 0.3}},
		{Fragment: &fragment.Fragment{ID: "b", Importance: 0.9}},
	}
	s.rank(list, false)
	assert.Equal(t, "b", list[0].Fragment.ID)
}

func TestRankCompositeFavorsRecency(t *testing.T) {
	s := testSearch()
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	list := []Candidate{
		{Fragment: &fragment.Fragment{ID: "old", Importance: 0.5, CreatedAt: now.Add(-100 * 24 * time.Hour)}},
		{Fragment: &fragment.Fragment{ID: "new", Importance: 0.5, CreatedAt: now}},
	}
	s.rank(list, true)
	assert.Equal(t, "new", list[0].Fragment.ID)
}

func TestAnnotateStaleFlagsOldVerification(t *testing.T) {
	s := testSearch()
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	list := []Candidate{
		{Fragment: &fragment.Fragment{Type: fragment.TypeFact, VerifiedAt: now.Add(-90 * 24 * time.Hour)}},
		{Fragment: &fragment.Fragment{Type: fragment.TypeFact, VerifiedAt: now.Add(-1 * 24 * time.Hour)}},
	}
	s.annotateStale(list)
	assert.NotNil(t, list[0].StaleInfo)
	assert.Nil(t, list[1].StaleInfo)
}

func TestFilterThresholdDropsBelowAndKeepsUnscored(t *testing.T) {
	low, high := 0.1, 0.9
	list := []Candidate{
		{Fragment: &fragment.Fragment{ID: "low"}, Similarity: &low},
		{Fragment: &fragment.Fragment{ID: "high"}, Similarity: &high},
		{Fragment: &fragment.Fragment{ID: "unscored"}},
	}
	got := filterThreshold(list, 0.5)
	ids := []string{}
	for _, c := range got {
		ids = append(ids, c.Fragment.ID)
	}
	assert.ElementsMatch(t, []string{"high", "unscored"}, ids)
}

func TestTrimToBudgetStopsBeforeExceeding(t *testing.T) {
	s := testSearch()
	list := []Candidate{
		{Fragment: &fragment.Fragment{ID: "a", EstimatedTokens: 400}},
		{Fragment: &fragment.Fragment{ID: "b", EstimatedTokens: 400}},
		{Fragment: &fragment.Fragment{ID: "c", EstimatedTokens: 400}},
	}
	trimmed, tokens := s.trimToBudget(list, 1000)
	assert.Len(t, trimmed, 2)
	assert.Equal(t, 800, tokens)
}

func TestIntersectAllRequiresPresenceInEverySet(t *testing.T) {
	got := intersectAll([][]string{{"a", "b", "c"}, {"b", "c"}, {"c"}})
	assert.Equal(t, []string{"c"}, got)
}

func TestIntersectAllNoSetsReturnsNil(t *testing.T) {
	assert.Nil(t, intersectAll(nil))
}
