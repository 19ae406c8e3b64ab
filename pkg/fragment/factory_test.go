package fragment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestCreateAppliesTypeDefaultsAndTier(t *testing.T) {
	f := NewFactory(nil, fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	frag, err := f.Create(CreateParams{
		Content: "Redis NOAUTH indicates missing REDIS_PASSWORD.",
		Topic:   "redis",
		Type:    TypeError,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.9, frag.Importance)
	assert.Equal(t, TierHot, frag.TTLTier)
	assert.Equal(t, DefaultSharedScope, frag.AgentID)
	assert.True(t, strings.HasPrefix(frag.ID, "frag-"))
	assert.Len(t, frag.ID, len("frag-")+16)
	assert.NotEmpty(t, frag.ContentHash)
	assert.Len(t, frag.ContentHash, 16)
}

func TestCreateRejectsInvalidType(t *testing.T) {
	f := NewFactory(nil, nil)
	_, err := f.Create(CreateParams{Content: "x", Type: Type("bogus")})
	assert.Error(t, err)
}

func TestCreateRedactsContentBeforeHashing(t *testing.T) {
	f := NewFactory(nil, nil)
	frag, err := f.Create(CreateParams{
		Content: "contact jin.ho@example.com for help",
		Type:    TypeFact,
	})
	require.NoError(t, err)
	assert.Contains(t, frag.Content, "[REDACTED_EMAIL]")
	assert.NotContains(t, frag.Content, "jin.ho@example.com")
}

func TestCreateTruncatesAt300Chars(t *testing.T) {
	f := NewFactory(nil, nil)
	long := strings.Repeat("a ", 500)
	frag, err := f.Create(CreateParams{Content: long, Type: TypeFact})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(frag.Content)), MaxContentChars)
	assert.True(t, strings.HasSuffix(frag.Content, TruncationMarker))
}

func TestCreateInfersKeywordsWhenOmitted(t *testing.T) {
	f := NewFactory(nil, nil)
	frag, err := f.Create(CreateParams{
		Content: "pgvector HNSW uses m=16 ef_construction=64 for approximate search",
		Type:    TypeFact,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, frag.Keywords)
	assert.LessOrEqual(t, len(frag.Keywords), 5)
}

func TestCreateKeepsExplicitKeywordsLowercasedAndDeduped(t *testing.T) {
	f := NewFactory(nil, nil)
	frag, err := f.Create(CreateParams{
		Content:  "whatever",
		Type:     TypeFact,
		Keywords: []string{"Redis", "redis", "NOAUTH"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"redis", "noauth"}, frag.Keywords)
}

func TestContentHashStableUnderReCreation(t *testing.T) {
	f := NewFactory(nil, nil)
	a, err := f.Create(CreateParams{Content: "Node 20 is required.", Type: TypeFact})
	require.NoError(t, err)
	b, err := f.Create(CreateParams{Content: "Node 20 is required.", Type: TypeFact})
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestCreateSplitChainsLinkedTo(t *testing.T) {
	f := NewFactory(nil, nil)
	long := strings.Repeat("word ", 200)
	frags, err := f.CreateSplit(long, CreateParams{Topic: "notes", Type: TypeFact})
	require.NoError(t, err)
	require.Greater(t, len(frags), 1)
	for i, frag := range frags {
		if i > 0 {
			assert.Contains(t, frag.LinkedTo, frags[i-1].ID)
		}
		if i < len(frags)-1 {
			assert.Contains(t, frag.LinkedTo, frags[i+1].ID)
		}
	}
}
