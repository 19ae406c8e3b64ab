package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywordsDropsStopwords(t *testing.T) {
	kws := ExtractKeywords("the quick brown fox and the lazy dog")
	for _, kw := range kws {
		assert.False(t, isStopword(kw))
	}
}

func TestExtractKeywordsTopFiveByFrequency(t *testing.T) {
	kws := ExtractKeywords("redis redis redis error error timeout connection pool size")
	assert.LessOrEqual(t, len(kws), 5)
	assert.Equal(t, "redis", kws[0])
}

func TestExtractKeywordsHandlesHangul(t *testing.T) {
	kws := ExtractKeywords("레디스 연결에서 NOAUTH 오류가 발생했습니다")
	assert.NotEmpty(t, kws)
}

func TestExtractKeywordsEmptyText(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
}
