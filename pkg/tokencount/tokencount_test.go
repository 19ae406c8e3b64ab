package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmpty(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 0, c.Count(""))
}

func TestCountIsPositiveForText(t *testing.T) {
	c := NewCounter()
	n := c.Count("Redis NOAUTH indicates missing REDIS_PASSWORD.")
	assert.Greater(t, n, 0)
}

func TestFallbackRoundsUp(t *testing.T) {
	assert.Equal(t, 1, fallback("a"))
	assert.Equal(t, 1, fallback("abcd"))
	assert.Equal(t, 2, fallback("abcde"))
}

func TestCountScalesWithLength(t *testing.T) {
	c := NewCounter()
	short := c.Count("hello world")
	long := c.Count(strings.Repeat("hello world ", 50))
	assert.Greater(t, long, short)
}
