package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampByAction(t *testing.T) {
	assert.Equal(t, 0.9, clampByAction(0.9, "keep"))
	assert.Equal(t, 0.3, clampByAction(0.9, "downgrade"))
	assert.Equal(t, 0.2, clampByAction(0.2, "downgrade"))
	assert.Equal(t, 0.1, clampByAction(0.9, "discard"))
	assert.Equal(t, 0.05, clampByAction(0.05, "discard"))
	// Unknown actions behave like keep.
	assert.Equal(t, 0.7, clampByAction(0.7, "archive"))
}

func TestExcludedFromEvaluation(t *testing.T) {
	for _, typ := range []string{"fact", "procedure", "error"} {
		assert.True(t, ExcludedFromEvaluation(typ), typ)
	}
	for _, typ := range []string{"decision", "preference", "relation"} {
		assert.False(t, ExcludedFromEvaluation(typ), typ)
	}
}
