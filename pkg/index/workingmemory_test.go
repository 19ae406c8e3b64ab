package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushWorkingMemoryWithinBudget(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "f1", Tokens: 20})
	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "f2", Tokens: 30})

	entries := ix.WorkingMemory(ctx, "sess-1")
	require.Len(t, entries, 2)
	assert.Equal(t, "f1", entries[0].FragmentID)
	assert.Equal(t, "f2", entries[1].FragmentID)
}

func TestPushWorkingMemoryEvictsOldestLowImportance(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "f1", Tokens: 60})
	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "f2", Tokens: 60})

	entries := ix.WorkingMemory(ctx, "sess-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "f2", entries[0].FragmentID, "oldest entry should have been evicted over budget")
}

func TestPushWorkingMemoryProtectsHighImportanceAheadOfEvictionTarget(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "protected", Tokens: 60, Importance: 0.9})
	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "evictable", Tokens: 60, Importance: 0.1})

	entries := ix.WorkingMemory(ctx, "sess-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "protected", entries[0].FragmentID, "protected entry must survive even though it sits at the head")
}

func TestClearWorkingMemory(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "f1", Tokens: 10})
	ix.ClearWorkingMemory(ctx, "sess-1")

	assert.Empty(t, ix.WorkingMemory(ctx, "sess-1"))
}

func TestWorkingMemoryMethodsDegradeGracefullyWithoutClient(t *testing.T) {
	ix := New(nil, Options{})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		ix.PushWorkingMemory(ctx, "sess-1", WorkingMemoryEntry{FragmentID: "f1"})
		assert.Nil(t, ix.WorkingMemory(ctx, "sess-1"))
		ix.ClearWorkingMemory(ctx, "sess-1")
	})
}
