package index

import (
	"context"
	"log/slog"
	"math/rand/v2"
)

// PruneOversizedSets scans all kw:* keys and, for any set whose cardinality
// exceeds maxSetSize, randomly removes size-maxSetSize members — called by
// the Consolidator's index-pruning stage.
func (ix *Index) PruneOversizedSets(ctx context.Context) (prunedSets, prunedMembers int) {
	if ix.client == nil {
		return 0, 0
	}

	var cursor uint64
	for {
		keys, next, err := ix.client.Scan(ctx, cursor, "kw:*", 100).Result()
		if err != nil {
			slog.Warn("index: SCAN failed during pruning, degrading to no-op", "error", err)
			return prunedSets, prunedMembers
		}
		for _, key := range keys {
			n := ix.pruneOneSet(ctx, key)
			if n > 0 {
				prunedSets++
				prunedMembers += n
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return prunedSets, prunedMembers
}

func (ix *Index) pruneOneSet(ctx context.Context, key string) int {
	size, err := ix.client.SCard(ctx, key).Result()
	if err != nil || size <= int64(ix.maxSetSize) {
		return 0
	}
	excess := int(size) - ix.maxSetSize

	members, err := ix.client.SMembers(ctx, key).Result()
	if err != nil || len(members) == 0 {
		return 0
	}
	rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	if excess > len(members) {
		excess = len(members)
	}
	victims := members[:excess]

	if err := ix.client.SRem(ctx, key, toAny(victims)...).Err(); err != nil {
		slog.Warn("index: pruning removal failed, degrading to no-op", "key", key, "error", err)
		return 0
	}
	return excess
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// SessionMembers returns the ids of fragments emitted to sessionID so far.
func (ix *Index) SessionMembers(ctx context.Context, sessionID string) []string {
	return ix.members(ctx, sessKey(sessionID))
}
