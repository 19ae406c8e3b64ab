package index

import (
	"context"
	"encoding/json"
	"log/slog"
)

const pendingContradictionKey = "queue:pending_contradictions"

// PendingContradiction is a similarity-flagged fragment pair held for
// escalation when neither the in-process NLI model nor the external
// classifier could settle it outright.
type PendingContradiction struct {
	AID        string  `json:"aId"`
	AContent   string  `json:"aContent"`
	BID        string  `json:"bId"`
	BContent   string  `json:"bContent"`
	Similarity float64 `json:"similarity"`
}

// EnqueuePendingContradiction pushes a candidate pair onto the durable
// escalation queue, drained by the Consolidator's pending-queue stage.
func (ix *Index) EnqueuePendingContradiction(ctx context.Context, c PendingContradiction) {
	if ix.client == nil {
		return
	}
	body, err := json.Marshal(c)
	if err != nil {
		slog.Warn("index: failed to marshal pending contradiction", "error", err)
		return
	}
	if err := ix.client.RPush(ctx, pendingContradictionKey, body).Err(); err != nil {
		slog.Warn("index: enqueue pending contradiction failed, degrading to no-op", "error", err)
	}
}

// DrainPendingContradictions pops up to limit entries for the
// Consolidator to re-attempt resolution on. Entries that still can't be
// resolved are the caller's responsibility to re-enqueue.
func (ix *Index) DrainPendingContradictions(ctx context.Context, limit int) []PendingContradiction {
	if ix.client == nil || limit <= 0 {
		return nil
	}
	out := make([]PendingContradiction, 0, limit)
	for i := 0; i < limit; i++ {
		res, err := ix.client.LPop(ctx, pendingContradictionKey).Result()
		if err != nil {
			break
		}
		var c PendingContradiction
		if err := json.Unmarshal([]byte(res), &c); err != nil {
			slog.Warn("index: malformed pending contradiction, dropping", "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}
