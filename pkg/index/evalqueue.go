package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const evalQueueKey = "queue:memory_evaluation"

// EnqueueEvaluation pushes a JSON-encoded evaluation job onto the
// evaluator's durable work queue.
func (ix *Index) EnqueueEvaluation(ctx context.Context, job interface{}) {
	if ix.client == nil {
		return
	}
	body, err := json.Marshal(job)
	if err != nil {
		slog.Warn("index: failed to marshal evaluation job", "error", err)
		return
	}
	if err := ix.client.RPush(ctx, evalQueueKey, body).Err(); err != nil {
		slog.Warn("index: enqueue evaluation job failed, degrading to no-op", "error", err)
	}
}

// DequeueEvaluation blocks up to timeout for the next queued evaluation
// job (BLPOP), returning its raw JSON body. Satisfies evaluator.Queue
// structurally.
func (ix *Index) DequeueEvaluation(ctx context.Context, timeout time.Duration) (json.RawMessage, bool) {
	if ix.client == nil {
		return nil, false
	}
	res, err := ix.client.BLPop(ctx, timeout, evalQueueKey).Result()
	if err != nil {
		return nil, false
	}
	if len(res) < 2 {
		return nil, false
	}
	return json.RawMessage(res[1]), true
}
