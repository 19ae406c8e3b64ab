// Package index implements the in-memory, process-scoped keyword index:
// keyed sets, recency ordering, hot cache, working-memory queues, and
// session-emission sets, backed by Redis. Multi-step operations use
// redis.Pipeliner so each mutation is a single round trip. An unreachable
// Redis degrades every method to a logged no-op — callers must not assume
// the in-memory layer succeeded.
package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
)

// Index is KeywordIndex.
type Index struct {
	client      *redis.Client
	wmMaxTokens int
	maxSetSize  int
	hotCacheTTL time.Duration
	sessionTTL  time.Duration
}

// Options configures an Index.
type Options struct {
	WMMaxTokens int
	MaxSetSize  int
	HotCacheTTL time.Duration
	SessionTTL  time.Duration
}

// New constructs an Index over an already-connected redis.Client.
func New(client *redis.Client, opts Options) *Index {
	if opts.WMMaxTokens <= 0 {
		opts.WMMaxTokens = 500
	}
	if opts.MaxSetSize <= 0 {
		opts.MaxSetSize = 1000
	}
	if opts.HotCacheTTL <= 0 {
		opts.HotCacheTTL = 2 * time.Hour
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Index{
		client:      client,
		wmMaxTokens: opts.WMMaxTokens,
		maxSetSize:  opts.MaxSetSize,
		hotCacheTTL: opts.HotCacheTTL,
		sessionTTL:  opts.SessionTTL,
	}
}

func kwKey(kw string) string       { return "kw:" + kw }
func topicKey(topic string) string { return "tp:" + topic }
func typeKey(typ string) string    { return "ty:" + typ }
func hotKey(id string) string      { return "hot:" + id }
func wmKey(sessionID string) string { return "wm:" + sessionID }
func sessKey(sessionID string) string { return "sess:" + sessionID }

const recentKey = "recent"

// Index adds a fragment's keyword/topic/type memberships and recency
// score, and (if sessionID is non-empty) records it in that session's
// emission set. The boolean return reports whether the
// pipelined write landed — false means the fragment is stored durably but
// invisible to L1, which MemoryManager surfaces as a note.
func (ix *Index) Index(ctx context.Context, f *fragment.Fragment, sessionID string) bool {
	if ix.client == nil {
		return false
	}
	pipe := ix.client.Pipeline()
	for _, kw := range f.Keywords {
		pipe.SAdd(ctx, kwKey(kw), f.ID)
	}
	if f.Topic != "" {
		pipe.SAdd(ctx, topicKey(f.Topic), f.ID)
	}
	pipe.SAdd(ctx, typeKey(string(f.Type)), f.ID)
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(f.CreatedAt.Unix()), Member: f.ID})
	if sessionID != "" {
		pipe.SAdd(ctx, sessKey(sessionID), f.ID)
		pipe.Expire(ctx, sessKey(sessionID), ix.sessionTTL)
	}
	ix.putHotLocked(ctx, pipe, f)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("index: pipelined index failed, degrading to no-op", "fragment_id", f.ID, "error", err)
		return false
	}
	return true
}

// Deindex removes a fragment's memberships from every keyspace it
// participates in, used by FragmentStore.delete and dedup merge.
func (ix *Index) Deindex(ctx context.Context, id string, keywords []string, topic, typ string) {
	if ix.client == nil {
		return
	}
	pipe := ix.client.Pipeline()
	for _, kw := range keywords {
		pipe.SRem(ctx, kwKey(kw), id)
	}
	if topic != "" {
		pipe.SRem(ctx, topicKey(topic), id)
	}
	pipe.SRem(ctx, typeKey(typ), id)
	pipe.ZRem(ctx, recentKey, id)
	pipe.Del(ctx, hotKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("index: pipelined deindex failed, degrading to no-op", "fragment_id", id, "error", err)
	}
}

// SearchByKeywords tries SINTER first; if the result's cardinality is below
// minResults and there are >=2 keywords, fall back to SUNION.
func (ix *Index) SearchByKeywords(ctx context.Context, keywords []string, minResults int) []string {
	if ix.client == nil || len(keywords) == 0 {
		return nil
	}
	keys := make([]string, len(keywords))
	for i, kw := range keywords {
		keys[i] = kwKey(kw)
	}

	inter, err := ix.client.SInter(ctx, keys...).Result()
	if err != nil {
		slog.Warn("index: SINTER failed, degrading to no-op", "error", err)
		return nil
	}
	if len(inter) >= minResults || len(keywords) < 2 {
		return inter
	}

	union, err := ix.client.SUnion(ctx, keys...).Result()
	if err != nil {
		slog.Warn("index: SUNION fallback failed, degrading to no-op", "error", err)
		return inter
	}
	return union
}

// SearchByTopic returns the topic set as-is.
func (ix *Index) SearchByTopic(ctx context.Context, topic string) []string {
	return ix.members(ctx, topicKey(topic))
}

// SearchByType returns the type set as-is.
func (ix *Index) SearchByType(ctx context.Context, typ string) []string {
	return ix.members(ctx, typeKey(typ))
}

func (ix *Index) members(ctx context.Context, key string) []string {
	if ix.client == nil {
		return nil
	}
	ids, err := ix.client.SMembers(ctx, key).Result()
	if err != nil {
		slog.Warn("index: SMEMBERS failed, degrading to no-op", "key", key, "error", err)
		return nil
	}
	return ids
}

// Recent returns up to n fragment ids ordered by insertion epoch, newest first.
func (ix *Index) Recent(ctx context.Context, n int) []string {
	if ix.client == nil {
		return nil
	}
	ids, err := ix.client.ZRevRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		slog.Warn("index: ZREVRANGE failed, degrading to no-op", "error", err)
		return nil
	}
	return ids
}

// hotEntry is the materialised fragment body cached at hot:<id>.
type hotEntry struct {
	Fragment *fragment.Fragment `json:"fragment"`
}

func (ix *Index) putHotLocked(ctx context.Context, pipe redis.Pipeliner, f *fragment.Fragment) {
	body, err := json.Marshal(hotEntry{Fragment: f})
	if err != nil {
		return
	}
	pipe.Set(ctx, hotKey(f.ID), body, ix.hotCacheTTL)
}

// PutHot repopulates the hot cache for a single fragment, called after
// recall returns results.
func (ix *Index) PutHot(ctx context.Context, f *fragment.Fragment) {
	if ix.client == nil {
		return
	}
	body, err := json.Marshal(hotEntry{Fragment: f})
	if err != nil {
		return
	}
	if err := ix.client.Set(ctx, hotKey(f.ID), body, ix.hotCacheTTL).Err(); err != nil {
		slog.Warn("index: hot cache write failed, degrading to no-op", "fragment_id", f.ID, "error", err)
	}
}

// GetHot fetches a fragment from the hot cache, if present.
func (ix *Index) GetHot(ctx context.Context, id string) (*fragment.Fragment, bool) {
	if ix.client == nil {
		return nil, false
	}
	body, err := ix.client.Get(ctx, hotKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var entry hotEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, false
	}
	return entry.Fragment, true
}
