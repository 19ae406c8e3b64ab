// Package activity implements SessionActivity: a per-session
// rolling record of tool calls, keywords, and touched fragments, used by
// AutoReflect to decide whether a session has anything worth summarizing.
// Records are Redis-backed, sharing the same client as pkg/index, since
// sessions must outlive a single process.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is one session's rolling activity.
type Record struct {
	SessionID    string         `json:"sessionId"`
	StartedAt    time.Time      `json:"startedAt"`
	LastActivity time.Time      `json:"lastActivity"`
	ToolCalls    map[string]int `json:"toolCalls"`
	Keywords     []string       `json:"keywords"`  // bounded to the last 50 unique
	Fragments    []string       `json:"fragments"` // bounded to the last 100 unique
	Reflected    bool           `json:"reflected"`
}

const (
	maxKeywords  = 50
	maxFragments = 100
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Tracker is SessionActivity, backed by Redis.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	clock  Clock
}

// New constructs a Tracker. A nil client degrades every method to a no-op.
// A non-positive ttl defaults to 24h.
func New(client *redis.Client, ttl time.Duration, clock Clock) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{client: client, ttl: ttl, clock: clock}
}

func activityKey(sessionID string) string { return "activity:" + sessionID }

const activityIndexKey = "activity:index"

func (t *Tracker) load(ctx context.Context, sessionID string) *Record {
	if t.client == nil {
		return nil
	}
	body, err := t.client.Get(ctx, activityKey(sessionID)).Bytes()
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil
	}
	return &rec
}

func (t *Tracker) save(ctx context.Context, rec *Record) {
	if t.client == nil {
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("activity: failed to marshal record", "session_id", rec.SessionID, "error", err)
		return
	}
	pipe := t.client.Pipeline()
	pipe.Set(ctx, activityKey(rec.SessionID), body, t.ttl)
	pipe.ZAdd(ctx, activityIndexKey, redis.Z{Score: float64(rec.LastActivity.Unix()), Member: rec.SessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("activity: write failed, degrading to no-op", "session_id", rec.SessionID, "error", err)
	}
}

func (t *Tracker) touch(ctx context.Context, sessionID string) *Record {
	rec := t.load(ctx, sessionID)
	if rec == nil {
		now := t.clock()
		rec = &Record{SessionID: sessionID, StartedAt: now, ToolCalls: map[string]int{}}
	}
	if rec.ToolCalls == nil {
		rec.ToolCalls = map[string]int{}
	}
	rec.LastActivity = t.clock()
	return rec
}

// RecordToolCall increments tool's call count and bumps lastActivity.
func (t *Tracker) RecordToolCall(ctx context.Context, sessionID, tool string) {
	if sessionID == "" {
		return
	}
	rec := t.touch(ctx, sessionID)
	rec.ToolCalls[tool]++
	t.save(ctx, rec)
}

// RecordKeywords appends newly-seen keywords, keeping only the last
// maxKeywords unique entries.
func (t *Tracker) RecordKeywords(ctx context.Context, sessionID string, keywords []string) {
	if sessionID == "" || len(keywords) == 0 {
		return
	}
	rec := t.touch(ctx, sessionID)
	rec.Keywords = appendBoundedUnique(rec.Keywords, keywords, maxKeywords)
	t.save(ctx, rec)
}

// RecordFragment appends a touched fragment id, keeping only the last
// maxFragments unique entries.
func (t *Tracker) RecordFragment(ctx context.Context, sessionID, fragmentID string) {
	if sessionID == "" || fragmentID == "" {
		return
	}
	rec := t.touch(ctx, sessionID)
	rec.Fragments = appendBoundedUnique(rec.Fragments, []string{fragmentID}, maxFragments)
	t.save(ctx, rec)
}

// Get returns the session's current record, if any.
func (t *Tracker) Get(ctx context.Context, sessionID string) (*Record, bool) {
	rec := t.load(ctx, sessionID)
	return rec, rec != nil
}

// MarkReflected flags the session as reflected, so AutoReflect and
// ScanUnreflected skip it going forward.
func (t *Tracker) MarkReflected(ctx context.Context, sessionID string) {
	rec := t.load(ctx, sessionID)
	if rec == nil {
		return
	}
	rec.Reflected = true
	t.save(ctx, rec)
}

// ScanUnreflected returns up to limit session ids that have not yet been
// reflected, least-recently-touched first — used by AutoReflect's sweep and
// by MemoryManager.context's "pending reflection" system hint.
func (t *Tracker) ScanUnreflected(ctx context.Context, limit int) []string {
	if t.client == nil || limit <= 0 {
		return nil
	}
	ids, err := t.client.ZRange(ctx, activityIndexKey, 0, -1).Result()
	if err != nil {
		slog.Warn("activity: index scan failed, degrading to no-op", "error", err)
		return nil
	}
	var out []string
	for _, id := range ids {
		rec := t.load(ctx, id)
		if rec == nil || rec.Reflected {
			continue
		}
		out = append(out, id)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func appendBoundedUnique(existing []string, fresh []string, max int) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(fresh))
	for _, v := range existing {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	for _, v := range fresh {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
