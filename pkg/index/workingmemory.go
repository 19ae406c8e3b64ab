package index

import (
	"context"
	"encoding/json"
	"log/slog"
)

// WorkingMemoryEntry is one scope=session fragment staged in a session's
// bounded FIFO queue.
type WorkingMemoryEntry struct {
	FragmentID string  `json:"fragment_id"`
	Content    string  `json:"content"`
	Topic      string  `json:"topic"`
	Tokens     int     `json:"tokens"`
	Importance float64 `json:"importance"`
}

// PushWorkingMemory appends entry to the session's queue and evicts oldest
// entries with importance <= 0.8 until the queue's total token count is
// within wmMaxTokens. Entries above that threshold are retained regardless
// of age until the whole list is rotated.
func (ix *Index) PushWorkingMemory(ctx context.Context, sessionID string, entry WorkingMemoryEntry) {
	if ix.client == nil {
		return
	}
	body, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("index: failed to marshal working memory entry", "error", err)
		return
	}
	key := wmKey(sessionID)
	if err := ix.client.RPush(ctx, key, body).Err(); err != nil {
		slog.Warn("index: working memory push failed, degrading to no-op", "session_id", sessionID, "error", err)
		return
	}
	ix.evictWorkingMemory(ctx, sessionID)
}

// evictWorkingMemory drops the oldest low-importance entries until the
// queue's total token count is within budget. Entries are removed by exact
// value match (LREM) rather than LPop, since a protected high-importance
// entry may sit ahead of an evictable one in the list.
func (ix *Index) evictWorkingMemory(ctx context.Context, sessionID string) {
	raw, err := ix.client.LRange(ctx, wmKey(sessionID), 0, -1).Result()
	if err != nil {
		slog.Warn("index: working memory read for eviction failed, degrading to no-op", "session_id", sessionID, "error", err)
		return
	}

	type item struct {
		raw   string
		entry WorkingMemoryEntry
	}
	items := make([]item, 0, len(raw))
	total := 0
	for _, r := range raw {
		var e WorkingMemoryEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		items = append(items, item{raw: r, entry: e})
		total += e.Tokens
	}

	for _, it := range items {
		if total <= ix.wmMaxTokens {
			break
		}
		if it.entry.Importance > 0.8 {
			continue
		}
		if err := ix.client.LRem(ctx, wmKey(sessionID), 1, it.raw).Err(); err != nil {
			slog.Warn("index: working memory eviction failed, degrading to no-op", "session_id", sessionID, "error", err)
			continue
		}
		total -= it.entry.Tokens
	}
}

// WorkingMemory returns the session's current queue, oldest first.
func (ix *Index) WorkingMemory(ctx context.Context, sessionID string) []WorkingMemoryEntry {
	if ix.client == nil {
		return nil
	}
	raw, err := ix.client.LRange(ctx, wmKey(sessionID), 0, -1).Result()
	if err != nil {
		slog.Warn("index: working memory read failed, degrading to no-op", "session_id", sessionID, "error", err)
		return nil
	}
	entries := make([]WorkingMemoryEntry, 0, len(raw))
	for _, r := range raw {
		var e WorkingMemoryEntry
		if err := json.Unmarshal([]byte(r), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

// ClearWorkingMemory empties a session's queue, called by reflect.
func (ix *Index) ClearWorkingMemory(ctx context.Context, sessionID string) {
	if ix.client == nil {
		return
	}
	if err := ix.client.Del(ctx, wmKey(sessionID)).Err(); err != nil {
		slog.Warn("index: working memory clear failed, degrading to no-op", "session_id", sessionID, "error", err)
	}
}
