package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memerr"
)

// The feedback and watermark tables carry no row-visibility policy, so
// the statements in this file run directly on the pool rather than
// through a scoped transaction.

// InsertToolFeedback records one tool-usefulness report.
func (s *Store) InsertToolFeedback(ctx context.Context, f fragment.ToolFeedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tool_feedback (tool_name, relevant, sufficient, suggestion, context, session_id, trigger_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		f.ToolName, f.Relevant, f.Sufficient, f.Suggestion, f.Context, f.SessionID, string(f.TriggerType), f.CreatedAt,
	)
	if err != nil {
		return memerr.NewBackend("insertToolFeedback", err)
	}
	return nil
}

// InsertTaskFeedback records one session-level effectiveness report.
func (s *Store) InsertTaskFeedback(ctx context.Context, f fragment.TaskFeedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_feedback (session_id, overall_success, tool_highlights, tool_pain_points, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		f.SessionID, f.OverallSuccess, f.ToolHighlights, f.ToolPainPoints, f.CreatedAt,
	)
	if err != nil {
		return memerr.NewBackend("insertTaskFeedback", err)
	}
	return nil
}

// FeedbackSince aggregates tool_feedback and task_feedback rows created
// after since, for Consolidator stage 10's report.
func (s *Store) FeedbackSince(ctx context.Context, since time.Time) ([]fragment.ToolFeedback, []fragment.TaskFeedback, error) {
	toolRows, err := s.pool.Query(ctx, `
		SELECT id, tool_name, relevant, sufficient, suggestion, context, session_id, trigger_type, created_at
		FROM tool_feedback WHERE created_at > $1 ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, nil, memerr.NewBackend("feedbackSince.tool", err)
	}
	defer toolRows.Close()
	type toolRow struct {
		ID          int64     `db:"id"`
		ToolName    string    `db:"tool_name"`
		Relevant    bool      `db:"relevant"`
		Sufficient  bool      `db:"sufficient"`
		Suggestion  string    `db:"suggestion"`
		Context     string    `db:"context"`
		SessionID   string    `db:"session_id"`
		TriggerType string    `db:"trigger_type"`
		CreatedAt   time.Time `db:"created_at"`
	}
	toolResults, err := pgx.CollectRows(toolRows, pgx.RowToStructByName[toolRow])
	if err != nil {
		return nil, nil, memerr.NewBackend("feedbackSince.tool", err)
	}
	tool := make([]fragment.ToolFeedback, len(toolResults))
	for i, r := range toolResults {
		tool[i] = fragment.ToolFeedback{
			ID: r.ID, ToolName: r.ToolName, Relevant: r.Relevant, Sufficient: r.Sufficient,
			Suggestion: r.Suggestion, Context: r.Context, SessionID: r.SessionID,
			TriggerType: fragment.ToolFeedbackTrigger(r.TriggerType), CreatedAt: r.CreatedAt,
		}
	}

	taskRows, err := s.pool.Query(ctx, `
		SELECT id, session_id, overall_success, tool_highlights, tool_pain_points, created_at
		FROM task_feedback WHERE created_at > $1 ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, nil, memerr.NewBackend("feedbackSince.task", err)
	}
	defer taskRows.Close()
	type taskRow struct {
		ID             int64     `db:"id"`
		SessionID      string    `db:"session_id"`
		OverallSuccess bool      `db:"overall_success"`
		ToolHighlights []string  `db:"tool_highlights"`
		ToolPainPoints []string  `db:"tool_pain_points"`
		CreatedAt      time.Time `db:"created_at"`
	}
	taskResults, err := pgx.CollectRows(taskRows, pgx.RowToStructByName[taskRow])
	if err != nil {
		return nil, nil, memerr.NewBackend("feedbackSince.task", err)
	}
	task := make([]fragment.TaskFeedback, len(taskResults))
	for i, r := range taskResults {
		task[i] = fragment.TaskFeedback{
			ID: r.ID, SessionID: r.SessionID, OverallSuccess: r.OverallSuccess,
			ToolHighlights: r.ToolHighlights, ToolPainPoints: r.ToolPainPoints, CreatedAt: r.CreatedAt,
		}
	}
	return tool, task, nil
}

// Watermark reads the named consolidation watermark, returning the zero
// time if it has never been set.
func (s *Store) Watermark(ctx context.Context, name string) (time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, `SELECT watermark FROM consolidation_watermarks WHERE name = $1`, name).Scan(&t)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, memerr.NewBackend("watermark", err)
	}
	return t, nil
}

// SetWatermark upserts the named watermark.
func (s *Store) SetWatermark(ctx context.Context, name string, t time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consolidation_watermarks (name, watermark) VALUES ($1,$2)
		ON CONFLICT (name) DO UPDATE SET watermark = excluded.watermark`, name, t)
	if err != nil {
		return memerr.NewBackend("setWatermark", err)
	}
	return nil
}
