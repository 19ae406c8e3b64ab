// Package notify delivers optional operational Slack notifications: the
// consolidator's feedback report and escalation-worthy pending
// contradictions, posted through an incoming webhook. Every method is a
// no-op on a nil *Service, so callers never need a presence check.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/config"
)

// Service delivers operational notifications. Nil-safe: every method is a
// no-op when the receiver is nil, so callers never need a presence check.
type Service struct {
	webhookURL string
	channel    string
	logger     *slog.Logger
}

// New constructs a Service, or nil when notifications are disabled or
// unconfigured.
func New(cfg config.NotifyConfig) *Service {
	if !cfg.Enabled || cfg.WebhookURL == "" {
		return nil
	}
	return &Service{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		logger:     slog.Default().With("component", "notify"),
	}
}

func (s *Service) post(ctx context.Context, text string) {
	if s == nil {
		return
	}
	msg := &goslack.WebhookMessage{Channel: s.channel, Text: text}
	if err := goslack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		s.logger.Warn("notify: webhook post failed", "error", err)
	}
}

// ConsolidationReport posts the consolidator's aggregated feedback report.
func (s *Service) ConsolidationReport(ctx context.Context, report string) {
	s.post(ctx, report)
}

// PendingContradiction alerts on a similarity-flagged fragment pair that
// has been queued for escalation rather than resolved automatically.
func (s *Service) PendingContradiction(ctx context.Context, aID, bID string, similarity float64) {
	s.post(ctx, fmt.Sprintf(":warning: pending contradiction review: %s vs %s (similarity %.2f)", aID, bID, similarity))
}
