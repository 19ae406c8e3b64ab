package config

import "fmt"

// Validate aggregates field errors across the whole Config before the
// process starts: one Validate() error per umbrella config, never a panic.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if w := c.Ranking.ImportanceWeight + c.Ranking.RecencyWeight; w < 0.999 || w > 1.001 {
		errs.Add("ranking.importance_weight+recency_weight",
			fmt.Sprintf("must sum to 1, got %.3f", w))
	}
	if c.Ranking.ActivationThreshold < 0 {
		errs.Add("ranking.activation_threshold", "must be >= 0")
	}
	if c.Ranking.DefaultTokenBudget < 1 {
		errs.Add("ranking.default_token_budget", "must be >= 1")
	}

	if c.Staleness.Procedure < 1 || c.Staleness.Fact < 1 || c.Staleness.Decision < 1 || c.Staleness.Default < 1 {
		errs.Add("stale_thresholds", "all thresholds must be >= 1 day")
	}

	if c.Index.WMMaxTokens < 1 {
		errs.Add("index.wm_max_tokens", "must be >= 1")
	}
	if c.Index.MaxSetSize < 1 {
		errs.Add("index.max_set_size", "must be >= 1")
	}

	if c.Embedding.Enabled && c.Embedding.Dims < 1 {
		errs.Add("embedding.dims", "must be >= 1 when embedding is enabled")
	}

	if c.Database.Host == "" {
		errs.Add("database.host", "required")
	}
	if c.Database.User == "" {
		errs.Add("database.user", "required")
	}
	if c.Database.Database == "" {
		errs.Add("database.database", "required")
	}
	if c.Database.MaxConns < 1 {
		errs.Add("database.max_conns", "must be >= 1")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs.Add("database.min_conns", "cannot exceed database.max_conns")
	}

	if c.Redis.Addr == "" {
		errs.Add("redis.addr", "required")
	}

	switch c.NLI.Mode {
	case "external", "inprocess", "disabled":
	default:
		errs.Add("nli.mode", "must be one of external|inprocess|disabled")
	}
	if c.NLI.Mode == "external" && c.NLI.Endpoint == "" {
		errs.Add("nli.endpoint", "required when nli.mode is external")
	}

	if c.Evaluator.PollInterval <= 0 {
		errs.Add("evaluator.poll_interval", "must be > 0")
	}

	if c.Consolidator.DecayFactor <= 0 || c.Consolidator.DecayFactor > 1 {
		errs.Add("consolidator.decay_factor", "must be in (0, 1]")
	}

	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		errs.Add("notify.webhook_url", "required when notify.enabled is true")
	}

	return errs.ErrIfAny()
}
