// Package config loads memento.yaml: gopkg.in/yaml.v3 unmarshal,
// dario.cat/mergo to merge defaults over a partial user document, and
// ${VAR} environment expansion for secrets, followed by a Validate()
// aggregating field errors before the process starts.
package config

import "time"

// Config is the umbrella configuration object for the memory core and its
// ambient stack.
type Config struct {
	Ranking       RankingConfig       `yaml:"ranking"`
	Staleness     StalenessConfig     `yaml:"stale_thresholds"`
	Index         IndexConfig         `yaml:"index"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	LLM           LLMConfig           `yaml:"llm"`
	NLI           NLIConfig           `yaml:"nli"`
	Evaluator     EvaluatorConfig     `yaml:"evaluator"`
	Consolidator  ConsolidatorConfig  `yaml:"consolidator"`
	Notify        NotifyConfig        `yaml:"notify"`
}

// RankingConfig holds the composite-score coefficients and the store-size
// at which composite ranking activates.
type RankingConfig struct {
	ImportanceWeight    float64 `yaml:"importance_weight" validate:"required"`
	RecencyWeight       float64 `yaml:"recency_weight" validate:"required"`
	ActivationThreshold int     `yaml:"activation_threshold" validate:"min=0"`
	LinkedFragmentLimit int     `yaml:"linked_fragment_limit" validate:"min=0"`
	DefaultTokenBudget  int     `yaml:"default_token_budget" validate:"min=1"`
}

// StalenessConfig holds per-type days-since-verified thresholds.
type StalenessConfig struct {
	Procedure int `yaml:"procedure" validate:"min=1"`
	Fact      int `yaml:"fact" validate:"min=1"`
	Decision  int `yaml:"decision" validate:"min=1"`
	Default   int `yaml:"default" validate:"min=1"`
}

// IndexConfig holds KeywordIndex tuning.
type IndexConfig struct {
	WMMaxTokens  int `yaml:"wm_max_tokens" validate:"min=1"`
	MaxSetSize   int `yaml:"max_set_size" validate:"min=1"`
	HotCacheTTL  time.Duration `yaml:"hot_cache_ttl"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	ActivityTTL  time.Duration `yaml:"activity_ttl"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Model    string `yaml:"model"`
	Dims     int    `yaml:"dims" validate:"min=1"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the pgx connection pool.
type DatabaseConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database" validate:"required"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns" validate:"min=1"`
	MinConns        int32         `yaml:"min_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig configures the KeywordIndex/SessionActivity/queue backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig configures the completeJSON collaborator (evaluator,
// contradiction stage 8c, auto-reflect).
type LLMConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
}

// NLIConfig configures the NLIClassifier.
type NLIConfig struct {
	Mode           string        `yaml:"mode"` // "external" | "inprocess" | "disabled"
	Endpoint       string        `yaml:"endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
	ModelPath      string        `yaml:"model_path"`
}

// EvaluatorConfig configures the background quality-evaluator worker.
type EvaluatorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=1"`
}

// ConsolidatorConfig configures the maintenance pipeline.
type ConsolidatorConfig struct {
	ExpirationMinImportance   float64       `yaml:"expiration_min_importance"`
	ExpirationInactivity      time.Duration `yaml:"expiration_inactivity"`
	ExpirationMinLinks        int           `yaml:"expiration_min_links"`
	DecayFactor               float64       `yaml:"decay_factor"`
	DecayInactivity           time.Duration `yaml:"decay_inactivity"`
	DemoteInactivity          time.Duration `yaml:"demote_inactivity"`
	HubLinkCount              int           `yaml:"hub_link_count"`
	AnchorAccessCount         int           `yaml:"anchor_access_count"`
	AnchorImportance          float64       `yaml:"anchor_importance"`
	ContradictionSimThreshold float64       `yaml:"contradiction_sim_threshold"`
	PendingEnqueueThreshold   float64       `yaml:"pending_enqueue_threshold"`
	PendingDrainLimit         int           `yaml:"pending_drain_limit"`
	EmbeddingBackfillBatch    int           `yaml:"embedding_backfill_batch"`
	StaleGatherLimit          int           `yaml:"stale_gather_limit"`
}

// NotifyConfig configures the optional operational Slack notifications.
type NotifyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}
