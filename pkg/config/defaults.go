package config

import "time"

// Defaults returns the built-in configuration baseline, merged with the
// user's partial document by Load (dario.cat/mergo).
func Defaults() *Config {
	return &Config{
		Ranking: RankingConfig{
			ImportanceWeight:    0.6,
			RecencyWeight:       0.4,
			ActivationThreshold: 100,
			LinkedFragmentLimit: 10,
			DefaultTokenBudget:  1000,
		},
		Staleness: StalenessConfig{
			Procedure: 30,
			Fact:      60,
			Decision:  90,
			Default:   60,
		},
		Index: IndexConfig{
			WMMaxTokens: 500,
			MaxSetSize:  1000,
			HotCacheTTL: 2 * time.Hour,
			SessionTTL:  24 * time.Hour,
			ActivityTTL: 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Enabled: true,
			Model:   "text-embedding-3-small",
			Dims:    1536,
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "memento",
			Database:        "memento",
			SSLMode:         "disable",
			MaxConns:        20,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 15 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		LLM: LLMConfig{
			Timeout: 30 * time.Second,
		},
		NLI: NLIConfig{
			Mode:    "inprocess",
			Timeout: 3 * time.Second,
		},
		Evaluator: EvaluatorConfig{
			PollInterval: 5 * time.Second,
		},
		Consolidator: ConsolidatorConfig{
			ExpirationMinImportance:   0.1,
			ExpirationInactivity:      90 * 24 * time.Hour,
			ExpirationMinLinks:        2,
			DecayFactor:               0.995,
			DecayInactivity:           24 * time.Hour,
			DemoteInactivity:          30 * 24 * time.Hour,
			HubLinkCount:              5,
			AnchorAccessCount:         10,
			AnchorImportance:          0.8,
			ContradictionSimThreshold: 0.85,
			PendingEnqueueThreshold:   0.92,
			PendingDrainLimit:         10,
			EmbeddingBackfillBatch:    5,
			StaleGatherLimit:          20,
		},
		Notify: NotifyConfig{
			Enabled: false,
		},
	}
}
