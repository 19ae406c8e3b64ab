// memento-mcp server: persistent memory for stateless LLM agents, exposed
// as MCP tools over stdio, with an HTTP health endpoint for operators.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/activity"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/config"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/consolidator"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/database"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/embedding"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/evaluator"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/fragment"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/index"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/llm"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/memory"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/nli"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/notify"
	autoreflect "github.com/JinHo-von-Choi/memento-mcp/pkg/reflect"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/search"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/server"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/store"
	"github.com/JinHo-von-Choi/memento-mcp/pkg/tokencount"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := flag.String("config", getEnv("MEMENTO_CONFIG", "./memento.yaml"), "Path to memento.yaml")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, continuing with existing environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration load failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("database initialisation failed", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("connected to postgres, migrations applied")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis is best-effort throughout: L1 and working memory degrade
		// to no-ops, the cascade still serves from L2/L3.
		slog.Warn("redis unreachable at startup, in-memory index degraded", "addr", cfg.Redis.Addr, "error", err)
	}
	defer redisClient.Close()

	tokens := tokencount.NewCounter()
	factory := fragment.NewFactory(tokens, nil)
	idx := index.New(redisClient, index.Options{
		WMMaxTokens: cfg.Index.WMMaxTokens,
		MaxSetSize:  cfg.Index.MaxSetSize,
		HotCacheTTL: cfg.Index.HotCacheTTL,
		SessionTTL:  cfg.Index.SessionTTL,
	})
	st := store.New(dbClient.Pool, nil)

	var embedder embedding.Provider
	if cfg.Embedding.Enabled && cfg.Embedding.Endpoint != "" {
		embedder = embedding.NewHTTPProvider(
			cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model,
			cfg.Embedding.Dims, cfg.Embedding.Timeout,
		)
	}

	llmClient := llm.NewHTTPClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)

	var classifier nli.Classifier
	switch cfg.NLI.Mode {
	case "external":
		classifier = nli.NewExternalClassifier(cfg.NLI.Endpoint, cfg.NLI.Timeout)
	case "inprocess":
		classifier = nli.NewInProcessClassifier(cfg.NLI.ModelPath)
	default:
		slog.Info("NLI disabled, contradiction detection will escalate to LLM or pending queue")
	}

	srch := search.New(st, idx, embedder, search.Config{
		ImportanceWeight:    cfg.Ranking.ImportanceWeight,
		RecencyWeight:       cfg.Ranking.RecencyWeight,
		ActivationThreshold: cfg.Ranking.ActivationThreshold,
		LinkedFragmentLimit: cfg.Ranking.LinkedFragmentLimit,
		DefaultTokenBudget:  cfg.Ranking.DefaultTokenBudget,
		Stale: search.StaleThresholds{
			Procedure: cfg.Staleness.Procedure,
			Fact:      cfg.Staleness.Fact,
			Decision:  cfg.Staleness.Decision,
			Default:   cfg.Staleness.Default,
		},
	}, nil)

	notifier := notify.New(cfg.Notify)
	cons := consolidator.New(st, idx, embedder, llmClient, classifier, notifier, consolidator.Config{
		Sweep: store.SweepConfig{
			ExpirationMinImportance: cfg.Consolidator.ExpirationMinImportance,
			ExpirationInactivity:    cfg.Consolidator.ExpirationInactivity,
			ExpirationMinLinks:      cfg.Consolidator.ExpirationMinLinks,
			DecayFactor:             cfg.Consolidator.DecayFactor,
			DecayInactivity:         cfg.Consolidator.DecayInactivity,
			DemoteInactivity:        cfg.Consolidator.DemoteInactivity,
			HubLinkCount:            cfg.Consolidator.HubLinkCount,
		},
		AnchorAccessCount:         cfg.Consolidator.AnchorAccessCount,
		AnchorImportance:          cfg.Consolidator.AnchorImportance,
		ContradictionSimThreshold: cfg.Consolidator.ContradictionSimThreshold,
		PendingEnqueueThreshold:   cfg.Consolidator.PendingEnqueueThreshold,
		PendingDrainLimit:         cfg.Consolidator.PendingDrainLimit,
		EmbeddingBackfillBatch:    cfg.Consolidator.EmbeddingBackfillBatch,
		StaleGatherLimit:          cfg.Consolidator.StaleGatherLimit,
	}, nil)

	tracker := activity.New(redisClient, cfg.Index.ActivityTTL, nil)
	manager := memory.New(factory, st, idx, srch, embedder, llmClient, cons, tracker, memory.DefaultConfig(), nil)

	eval := evaluator.New(idx, st, llmClient, cfg.Evaluator.PollInterval)
	eval.Start(ctx)
	defer eval.Stop()

	reflector := autoreflect.New(tracker, llmClient, manager, memory.NewMinimalRememberer(manager), 0, 0, nil)
	reflector.Start(ctx)
	defer func() {
		reflector.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		reflector.ReflectAll(shutdownCtx)
	}()

	healthSrv := startHealthServer(dbClient, redisClient, embedder, llmClient, eval)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("memento-mcp serving over stdio")
	srv := server.New(manager)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server exited", "error", err)
	}
}

// startHealthServer exposes /health on HTTP_PORT (default 8080), reporting
// database, redis, and external-collaborator reachability plus the
// evaluator's worker status.
func startHealthServer(db *database.Client, rdb *redis.Client, embedder embedding.Provider, llmClient llm.Client, eval *evaluator.Evaluator) *http.Server {
	gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, dbErr := db.Health(reqCtx)
		redisOK := rdb.Ping(reqCtx).Err() == nil
		evalStatus := eval.Health()

		status := http.StatusOK
		overall := "healthy"
		if dbErr != nil {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":    overall,
			"database":  dbHealth,
			"redis":     redisOK,
			"embedding": embedder != nil && embedder.Reachable(),
			"llm":       llmClient.Reachable(),
			"evaluator": gin.H{
				"running":        evalStatus.Running,
				"jobs_processed": evalStatus.JobsProcessed,
				"last_activity":  evalStatus.LastActivity,
			},
		})
	})

	srv := &http.Server{Addr: ":" + getEnv("HTTP_PORT", "8080"), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server exited", "error", err)
		}
	}()
	return srv
}
