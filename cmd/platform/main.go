// Command platform runs the QA job worker pool and its HTTP operational surface.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/corpusforge/platform/pkg/api"
	"github.com/corpusforge/platform/pkg/billing"
	"github.com/corpusforge/platform/pkg/cleanup"
	"github.com/corpusforge/platform/pkg/config"
	"github.com/corpusforge/platform/pkg/credential"
	"github.com/corpusforge/platform/pkg/database"
	"github.com/corpusforge/platform/pkg/executor"
	"github.com/corpusforge/platform/pkg/jobqueue"
	"github.com/corpusforge/platform/pkg/llm"
	"github.com/corpusforge/platform/pkg/lock"
	"github.com/corpusforge/platform/pkg/matrixcell"
	"github.com/corpusforge/platform/pkg/mq"
	"github.com/corpusforge/platform/pkg/objectstore"
	"github.com/corpusforge/platform/pkg/qaengine"
	"github.com/corpusforge/platform/pkg/searchindex"
	"github.com/corpusforge/platform/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "./config.yaml"), "Path to configuration file")
	envPath := flag.String("env-file", getEnv("ENV_FILE", "./.env"), "Path to .env file")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "HTTP listen address")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("could not load env file, continuing with existing environment", "path", *envPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database")

	ginDriver := entsql.OpenDB(dialect.Postgres, dbClient.DB())
	if err := database.CreateGINIndexes(ctx, ginDriver); err != nil {
		slog.Warn("failed to create GIN indexes, continuing", "error", err)
	}

	store, err := objectstore.New(cfg.ObjectStore)
	if err != nil {
		slog.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		slog.Error("failed to build LLM client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := llmClient.Close(); err != nil {
			slog.Error("error closing LLM client", "error", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("error closing Redis client", "error", err)
		}
	}()

	workerPoolID := getEnv("WORKER_POOL_ID", "default")

	locker := lock.New(redisClient)
	structureChangeQueue, err := mq.New(ctx, redisClient, "matrix-structure-changed", workerPoolID)
	if err != nil {
		slog.Error("failed to build matrix structure-change queue", "error", err)
		os.Exit(1)
	}
	cellEngine := matrixcell.New(dbClient.Client, locker).WithStructureChangeQueue(structureChangeQueue)
	quotaGate, err := billing.NewGate(dbClient.Client, cfg.TierLimits)
	if err != nil {
		slog.Error("failed to build quota gate", "error", err)
		os.Exit(1)
	}

	embeddingProvider, err := searchindex.NewEmbeddingProvider(cfg.Embedding)
	if err != nil {
		slog.Error("failed to build embedding provider", "error", err)
		os.Exit(1)
	}
	chunkIndex := searchindex.New(dbClient.Client, embeddingProvider)

	qaExecutor := qaengine.New(dbClient.Client, store, qaengine.NewLLMAdapter(llmClient), qaengine.HybridWeights{
		Keyword: cfg.HybridWeights.Keyword,
		Vector:  cfg.HybridWeights.Vector,
	}, quotaGate)

	if err := jobqueue.CleanupStartupOrphans(ctx, dbClient.Client, workerPoolID); err != nil {
		slog.Warn("startup orphan cleanup failed", "error", err)
	}

	pool := jobqueue.NewWorkerPool(workerPoolID, dbClient.Client, cfg.Queue, qaExecutor)
	if err := pool.Start(ctx); err != nil {
		slog.Error("failed to start worker pool", "error", err)
		os.Exit(1)
	}

	retention := cleanup.NewService(&cfg.Retention, dbClient.Client)
	retention.Start(ctx)

	credBroker := credential.New(dbClient.Client)
	execBackend, err := executor.New(cfg.Executor)
	if err != nil {
		slog.Error("failed to build executor backend", "error", err)
		os.Exit(1)
	}

	if err := workflow.CleanupStartupOrphans(ctx, dbClient.Client, workerPoolID); err != nil {
		slog.Warn("startup workflow-execution orphan cleanup failed", "error", err)
	}

	workflowPool := workflow.NewPool(workerPoolID, dbClient.Client, cfg.Queue, cfg.WorkflowPhase, execBackend, credBroker, store, cfg.Executor.Image)
	if err := workflowPool.Start(ctx); err != nil {
		slog.Error("failed to start workflow execution pool", "error", err)
		os.Exit(1)
	}

	structureChangesDone := make(chan struct{})
	go func() {
		defer close(structureChangesDone)
		for ctx.Err() == nil {
			if err := cellEngine.ConsumeStructureChanges(ctx); err != nil {
				slog.Error("matrix structure-change consume failed", "error", err)
			}
		}
	}()

	server := api.NewServer(cfg, dbClient, pool)
	server.RegisterMatrixRoutes(cellEngine)
	server.RegisterBillingRoutes(quotaGate)
	server.RegisterSearchRoutes(chunkIndex, searchindex.HybridWeights{
		Keyword: cfg.HybridWeights.Keyword,
		Vector:  cfg.HybridWeights.Vector,
	})
	server.RegisterExecutionFileRoutes(credBroker)
	server.RegisterWorkflowPool(workflowPool)

	go func() {
		slog.Info("HTTP server listening", "addr", *httpAddr)
		if err := server.Start(*httpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}
	pool.Stop()
	workflowPool.Stop()
	retention.Stop()
	<-structureChangesDone
}
