package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/jobmatch/internal/config"
	db "github.com/markdave123-py/jobmatch/internal/core/database"
	"github.com/markdave123-py/jobmatch/internal/core/embedding"
	"github.com/markdave123-py/jobmatch/internal/core/ingestion_engine"
	"github.com/markdave123-py/jobmatch/internal/core/llm"
	"github.com/markdave123-py/jobmatch/internal/core/matching_engine"
	objectclient "github.com/markdave123-py/jobmatch/internal/core/object-client"
	"github.com/markdave123-py/jobmatch/internal/core/orchestrator"
	"github.com/markdave123-py/jobmatch/internal/core/queue"
	"github.com/markdave123-py/jobmatch/internal/core/resume_engine"
	"github.com/markdave123-py/jobmatch/internal/core/sources"
	"github.com/markdave123-py/jobmatch/internal/logger"
)

// App holds every long-lived component. Both the API server and jobctl
// build one.
type App struct {
	Config       *config.Config
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Queue        queue.Queue
	Worker       *queue.Worker
	Ingestor     *ingestion_engine.Coordinator
	Processor    *resume_engine.Processor
	Matcher      *matching_engine.Engine
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *orchestrator.Scheduler

	ai *genai.Client
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx)
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbClient, err := db.NewDatabaseClient(appCtx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, &cfg.AWS)
	if err != nil {
		return nil, err
	}
	a.ObjectClient = objClient
	log.Info("object client initialized and ready")

	aiClient, err := llm.NewClient(appCtx, cfg.AI.APIKey)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the AI client: %w", err)
	}
	a.ai = aiClient

	// One limiter for every AI call made by this process.
	limit := rate.Inf
	if cfg.AI.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.AI.RequestsPerSecond)
	}
	aiOpts := llm.Options{Limiter: rate.NewLimiter(limit, 1), Timeout: cfg.AI.RequestTimeout}
	embedder := embedding.NewGenerator(llm.NewGeminiEmbedder(aiClient, cfg.AI.EmbedModel, aiOpts), cfg.AI.EmbedMaxChars)
	analyzer := llm.NewAnalyzer(llm.NewGeminiLLM(aiClient, cfg.AI.GenModel, aiOpts), cfg.AI.AnalysisMaxChars, cfg.AI.RationaleMaxChars)

	adapters, err := sources.Registry(sources.NewFetcher(cfg.Sources.HTTPTimeout, cfg.Sources.RequestsPerSec), cfg.Sources.Enabled)
	if err != nil {
		return nil, err
	}

	a.Queue, err = newQueue(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	a.Ingestor = ingestion_engine.NewCoordinator(adapters, dbClient, embedder)
	a.Processor = resume_engine.NewProcessor(dbClient, objClient, resume_engine.NewDocconvExtractor(), analyzer, embedder)
	a.Matcher = matching_engine.NewEngine(dbClient, analyzer)
	a.Orchestrator = orchestrator.New(a.Ingestor, a.Matcher, a.Processor, dbClient, a.Queue, orchestrator.Config{
		TopK:     cfg.Schedule.TopK,
		Lookback: cfg.Schedule.Lookback,
	})
	a.Worker = queue.NewWorker(a.Queue, queue.WorkerConfig{
		MaxAttempts: cfg.Queue.MaxAttempts,
		TaskTimeout: cfg.Queue.TaskTimeout,
	})
	a.Orchestrator.Register(a.Worker)
	a.Scheduler = orchestrator.NewScheduler(a.Orchestrator, cfg.Schedule.DailyCron)

	ok = true
	return a, nil
}

func newQueue(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "redis":
		rdb, err := queue.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		return queue.NewRedisQueue(rdb, cfg.Redis.Queue), nil
	case "memory", "":
		return queue.NewMemoryQueue(256), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// StartBackground launches the worker pool and, when enabled, the daily schedule.
func (a *App) StartBackground(ctx context.Context) error {
	a.Worker.Start(ctx, a.Config.Queue.Workers)
	if a.Config.Schedule.Enabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources. Workers stop when their context is cancelled.
func (a *App) Close() {
	if a.Scheduler != nil && a.Config.Schedule.Enabled {
		a.Scheduler.Stop()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if a.Worker != nil {
		a.Worker.Wait()
	}
	if a.ai != nil {
		_ = a.ai.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
