// Package bootstrap wires configuration into the services shared by the API
// and the worker.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/llm"
	"code-analysis-api/internal/llm/openai"
	"code-analysis-api/internal/pipeline"
	"code-analysis-api/internal/queue"
	"code-analysis-api/internal/repoingest"
	"code-analysis-api/internal/services/health"
	"code-analysis-api/internal/shared/config"
	"code-analysis-api/internal/shared/server"
	"code-analysis-api/internal/shared/storage/db"
	"code-analysis-api/internal/shared/storage/object"
	localstore "code-analysis-api/internal/shared/storage/object/local"
	s3store "code-analysis-api/internal/shared/storage/object/s3"
	"code-analysis-api/internal/shared/telemetry"
)

// Role selects pool sizing and whether the API enqueues work.
type Role int

const (
	RoleAPI Role = iota
	RoleWorker
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Repo     codeanalysis.Repo
	Store    object.ObjectStore
	Queue    queue.Client
	Ingest   *repoingest.Client
	LLM      llm.Init
	Pipeline *pipeline.Pipeline
	Service  *codeanalysis.Service
	Handler  *codeanalysis.Handler
	Health   *health.Service
}

// Build prepares every dependency for role. A pipeline that cannot be built
// (e.g. a missing LLM key) is logged and left nil so the API still serves
// reads and answers creates with 503.
func Build(ctx context.Context, cfg config.Config, role Role) (*App, error) {
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Repo = &codeanalysis.PGRepo{DB: sqlDB}
	} else {
		app.Repo = codeanalysis.NewMemoryRepo()
	}

	if cfg.ReportArchiveEnabled {
		store, err := buildStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Store = store
	}

	if role == RoleAPI && cfg.SQSQueueURL != "" {
		q, err := queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Queue = q
	}

	app.Ingest = repoingest.NewClient(cfg.RepositoryIngestURL, seconds(cfg.RepositoryIngestTimeoutSeconds))
	app.LLM = openai.Init(openai.Options{
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.LLMBaseURL,
		Timeout:   seconds(cfg.LLMTimeoutSeconds),
		MaxTokens: cfg.LLMMaxTokens,
		MaxSteps:  cfg.LLMAgentMaxSteps,
	})
	p, err := pipeline.New(app.LLM, pipeline.Options{
		Repo:             app.Repo,
		Ingester:         app.Ingest,
		Tools:            []llm.Tool{repoingest.RetrieveFilesTool(app.Ingest)},
		Archive:          app.Store,
		ArchitectureDocs: cfg.ArchitectureDocsEnabled,
	})
	if err != nil {
		telemetry.Error("bootstrap.pipeline_unavailable", map[string]any{"error": err})
	} else {
		app.Pipeline = p
	}

	app.Service = &codeanalysis.Service{Repo: app.Repo, JobQueue: app.Queue}
	if app.Pipeline != nil {
		app.Service.Runner = app.Pipeline
	}
	if role == RoleWorker && app.Pipeline == nil {
		app.Close()
		return nil, fmt.Errorf("worker requires a pipeline: %w", err)
	}

	app.Handler = codeanalysis.NewHandler(app.Service)
	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Health = health.NewService(pinger, app.Pipeline != nil)
	if role == RoleAPI {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:          cfg,
			AnalysisHandler: app.Handler,
			Health:          app.Health,
		})
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":      cfg.Env,
		"postgres": sqlDB != nil,
		"queue":    app.Queue != nil,
		"archive":  app.Store != nil,
		"pipeline": app.Pipeline != nil,
	})
	return app, nil
}

// Close releases the database handle.
func (a *App) Close() {
	if a == nil || a.DB == nil {
		return
	}
	if err := db.Close(); err != nil {
		telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err})
	}
	a.DB = nil
}

func buildDB(ctx context.Context, cfg config.Config, role Role) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	dsn := cfg.DatabaseURL
	if cfg.DatabaseName != "" {
		named, err := db.WithDatabaseName(dsn, cfg.DatabaseName)
		if err != nil {
			return nil, err
		}
		dsn = named
	}

	opts := db.DefaultServerOptions()
	if role == RoleWorker {
		opts = db.DefaultWorkerOptions(cfg.WorkerConcurrency)
	}
	sqlDB, err := db.GetSingleton(ctx, dsn, db.OptionsFromEnv(opts))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if role == RoleAPI && cfg.MigrateOnStart {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
