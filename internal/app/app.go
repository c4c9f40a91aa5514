package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trendsurf/internal/config"
	"trendsurf/internal/infrastructure/arxiv"
	"trendsurf/internal/infrastructure/extract"
	"trendsurf/internal/infrastructure/fetch"
	"trendsurf/internal/infrastructure/grobid"
	"trendsurf/internal/infrastructure/llm"
	"trendsurf/internal/infrastructure/scheduler"
	"trendsurf/internal/infrastructure/storage"
	"trendsurf/internal/infrastructure/vector"
	"trendsurf/internal/usecase"
)

// App owns the wired application graph.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	vectors *vector.Client
	runner  *usecase.Runner
}

// New wires every component from configuration.
func New(cfg config.Config, db *sql.DB, logger *slog.Logger) (*App, error) {
	vectors, err := vector.NewClient(cfg.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	repo := storage.NewRepository(db)
	httpClient := &http.Client{Timeout: 30 * time.Second}

	matcher := usecase.NewMatcher(repo)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    arxiv.NewClient(cfg.Arxiv, httpClient, logger),
		Fetcher:   fetch.NewFetcher(cfg.PDF, cfg.Arxiv.UserAgent, &http.Client{}),
		Extractor: grobid.NewClient(cfg.Grobid),
		Pages:     extract.NewHTMLExtractor(),
		Embedder:  llm.NewEmbeddingGateway(cfg),
		Generator: llm.NewGenerationGateway(cfg.Generation),
		Vectors:   vectors,
		Papers:    repo,
		Topics:    repo,
		Matcher:   matcher,
		Logger:    logger,
	}, cfg.Arxiv.PageSize, cfg.Generation.Summary)

	runner := usecase.NewRunner(
		scheduler.NewCronScheduler(cfg.Scheduler, logger),
		pipeline, repo, logger)

	return &App{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		vectors: vectors,
		runner:  runner,
	}, nil
}

// Run provisions the vector collections, starts the scheduler and blocks
// until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.vectors.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("provision vector collections: %w", err)
	}
	a.logger.Info("vector collections ready")

	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.runner.Stop(stopCtx)
}

// RunOnce executes one pipeline pass immediately, after provisioning the
// vector collections. Used by the run-once CLI mode.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.vectors.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("provision vector collections: %w", err)
	}
	a.runner.RunOnce(ctx, time.Now())
	return nil
}
