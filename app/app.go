// Package app wires configuration into the database, embedding stack,
// retriever, weights cache and evaluation service shared by the cmd binaries.
package app

import (
	"context"
	"fmt"

	"casevalue-backend/config"
	"casevalue-backend/embedding"
	"casevalue-backend/features"
	"casevalue-backend/repository"
	"casevalue-backend/retrieval"
	"casevalue-backend/service"
	"casevalue-backend/weights"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the initialized dependencies
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Corpus      *repository.HistoricalCaseRepository
	Evaluations *repository.EvaluationRepository
	Embedder    embedding.Embedder
	Weights     *weights.Cache
	Evaluator   *service.EvaluationService

	closers []func()
}

// New connects to Postgres (and Redis when configured) and builds the engine.
// A failing embedding provider is not fatal; retrieval falls back to the
// structured path.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := repository.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.URL != "" {
		client, err := NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			a.Redis = client
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	a.Corpus = repository.NewHistoricalCaseRepository(db)
	a.Evaluations = repository.NewEvaluationRepository(db)

	embedder, closeEmbedder, err := embedding.New(ctx, EmbeddingOptions(cfg, a.Redis, logger))
	if err != nil {
		logger.Warn("embedding provider unavailable, using structured retrieval only", zap.Error(err))
	} else {
		a.Embedder = embedder
		a.closers = append(a.closers, closeEmbedder)
	}

	extractor := features.NewExtractor()
	retrieverOpts := []retrieval.Option{
		retrieval.WithExtractor(extractor),
		retrieval.WithLogger(logger.Named("retrieval")),
		retrieval.WithLimit(cfg.Engine.NeighborLimit),
	}
	if a.Embedder != nil {
		retrieverOpts = append(retrieverOpts, retrieval.WithEmbedder(a.Embedder))
	}
	retriever := retrieval.NewRetriever(a.Corpus, retrieverOpts...)

	a.Weights = weights.NewCache(a.Corpus,
		weights.WithTTL(cfg.Engine.WeightsTTL),
		weights.WithLogger(logger.Named("weights")),
	)

	a.Evaluator = service.NewEvaluationService(
		service.WithRetriever(retriever),
		service.WithWeights(a.Weights),
		service.WithExtractor(extractor),
		service.WithLogger(logger.Named("evaluation")),
		service.WithConfig(EngineConfig(cfg.Engine)),
	)

	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// NewRedis parses a redis:// URL and verifies the connection
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// EmbeddingOptions maps configuration onto the embedding factory options
func EmbeddingOptions(cfg *config.Config, client *redis.Client, logger *zap.Logger) embedding.Options {
	return embedding.Options{
		Provider:  embedding.Provider(cfg.Embedding.Provider),
		Purpose:   embedding.PurposeQuery,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Timeout:   cfg.Embedding.Timeout,
		RateLimit: cfg.Embedding.RateLimit,
		Burst:     cfg.Embedding.Burst,
		Redis:     client,
		CacheTTL:  cfg.Redis.CacheTTL,
		Logger:    logger.Named("embedding"),
	}
}

// EngineConfig maps configuration onto the orchestrator's tunables
func EngineConfig(e config.EngineConfig) service.Config {
	return service.Config{
		IgnoreWeights:          e.IgnoreWeights,
		IncludeEarlyResolution: e.IncludeEarlyResolution,
		NeighborLimit:          e.NeighborLimit,
		PrimaryAlpha:           e.PrimaryAlpha,
		FallbackAlpha:          e.FallbackAlpha,
		NovelMinNeighbors:      e.NovelMinNeighbors,
		NovelMinConfidence:     e.NovelMinConfidence,
	}
}
