package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tcgvault/backend/config"
	"github.com/tcgvault/backend/internal/domain"
	"github.com/tcgvault/backend/internal/infrastructure/cache"
	"github.com/tcgvault/backend/internal/infrastructure/cardsearch"
	"github.com/tcgvault/backend/internal/infrastructure/postgres"
	"github.com/tcgvault/backend/internal/infrastructure/ratelimit"
	"github.com/tcgvault/backend/internal/usecase"
	"go.uber.org/zap"
)

// NewImportService builds the search client, its response cache, the row
// gate and the import service. The returned func releases the cache.
func NewImportService(cfg *config.Config, logger *zap.Logger) (*usecase.ImportService, func()) {
	memoryCache := cache.NewMemoryCache(0)

	client := cardsearch.NewClient(cardsearch.Config{
		BaseURL:           cfg.Search.BaseURL,
		APIKey:            cfg.Search.APIKey,
		Timeout:           cfg.Search.Timeout,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
		Burst:             cfg.Search.Burst,
		MaxRetries:        cfg.Search.MaxRetries,
	}, logger)

	searcher := cardsearch.NewCachedSearcher(client, memoryCache, cfg.Cache.TTL, logger)
	gate := ratelimit.NewIntervalGate(cfg.Import.RowDelay)

	service := usecase.NewImportService(searcher, gate, logger, usecase.ImportServiceConfig{
		SearchLimit: cfg.Import.SearchLimit,
	})
	return service, memoryCache.Close
}

// OpenCollection connects to the collection database when one is configured.
// It returns a nil repository and a no-op close func otherwise.
func OpenCollection(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.CollectionRepository, func(), error) {
	if !cfg.PersistenceEnabled() {
		return nil, func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := postgres.NewCollectionRepository(pool, cfg.Database.BatchSize, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info("connected to collection database", zap.String("database", poolConfig.ConnConfig.Database))
	return repo, pool.Close, nil
}
