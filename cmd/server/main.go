package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcgvault/backend/config"
	"github.com/tcgvault/backend/internal/app"
	httpDelivery "github.com/tcgvault/backend/internal/delivery/http"
	"github.com/tcgvault/backend/internal/domain"
	"github.com/tcgvault/backend/internal/logging"
	"github.com/tcgvault/backend/internal/usecase"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting TCGVault importer",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("search_url", cfg.Search.BaseURL),
		zap.Bool("search_api_key", cfg.Search.APIKey != ""),
		zap.Duration("row_delay", cfg.Import.RowDelay),
		zap.Duration("cache_ttl", cfg.Cache.TTL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	importService, closeCache := app.NewImportService(cfg, logger)
	defer closeCache()

	repo, closeDB, err := app.OpenCollection(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()
	if repo == nil {
		logger.Warn("no database configured, commit endpoint disabled")
	}

	runs := usecase.NewRunManager(importService, logger, usecase.RunManagerConfig{
		TTL: cfg.Import.RunTTL,
	})
	defer runs.Close()

	defaultGame, _ := domain.ParseGame(cfg.Import.DefaultGame)
	handler := httpDelivery.NewHandler(
		runs,
		importService.Parser(),
		usecase.NewCollectionService(repo, logger),
		logger,
		httpDelivery.HandlerConfig{
			DefaultGame:  defaultGame,
			MaxFileBytes: cfg.Import.MaxFileBytes,
		},
	)

	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// Cancelled runs finish their reports, which ends open event streams
	runs.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
