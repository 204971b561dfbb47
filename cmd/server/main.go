// Package main provides the brag API server entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lanefield/brag/internal/clustering"
	"github.com/lanefield/brag/internal/config"
	"github.com/lanefield/brag/internal/db/gorm"
	"github.com/lanefield/brag/internal/embedding"
	"github.com/lanefield/brag/internal/maintenance"
	"github.com/lanefield/brag/internal/metering"
	"github.com/lanefield/brag/internal/server"
	"github.com/lanefield/brag/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database store (migrations run automatically)
	store, err := gorm.NewStore(gorm.Config{
		DSN:           cfg.DatabaseDSN,
		MaxConns:      cfg.MaxConns,
		EmbeddingDims: cfg.EmbeddingDimensions,
		LogLevel:      gormlogger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database store")
	}
	defer store.Close()

	achievementStore := gorm.NewAchievementStore(store)
	workstreamStore := gorm.NewWorkstreamStore(store)
	runStore := gorm.NewRunStore(store)
	usageStore := gorm.NewUsageStore(store)
	userStore := gorm.NewUserStore(store)

	// Embedding provider
	model, err := embedding.NewOpenAIModel(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize embedding model")
	}
	defer model.Close()
	embedService := embedding.NewService(model)
	completer := embedding.NewCompleter(achievementStore, embedService,
		cfg.EmbeddingBatchSize, cfg.EmbeddingConcurrency, log.Logger)

	log.Info().
		Str("model", embedService.Name()).
		Int("dimensions", embedService.Dimensions()).
		Msg("Embedding provider ready")

	engine := clustering.NewEngine(achievementStore, workstreamStore, runStore, completer, log.Logger)
	gate := metering.NewGate(usageStore, cfg.GenerationCost, log.Logger)

	svc := server.NewService(engine, gate, userStore, store, server.Options{
		Port:        cfg.Port,
		MaxBodySize: cfg.MaxBodySize,
		Version:     Version,
	})

	// Maintenance scheduler: embedding backfill + database statistics
	maint := maintenance.NewService(achievementStore, completer, store, cfg, log.Logger)
	if err := maint.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to start maintenance scheduler")
	}
	defer maint.Stop()

	// Settings watcher: exit cleanly on settings change so the supervisor
	// restarts the process with the new configuration.
	settingsWatcher := watcher.New(config.SettingsPath(), func() {
		log.Info().Msg("Settings changed, shutting down for restart")
		cancel()
	}, log.Logger)
	if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
	}
	defer settingsWatcher.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP service failed")
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
