package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deckide/contextd/internal/api"
	"github.com/deckide/contextd/internal/config"
	"github.com/deckide/contextd/internal/controller"
	"github.com/deckide/contextd/internal/drift"
	"github.com/deckide/contextd/internal/health"
	"github.com/deckide/contextd/internal/metrics"
	"github.com/deckide/contextd/internal/monitor"
	"github.com/deckide/contextd/internal/snapshot"
	"github.com/deckide/contextd/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("CONTEXTD_ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("sessions_db", cfg.SessionsDB).
		Bool("embeddings", cfg.EmbeddingsEnabled()).
		Msg("starting contextd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sessionStore, err := store.NewSQLite(cfg.SessionsDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer sessionStore.Close()

	contentStore, err := snapshot.NewFileContentStore(cfg.SnapshotsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open snapshot store")
	}

	var detector drift.Detector
	if cfg.EmbeddingsEnabled() {
		embedder := drift.NewHTTPEmbedder(drift.HTTPEmbedderConfig{
			Endpoint: cfg.EmbeddingsEndpoint,
			APIKey:   cfg.EmbeddingsAPIKey,
			Model:    cfg.EmbeddingsModel,
		})
		ed := drift.NewEmbeddingDetector(embedder)
		ed.WindowSize = cfg.DriftWindow
		ed.Threshold = cfg.DriftThreshold
		detector = ed
		logger.Info().Str("model", cfg.EmbeddingsModel).Msg("embedding drift strategy enabled")
	} else {
		kd := drift.NewKeywordDetector()
		kd.WindowSize = cfg.DriftWindow
		kd.Threshold = cfg.DriftThreshold
		detector = kd
	}

	m := metrics.New()

	ctrl := controller.New(
		sessionStore,
		monitor.New(logger),
		health.New(
			health.WithTokenDivisor(cfg.TokenPenaltyDivisor),
			health.WithFreshnessWindow(cfg.FreshnessWindow),
		),
		detector,
		snapshot.NewManager(contentStore, logger),
		m,
		controller.Options{
			AutoCompactThreshold: cfg.AutoCompactThreshold,
			HealthCheckInterval:  cfg.HealthCheckInterval,
			DriftThreshold:       cfg.DriftThreshold,
			KeepRecentEvents:     cfg.KeepRecentEvents,
			CompactThreshold:     cfg.CompactThreshold,
			TrimThreshold:        cfg.TrimThreshold,
			SaveImmediately:      true,
		},
		logger,
	)

	if err := ctrl.StartAutoMonitor(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start auto-monitor")
	}

	server := api.NewServer(api.ServerConfig{
		ListenAddr:  cfg.ListenAddr,
		APIKey:      cfg.APIKey,
		CORSOrigins: cfg.CORSOrigins,
	}, ctrl, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}

	cancel()
	ctrl.StopAutoMonitor()

	shutdownDone := make(chan struct{})
	go func() {
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("contextd stopped")
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}
}
