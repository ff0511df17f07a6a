package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"permafeed/service/activity"
	"permafeed/service/config"
	"permafeed/service/db"
	"permafeed/service/gateway"
	"permafeed/service/metrics"
	natspkg "permafeed/service/nats"
	"permafeed/service/pricing"
	"permafeed/service/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the activity aggregation server",
		Action: func(c *cli.Context) error {
			runServer()
			return nil
		},
	}
}

func runServer() {
	// Load and validate configuration from environment.
	// This fails fast if any required config is missing or invalid.
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"gateway", cfg.GatewayURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(nil)

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	// Initialize gateway client and the aggregation pipeline
	gw := gateway.NewClient(cfg.GatewayURL, nil, m, logger)
	dispatcher := activity.NewDispatcher(gw, cfg.FetchPageSize, m, logger)
	normalizer := activity.NewNormalizer(m, logger)

	// Initialize NATS publisher for settled-cycle events
	publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
	if err != nil {
		logger.Error("failed to initialize NATS publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	activitySvc := activity.NewService(dispatcher, normalizer, publisher, m, logger)

	// Initialize the independent price-rate flow
	priceClient := pricing.NewClient(cfg.PriceAPIURL, cfg.PriceAssetID, nil, m, logger)
	rates := pricing.NewService(priceClient, m, logger)
	rates.SetCurrency(ctx, cfg.DefaultCurrency)
	go rates.Run(ctx, cfg.PriceRefreshInterval)

	// Restore session state from a previous run, if any
	if prefs, err := store.GetPreferences(ctx, "default"); err == nil {
		rates.SetCurrency(ctx, prefs.DisplayCurrency)
		if err := activitySvc.SetAddress(ctx, prefs.ActiveAddress); err != nil {
			logger.Warn("stored address no longer valid", "address", prefs.ActiveAddress, "error", err)
		}
	}

	// Initialize SSE bridge
	ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to initialize SSE publisher", "error", err)
		os.Exit(1)
	}

	httpServer := server.New(cfg.ServerAddr, cfg, store, activitySvc, rates, ssePublisher, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
