package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ataa-platform/be-aid-ledger/internal/config"
	"github.com/ataa-platform/be-aid-ledger/internal/handler"
	"github.com/ataa-platform/be-aid-ledger/internal/repository/postgres"
	"github.com/ataa-platform/be-aid-ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()
	if cfg.Environment == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("environment", cfg.Environment).
		Msg("Starting aid ledger service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run migrations, then open the pool
	if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	store := postgres.NewStore(db)

	// Initialize services
	dispatchService := service.NewDispatchService(store, log)
	contributionService := service.NewContributionService(store, log)
	ruleService := service.NewRuleService(store, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(dispatchService, contributionService, ruleService, log)

	mux := http.NewServeMux()
	mux.Handle("/", httpHandler.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = handler.Timeout(cfg.RequestTimeout)(h)
	h = handler.Logger(log)(h)
	h = handler.Recovery(log)(h)
	h = handler.RequestID(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
