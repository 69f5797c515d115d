package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/triad3/irpf-import/internal/api"
	"github.com/triad3/irpf-import/internal/api/handlers"
	"github.com/triad3/irpf-import/internal/api/middleware"
	"github.com/triad3/irpf-import/internal/app"
	"github.com/triad3/irpf-import/internal/config"
	"github.com/triad3/irpf-import/internal/export"
	"github.com/triad3/irpf-import/internal/jobs/inmemory"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/metrics"
	"github.com/triad3/irpf-import/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(context.Background(), log)

	// Metrics
	rec := metrics.NewNop()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		r, shutdown, err := metrics.Init(ctx, metrics.Config{
			ServiceName: "triad3-api",
			Environment: cfg.Environment,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize metrics")
		}
		defer shutdown(context.Background())
		rec = r
		metricsHandler = metrics.Handler()
	}

	// Initialize repositories
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("Failed to open storage")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate storage")
	}

	blobs, blobCloser, err := app.OpenBlobs(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BlobBackend).Msg("Failed to open blob storage")
	}
	defer blobCloser.Close()

	client, err := app.NewLLM(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLMProvider).Msg("Failed to create LLM client")
	}

	importer := app.NewImporter(store, blobs, client, rec)

	// Declarations left in Processing by a previous process will never finish.
	swept, err := pipeline.NewSweeper(store).Sweep(ctx, cfg.StaleAfter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep interrupted imports")
	} else if swept > 0 {
		log.Warn().Int("count", swept).Msg("Marked interrupted imports as failed")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, jobStore,
		inmemory.WithWorkers(cfg.QueueWorkers),
		inmemory.WithMaxRetries(cfg.JobMaxRetries),
	)

	if err := jobQueue.Start(ctx, importer.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	// Authentication
	auth := middleware.HeaderAuth
	if cfg.AuthDisabled {
		log.Warn().Msg("Authentication disabled, trusting the " + middleware.AccountHeader + " header")
	} else {
		keys, err := middleware.NewJWKSCache(ctx, cfg.AuthJWKSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize JWKS cache")
		}
		auth = middleware.Auth(keys)
	}

	handler := api.NewRouter(api.RouterConfig{
		Declarations: handlers.NewDeclarationsHandler(handlers.DeclarationsConfig{
			Starter:        pipeline.NewInitializer(store),
			Reporter:       pipeline.NewReporter(store),
			Reader:         store,
			Exporter:       export.NewService(store),
			Blobs:          blobs,
			Publisher:      jobQueue,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		Jobs:      handlers.NewJobsHandler(jobStore),
		Auth:      auth,
		Metrics:   metricsHandler,
		Telemetry: cfg.MetricsEnabled,
		Log:       log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Uint("port", cfg.ServerPort).Str("environment", cfg.Environment).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Imports already accepted run to completion before the process exits.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
