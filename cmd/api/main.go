package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/dompet/internal/agents"
	"github.com/dvloznov/dompet/internal/api/handlers"
	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/config"
	infraBQ "github.com/dvloznov/dompet/internal/infra/bigquery"
	"github.com/dvloznov/dompet/internal/infra/sqlite"
	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/dvloznov/dompet/internal/jobs/inmemory"
	"github.com/dvloznov/dompet/internal/llm"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/notionsync"
	"github.com/dvloznov/dompet/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}

	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address (or set DOMPET_HTTP_ADDR)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (or set DOMPET_DB_PATH)")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open store")
	}
	defer store.Close()

	backend, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reasoning backend")
	}
	backend = llm.NewCachedHealth(backend, cfg.HealthTTL)

	registry, err := agents.FromFile(cfg.PromptsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load prompt overrides")
	}

	opts := []service.Option{
		service.WithRegistry(registry),
		service.WithLLMOptions(cfg.LLM.Options()),
		service.WithLogger(log),
	}

	// Export jobs run only when a warehouse or mirror is configured.
	var (
		jobStore jobs.JobStore
		jobQueue *inmemory.Queue
		exporter service.RunExporter
		mirror   service.SuggestionMirror
	)
	if cfg.ExportEnabled() {
		bqExporter, err := infraBQ.NewRunExporter(ctx, cfg.BQProject, cfg.BQDataset, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
		}
		defer bqExporter.Close()
		if err := bqExporter.EnsureTables(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare BigQuery tables")
		}
		exporter = bqExporter
	}
	if cfg.NotionEnabled() {
		mirror = notionsync.NewMirror(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDBID)
	}
	if exporter != nil || mirror != nil {
		memStore := inmemory.NewStore()
		jobStore = memStore
		jobQueue = inmemory.NewQueue(100, memStore)
		opts = append(opts, service.WithPublisher(jobQueue))
	}

	svc := service.New(store, backend, opts...)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if jobQueue != nil {
		if err := jobQueue.Start(workerCtx, svc.ExportHandler(exporter, mirror)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start export workers")
		}
		log.Info().Msg("Export workers started")
	}

	limiter := middleware.NewRateLimiter(cfg.AnalyzeRate, cfg.AnalyzeBurst, middleware.PathValueKey("id"), log)

	server := &http.Server{
		Addr: *addr,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Service:        svc,
			Store:          store,
			JobStore:       jobStore,
			AnalyzeLimiter: limiter,
			Log:            log,
		}),
		ReadTimeout: 15 * time.Second,
		// Analyze runs every agent in sequence.
		WriteTimeout: 5*cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", *addr).
			Str("provider", backend.Name()).
			Bool("export", exporter != nil).
			Bool("notion", mirror != nil).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if jobQueue != nil {
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping export queue")
		}
		cancelWorker()
	}

	log.Info().Msg("Server exited")
}
