package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/dompet/internal/config"
	infraBQ "github.com/dvloznov/dompet/internal/infra/bigquery"
	"github.com/dvloznov/dompet/internal/infra/sqlite"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	user := flag.String("user", "", "User ID (required)")
	runID := flag.String("run", "", "Run ID to export (defaults to the user's latest run)")
	project := flag.String("project", cfg.BQProject, "GCP project ID (or set DOMPET_BQ_PROJECT)")
	dataset := flag.String("dataset", cfg.BQDataset, "BigQuery dataset ID (or set DOMPET_BQ_DATASET)")
	flag.Parse()

	if *user == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *project == "" {
		log.Fatal().Msg("Error: --project is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to open store")
	}
	defer store.Close()

	svc := service.New(store, nil, service.WithLogger(log))

	if *runID == "" {
		run, err := svc.Latest(ctx, *user)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load latest run")
		}
		*runID = run.RunID
	}

	exporter, err := infraBQ.NewRunExporter(ctx, *project, *dataset, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
	}
	defer exporter.Close()

	if err := exporter.EnsureTables(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare BigQuery tables")
	}

	if err := svc.ExportRun(ctx, *user, *runID, exporter, nil); err != nil {
		log.Fatal().Err(err).Str("run_id", *runID).Msg("Export failed")
	}

	fmt.Printf("Exported run %s to %s.%s\n", *runID, *project, *dataset)
}
