package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/dompet/internal/config"
	"github.com/dvloznov/dompet/internal/infra/sqlite"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/notionsync"
	"github.com/dvloznov/dompet/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	user := flag.String("user", "", "User ID (required)")
	runID := flag.String("run", "", "Run ID to sync (defaults to the user's latest run)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set DOMPET_NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion database ID (or set DOMPET_NOTION_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *user == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to open store")
	}
	defer store.Close()

	svc := service.New(store, nil, service.WithLogger(log))

	var run *service.AnalysisRun
	if *runID != "" {
		run, err = svc.Run(ctx, *user, *runID)
	} else {
		run, err = svc.Latest(ctx, *user)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load run")
	}

	log.Info().
		Str("user_id", *user).
		Str("run_id", run.RunID).
		Int("suggestions", len(run.Suggestions)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	notionClient := notionsync.NewNotionClient(*notionToken)

	stats, err := notionsync.SyncSuggestions(ctx, notionClient, *notionDBID, *user, run.Suggestions, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d failed.\n", stats.Created, stats.Updated, stats.Failed)
}
