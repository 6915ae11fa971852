package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/dompet/internal/config"
	"github.com/dvloznov/dompet/internal/infra/sqlite"
	"github.com/dvloznov/dompet/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (or set DOMPET_DB_PATH)")
	status := flag.Bool("status", false, "List migrations and whether they are applied, without running any")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := sqlite.OpenDB(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer db.Close()

	log.Info().Str("db", *dbPath).Msg("Connected to database")

	if *status {
		states, err := sqlite.Status(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migration status")
		}
		printStatus(os.Stdout, states)
		return
	}

	ran, err := sqlite.Migrate(ctx, db)
	for _, m := range ran {
		fmt.Printf("  [OK]   %04d_%s\n", m.Version, m.Name)
	}
	if err != nil {
		log.Fatal().Err(err).Int("applied", len(ran)).Msg("Migration failed")
	}

	if len(ran) == 0 {
		fmt.Println("No new migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("Successfully applied %d migration(s)\n", len(ran))
	}
}

func printStatus(w io.Writer, states []sqlite.MigrationState) {
	pending := 0
	for _, st := range states {
		if st.Applied == nil {
			pending++
			fmt.Fprintf(w, "  [PENDING] %04d_%s\n", st.Version, st.Name)
			continue
		}
		fmt.Fprintf(w, "  [APPLIED] %04d_%s  %s\n", st.Version, st.Name, st.Applied.AppliedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "%d migration(s), %d pending\n", len(states), pending)
}
