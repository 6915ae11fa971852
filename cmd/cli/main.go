package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/dompet/internal/agents"
	"github.com/dvloznov/dompet/internal/config"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/gcsuploader"
	"github.com/dvloznov/dompet/internal/infra/sqlite"
	"github.com/dvloznov/dompet/internal/llm"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/pipeline"
	"github.com/dvloznov/dompet/internal/service"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "analyze":
		runAnalyze(cfg, log)
	case "ingest":
		runIngest(cfg, log)
	case "run":
		runPersisted(cfg, log)
	case "latest":
		runLatest(cfg, log)
	case "history":
		runHistory(cfg, log)
	case "impact":
		runImpact(cfg, log)
	case "outcome":
		runOutcome(cfg, log)
	case "upload":
		runUpload(log)
	case "health":
		runHealth(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Dompet CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Run the agents over a CSV (local path or gs:// URI) without saving")
	fmt.Println("  ingest    Store transactions from a CSV for a user")
	fmt.Println("  run       Analyze a user's stored transactions and save the run")
	fmt.Println("  latest    Show a user's most recent run")
	fmt.Println("  history   List a user's recent runs")
	fmt.Println("  impact    Show a user's outcome snapshot")
	fmt.Println("  outcome   Record what happened to a suggestion")
	fmt.Println("  upload    Upload a CSV statement to GCS")
	fmt.Println("  health    Check the reasoning backend and the store")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func cliContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

// newService opens the store and, when withBackend is set, the configured
// reasoning backend.
func newService(ctx context.Context, cfg *config.Config, log zerolog.Logger, withBackend bool) (*service.Service, func()) {
	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to open store")
	}

	opts := []service.Option{service.WithLogger(log), service.WithLLMOptions(cfg.LLM.Options())}
	var backend llm.Backend
	if withBackend {
		backend = mustBackend(ctx, cfg, log)
		opts = append(opts, service.WithRegistry(mustRegistry(cfg, log)))
	}

	return service.New(store, backend, opts...), func() { store.Close() }
}

func mustBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) llm.Backend {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	backend, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reasoning backend")
	}
	return backend
}

func mustRegistry(cfg *config.Config, log zerolog.Logger) *agents.Registry {
	registry, err := agents.FromFile(cfg.PromptsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load prompt overrides")
	}
	return registry
}

func requireUser(log zerolog.Logger, user string) {
	if strings.TrimSpace(user) == "" {
		log.Fatal().Msg("Error: --user is required")
	}
}

func runAnalyze(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "CSV path or gs:// URI with date, description and amount columns")
	limit := fs.Int("limit", domain.DefaultPreviewRows, "Number of most recent transactions to analyze")
	notes := fs.String("notes", "", "Persona notes passed to every agent")
	goals := fs.String("goals", "", "Goal context passed to every agent")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := cliContext(log, 15*time.Minute)
	defer cancel()

	txs, err := readTransactions(ctx, *file, *limit)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to load transactions")
	}

	p, err := pipeline.New(txs, *notes, *goals, pipeline.WithRegistry(mustRegistry(cfg, log)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}
	backend := mustBackend(ctx, cfg, log)

	log.Info().Int("transactions", len(txs)).Str("provider", backend.Name()).Msg("Starting analysis")

	_, err = p.Run(ctx, backend, cfg.LLM.Options(), p.BuildContext(), func(res pipeline.AgentResult) error {
		printResult(os.Stdout, res)
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	file := fs.String("file", "", "CSV path or gs:// URI")
	source := fs.String("source", "cli", "Source label stored with each row")
	fs.Parse(os.Args[2:])

	requireUser(log, *user)
	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := cliContext(log, 5*time.Minute)
	defer cancel()

	txs, err := readTransactions(ctx, *file, 0)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to load transactions")
	}

	svc, closeStore := newService(ctx, cfg, log, false)
	defer closeStore()

	n, err := svc.Ingest(ctx, *user, *source, txs)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
	fmt.Printf("Ingested %d of %d transactions for %s.\n", n, len(txs), *user)
}

func runPersisted(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	limit := fs.Int("limit", service.DefaultAnalyzeLimit, "Number of most recent transactions to analyze")
	fs.Parse(os.Args[2:])

	requireUser(log, *user)

	ctx, cancel := cliContext(log, 15*time.Minute)
	defer cancel()

	svc, closeStore := newService(ctx, cfg, log, true)
	defer closeStore()

	run, err := svc.Analyze(ctx, *user, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
	printRun(os.Stdout, run)
}

func runLatest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	requireUser(log, *user)

	ctx, cancel := cliContext(log, time.Minute)
	defer cancel()

	svc, closeStore := newService(ctx, cfg, log, false)
	defer closeStore()

	run, err := svc.Latest(ctx, *user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load latest run")
	}
	printRun(os.Stdout, run)
}

func runHistory(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	limit := fs.Int("limit", service.DefaultHistoryLimit, "Number of runs to list")
	fs.Parse(os.Args[2:])

	requireUser(log, *user)

	ctx, cancel := cliContext(log, time.Minute)
	defer cancel()

	svc, closeStore := newService(ctx, cfg, log, false)
	defer closeStore()

	runs, err := svc.History(ctx, *user, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load history")
	}
	printHistory(os.Stdout, runs)
}

func runImpact(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("impact", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	requireUser(log, *user)

	ctx, cancel := cliContext(log, time.Minute)
	defer cancel()

	svc, closeStore := newService(ctx, cfg, log, false)
	defer closeStore()

	snap, err := svc.Store().GetImpactSnapshot(ctx, *user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load impact")
	}
	printImpact(os.Stdout, snap)
}

func runOutcome(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("outcome", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	suggestion := fs.String("suggestion", "", "Suggestion ID")
	status := fs.String("status", "", "Outcome: acted, ignored or failed")
	impact := fs.String("impact", "", "Estimated impact in RM (optional)")
	notes := fs.String("notes", "", "Free-form notes (optional)")
	showLog := fs.Bool("log", false, "Print the suggestion's outcome log instead of recording")
	fs.Parse(os.Args[2:])

	requireUser(log, *user)
	sid, err := strconv.ParseInt(*suggestion, 10, 64)
	if err != nil || sid <= 0 {
		log.Fatal().Str("suggestion", *suggestion).Msg("Error: --suggestion must be a positive integer")
	}

	ctx, cancel := cliContext(log, time.Minute)
	defer cancel()

	svc, closeStore := newService(ctx, cfg, log, false)
	defer closeStore()

	if *showLog {
		events, err := svc.Store().OutcomeHistory(ctx, sid)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load outcome log")
		}
		printOutcomeLog(os.Stdout, events)
		return
	}

	in := session.OutcomeInput{Status: strings.ToLower(strings.TrimSpace(*status)), Notes: *notes}
	if *impact != "" {
		d, err := decimal.NewFromString(*impact)
		if err != nil {
			log.Fatal().Err(err).Str("impact", *impact).Msg("Error: --impact must be a number")
		}
		in.Impact = &d
	}

	snap, err := svc.RecordOutcome(ctx, *user, sid, in)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to record outcome")
	}
	printImpact(os.Stdout, snap)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name (or set GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx, cancel := cliContext(log, 5*time.Minute)
	defer cancel()

	// Refuse to upload something the analyzer cannot read.
	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open file")
	}
	_, err = domain.LoadTable(f, 0)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("File is not a valid transaction table")
	}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runHealth(cfg *config.Config, log zerolog.Logger) {
	ctx, cancel := cliContext(log, 30*time.Second)
	defer cancel()

	svc, closeStore := newService(ctx, cfg, log, true)
	defer closeStore()

	h := svc.Health(ctx)
	fmt.Printf("status:  %s\nbackend: %t\nstore:   %t\n", h.Status, h.Backend, h.Store)
	if h.Status != "ok" {
		os.Exit(1)
	}
}
