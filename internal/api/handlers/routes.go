package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/rs/zerolog"
)

// RouterConfig holds the dependencies of NewRouter. JobStore and
// AnalyzeLimiter are optional.
type RouterConfig struct {
	Service        Service
	Store          session.Store
	JobStore       jobs.JobStore
	AnalyzeLimiter *middleware.RateLimiter
	Log            zerolog.Logger
}

// NewRouter registers every endpoint and wraps the mux in the standard
// middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	transactions := NewTransactionsHandler(cfg.Service, cfg.Store)
	analyses := NewAnalysesHandler(cfg.Service, cfg.Store)
	profiles := NewProfileHandler(cfg.Store)
	outcomes := NewOutcomesHandler(cfg.Service, cfg.Store)

	analyze := http.Handler(http.HandlerFunc(analyses.Analyze))
	if cfg.AnalyzeLimiter != nil {
		analyze = cfg.AnalyzeLimiter.Wrap(analyze)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /users/{id}/transactions", transactions.Ingest)
	mux.HandleFunc("GET /users/{id}/transactions", transactions.List)

	mux.Handle("POST /users/{id}/analyze", analyze)
	mux.HandleFunc("GET /users/{id}/analyses/latest", analyses.Latest)
	mux.HandleFunc("GET /users/{id}/analyses", analyses.History)
	mux.HandleFunc("GET /users/{id}/runs/{run_id}/suggestions", analyses.RunSuggestions)

	mux.HandleFunc("GET /users/{id}/profile", profiles.Get)
	mux.HandleFunc("PUT /users/{id}/profile", profiles.Update)
	mux.HandleFunc("POST /users/{id}/goals", profiles.UpsertGoal)
	mux.HandleFunc("GET /users/{id}/goals", profiles.ListGoals)

	mux.HandleFunc("POST /users/{id}/suggestions/{sid}/outcomes", outcomes.Record)
	mux.HandleFunc("GET /users/{id}/impact", outcomes.Impact)

	if cfg.JobStore != nil {
		jobsHandler := NewJobsHandler(cfg.JobStore, cfg.Log)
		mux.HandleFunc("GET /users/{id}/exports", jobsHandler.ListExports)
		mux.HandleFunc("GET /jobs/{job_id}", jobsHandler.GetJob)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		h := cfg.Service.Health(r.Context())
		status := http.StatusOK
		if h.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteJSON(w, status, map[string]interface{}{
			"status":  h.Status,
			"backend": h.Backend,
			"store":   h.Store,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(cfg.Log),
		middleware.RequestID,
		middleware.Logger(cfg.Log),
		middleware.CORS,
	)
}
