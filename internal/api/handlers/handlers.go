// Package handlers implements the HTTP endpoints of the reasoning API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/dvloznov/dompet/internal/llm"
	"github.com/dvloznov/dompet/internal/pipeline"
	"github.com/dvloznov/dompet/internal/service"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Service is the orchestration surface the handlers call.
type Service interface {
	Ingest(ctx context.Context, userID, source string, txs []domain.Transaction) (int, error)
	Analyze(ctx context.Context, userID string, limit int) (*service.AnalysisRun, error)
	Latest(ctx context.Context, userID string) (*service.AnalysisRun, error)
	History(ctx context.Context, userID string, limit int) ([]*service.AnalysisRun, error)
	RecordOutcome(ctx context.Context, userID string, suggestionID int64, in session.OutcomeInput) (*session.ImpactSnapshot, error)
	Health(ctx context.Context) service.HealthStatus
}

var _ Service = (*service.Service)(nil)

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as a 500 with fallback as the message.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, session.ErrInvalidInput):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoTransactions):
		middleware.WriteError(w, http.StatusNotFound, "No transactions for this user")
	case errors.Is(err, session.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "Suggestion belongs to another user")
	case errors.Is(err, llm.ErrBackend):
		log.Error().Err(err).Msg("Reasoning backend failed")
		middleware.WriteError(w, http.StatusBadGateway, "Reasoning backend unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Msg("Request timed out")
		middleware.WriteError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, name)
	}
	return v, nil
}

// JobsHandler exposes export job state.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /jobs/{job_id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListExports handles GET /users/{id}/exports
func (h *JobsHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: r.PathValue("id"),
		RunID:  query.Get("run_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ExportRunJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
