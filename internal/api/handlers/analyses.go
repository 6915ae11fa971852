package handlers

import (
	"net/http"

	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/service"
	"github.com/dvloznov/dompet/internal/session"
)

// AnalysesHandler triggers runs and serves their results.
type AnalysesHandler struct {
	svc   Service
	store session.Store
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(svc Service, store session.Store) *AnalysesHandler {
	return &AnalysesHandler{svc: svc, store: store}
}

// Analyze handles POST /users/{id}/analyze
func (h *AnalysesHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	limit, err := queryInt(r, "limit", service.DefaultAnalyzeLimit)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.svc.Analyze(ctx, userID, limit)
	if err != nil {
		writeServiceError(w, log, err, "Failed to run analysis")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, run)
}

// Latest handles GET /users/{id}/analyses/latest
func (h *AnalysesHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	run, err := h.svc.Latest(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err, "Failed to load latest analysis")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, run)
}

// History handles GET /users/{id}/analyses
func (h *AnalysesHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	limit, err := queryInt(r, "limit", service.DefaultHistoryLimit)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.svc.History(ctx, userID, limit)
	if err != nil {
		writeServiceError(w, log, err, "Failed to load analysis history")
		return
	}
	if runs == nil {
		runs = []*service.AnalysisRun{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// RunSuggestions handles GET /users/{id}/runs/{run_id}/suggestions
func (h *AnalysesHandler) RunSuggestions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	recs, err := h.store.GetSuggestionsForRun(ctx, userID, r.PathValue("run_id"))
	if err != nil {
		writeServiceError(w, log, err, "Failed to load suggestions")
		return
	}
	if recs == nil {
		recs = []session.SuggestionRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": recs,
		"count":       len(recs),
	})
}
