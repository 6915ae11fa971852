package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
)

// OutcomesHandler records suggestion outcomes and reports impact.
type OutcomesHandler struct {
	svc   Service
	store session.Store
}

// NewOutcomesHandler creates a new outcomes handler.
func NewOutcomesHandler(svc Service, store session.Store) *OutcomesHandler {
	return &OutcomesHandler{svc: svc, store: store}
}

// Record handles POST /users/{id}/suggestions/{sid}/outcomes
func (h *OutcomesHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	sid, err := strconv.ParseInt(r.PathValue("sid"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "suggestion id must be an integer")
		return
	}

	var req struct {
		OutcomeStatus string           `json:"outcome_status"`
		Impact        *decimal.Decimal `json:"impact"`
		Notes         string           `json:"notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.svc.RecordOutcome(ctx, userID, sid, session.OutcomeInput{
		Status: req.OutcomeStatus,
		Impact: req.Impact,
		Notes:  req.Notes,
	})
	if err != nil {
		writeServiceError(w, log, err, "Failed to record outcome")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// Impact handles GET /users/{id}/impact
func (h *OutcomesHandler) Impact(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	snap, err := h.store.GetImpactSnapshot(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err, "Failed to compute impact")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap)
}
