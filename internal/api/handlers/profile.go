package handlers

import (
	"net/http"

	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/session"
	"github.com/shopspring/decimal"
)

// ProfileHandler serves profiles and goals.
type ProfileHandler struct {
	store session.Store
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(store session.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// Get handles GET /users/{id}/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	profile, err := h.store.GetOrCreateProfile(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err, "Failed to load profile")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, profile)
}

// Update handles PUT /users/{id}/profile. Omitted fields are unchanged.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	var req struct {
		RiskTolerance *string `json:"risk_tolerance"`
		ResponseStyle *string `json:"response_style"`
		SuccessNotes  *string `json:"success_notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.store.UpdateProfile(ctx, userID, session.ProfileUpdate{
		RiskTolerance: req.RiskTolerance,
		ResponseStyle: req.ResponseStyle,
		SuccessNotes:  req.SuccessNotes,
	})
	if err != nil {
		writeServiceError(w, log, err, "Failed to update profile")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, profile)
}

// UpsertGoal handles POST /users/{id}/goals. A goal with an existing name
// is updated in place.
func (h *ProfileHandler) UpsertGoal(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	var req struct {
		Name            string           `json:"name"`
		TargetAmount    decimal.Decimal  `json:"target_amount"`
		TargetDate      string           `json:"target_date"`
		Notes           string           `json:"notes"`
		CurrentProgress *decimal.Decimal `json:"current_progress"`
		Status          *string          `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := h.store.UpsertGoal(ctx, userID, session.GoalInput{
		Name:            req.Name,
		TargetAmount:    req.TargetAmount,
		TargetDate:      req.TargetDate,
		Notes:           req.Notes,
		CurrentProgress: req.CurrentProgress,
		Status:          req.Status,
	})
	if err != nil {
		writeServiceError(w, log, err, "Failed to save goal")
		return
	}
	h.writeGoals(w, r, userID)
}

// ListGoals handles GET /users/{id}/goals
func (h *ProfileHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	h.writeGoals(w, r, r.PathValue("id"))
}

// writeGoals responds with the user's goals as a JSON array in creation order.
func (h *ProfileHandler) writeGoals(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, log := logger.WithUser(r.Context(), userID)

	goals, err := h.store.ListGoals(ctx, userID)
	if err != nil {
		writeServiceError(w, log, err, "Failed to list goals")
		return
	}
	if goals == nil {
		goals = []session.Goal{}
	}
	middleware.WriteJSON(w, http.StatusOK, goals)
}
