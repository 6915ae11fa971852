package handlers

import (
	"fmt"
	"net/http"

	"github.com/dvloznov/dompet/internal/api/middleware"
	"github.com/dvloznov/dompet/internal/domain"
	"github.com/dvloznov/dompet/internal/logger"
	"github.com/dvloznov/dompet/internal/session"
)

const (
	defaultSource   = "api"
	maxSourceLength = 32
	defaultTxLimit  = 100
)

// TransactionsHandler handles transaction ingestion and listing.
type TransactionsHandler struct {
	svc   Service
	store session.Store
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc Service, store session.Store) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, store: store}
}

// Ingest handles POST /users/{id}/transactions
func (h *TransactionsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	var req struct {
		Transactions []map[string]any `json:"transactions"`
		Source       string           `json:"source"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Source == "" {
		req.Source = defaultSource
	}
	if len(req.Source) > maxSourceLength {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("source must be at most %d characters", maxSourceLength))
		return
	}

	txs := make([]domain.Transaction, 0, len(req.Transactions))
	for i, row := range req.Transactions {
		tx, err := parseTransaction(row)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("transactions[%d]: %v", i, err))
			return
		}
		txs = append(txs, tx)
	}

	n, err := h.svc.Ingest(ctx, userID, req.Source, txs)
	if err != nil {
		writeServiceError(w, log, err, "Failed to ingest transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"ingested": n,
	})
}

func parseTransaction(row map[string]any) (domain.Transaction, error) {
	tx, err := domain.FromMapping(row)
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx.Date, err = domain.NormalizeDate(tx.Date); err != nil {
		return domain.Transaction{}, err
	}
	if tx.Description == "" {
		return domain.Transaction{}, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	return tx, nil
}

// List handles GET /users/{id}/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	ctx, log := logger.WithUser(r.Context(), userID)

	limit, err := queryInt(r, "limit", defaultTxLimit)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		writeServiceError(w, log, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []session.StoredTransaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}
