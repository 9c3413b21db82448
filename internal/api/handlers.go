/**
 * @description
 * This file contains the HTTP handlers for the wallet endpoints plus the
 * response helpers shared by every handler file. Handlers parse requests, call
 * the engines, and translate sentinel errors into HTTP statuses. Raw storage
 * errors never cross the boundary; unexpected failures map to a generic 500.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: engines, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/app"
	"github.com/souqly/marketplace-core/internal/domain"
	"github.com/souqly/marketplace-core/internal/store"
)

// Handlers holds the engines the HTTP layer drives.
type Handlers struct {
	ledger  *app.Ledger
	orders  *app.OrderEngine
	offers  *app.OfferEngine
	returns *app.ReturnEngine
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(ledger *app.Ledger, orders *app.OrderEngine, offers *app.OfferEngine, returns *app.ReturnEngine) *Handlers {
	return &Handlers{ledger: ledger, orders: orders, offers: offers, returns: returns}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// respondError maps sentinel errors onto the HTTP surface. Anything not
// recognized is logged and returned as a generic 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidTarget),
		errors.Is(err, app.ErrEmptyCart),
		errors.Is(err, app.ErrMixedPartnerCart),
		errors.Is(err, app.ErrCounterAmountRequired),
		errors.Is(err, app.ErrInvalidRefundAmount):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, app.ErrForbidden),
		errors.Is(err, app.ErrOwnListing):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrListingNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrOrderItemNotFound),
		errors.Is(err, store.ErrOfferNotFound),
		errors.Is(err, store.ErrReturnNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient_funds", "Insufficient wallet balance")
	case errors.Is(err, app.ErrAlreadyResolved),
		errors.Is(err, app.ErrInvalidTransition),
		errors.Is(err, app.ErrOfferResolved),
		errors.Is(err, app.ErrOfferNotApplicable),
		errors.Is(err, app.ErrItemNotEligible),
		errors.Is(err, app.ErrReturnNotApproved),
		errors.Is(err, store.ErrOfferAlreadyActive),
		errors.Is(err, store.ErrOfferConsumed),
		errors.Is(err, store.ErrReturnAlreadyOpen),
		errors.Is(err, store.ErrAccountExists),
		errors.Is(err, store.ErrListingUnavailable),
		errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "state_conflict", err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled error\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return false
	}
	return true
}

func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "Could not get user ID from context")
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// GetBalanceHandler returns the caller's wallet.
func (h *Handlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.GetAccountByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListTransactionsHandler returns the caller's transaction history.
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	account, err := h.ledger.GetAccountByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	transactions, err := h.ledger.History(r.Context(), account.ID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// DepositHandler records a top-up request pending operator approval.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req domain.DepositRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.ledger.GetAccountByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	tx, err := h.ledger.Deposit(r.Context(), account.ID, req.Amount, req.Source)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

// TransferHandler moves funds from the caller's wallet to another account.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req domain.TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.ledger.GetAccountByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	tx, err := h.ledger.Transfer(r.Context(), account.ID, req.ReceiverAccountID, req.Amount, req.Description)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
