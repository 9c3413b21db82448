/**
 * @description
 * HTTP handlers for the internal/admin surface: account provisioning, the
 * deposit approval queue, and return resolution. All routes here sit behind
 * the shared-key InternalAuthMiddleware; they act on behalf of the platform
 * operator, not a marketplace user.
 */

package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/domain"
)

type createAccountRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// CreateAccountHandler provisions a wallet for a newly registered user.
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// ListPendingDepositsHandler returns the operator approval queue.
func (h *Handlers) ListPendingDepositsHandler(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.ledger.PendingDeposits(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, err)
		return
	}
	if deposits == nil {
		deposits = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deposits": deposits})
}

// ApproveDepositHandler credits a pending deposit exactly once.
func (h *Handlers) ApproveDepositHandler(w http.ResponseWriter, r *http.Request) {
	txID, ok := pathUUID(w, r, "txID")
	if !ok {
		return
	}
	tx, err := h.ledger.ApproveDeposit(r.Context(), txID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// RejectDepositHandler closes a pending deposit without a credit.
func (h *Handlers) RejectDepositHandler(w http.ResponseWriter, r *http.Request) {
	txID, ok := pathUUID(w, r, "txID")
	if !ok {
		return
	}
	tx, err := h.ledger.RejectDeposit(r.Context(), txID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ResolveReturnHandler applies the operator decision to a pending return.
func (h *Handlers) ResolveReturnHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathUUID(w, r, "requestID")
	if !ok {
		return
	}
	var req domain.ResolveReturnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	request, err := h.returns.Resolve(r.Context(), requestID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// IssueRefundHandler pays out an approved return.
func (h *Handlers) IssueRefundHandler(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathUUID(w, r, "requestID")
	if !ok {
		return
	}
	request, err := h.returns.IssueRefund(r.Context(), requestID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}
