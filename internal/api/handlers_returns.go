/**
 * @description
 * HTTP handlers for the buyer-facing return endpoints. Resolution and refund
 * issuing live on the admin surface (handlers_admin.go).
 */

package api

import (
	"net/http"

	"github.com/souqly/marketplace-core/internal/domain"
)

// RequestReturnHandler opens a return on a delivered order item.
func (h *Handlers) RequestReturnHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req domain.RequestReturnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	request, err := h.returns.Request(r.Context(), userID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// GetReturnHandler returns a return request to its buyer or the seller.
func (h *Handlers) GetReturnHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, r, "requestID")
	if !ok {
		return
	}

	request, err := h.returns.Get(r.Context(), userID, requestID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}
