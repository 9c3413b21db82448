/**
 * @description
 * HTTP handlers for the price-negotiation endpoints.
 */

package api

import (
	"net/http"

	"github.com/souqly/marketplace-core/internal/domain"
)

// CreateOfferHandler opens a negotiation on a listing.
func (h *Handlers) CreateOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req domain.CreateOfferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	offer, err := h.offers.Create(r.Context(), userID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

// GetOfferHandler returns an offer to one of its parties.
func (h *Handlers) GetOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	offerID, ok := pathUUID(w, r, "offerID")
	if !ok {
		return
	}

	offer, err := h.offers.Get(r.Context(), userID, offerID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// RespondToOfferHandler applies an accept/reject/counter decision.
func (h *Handlers) RespondToOfferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	offerID, ok := pathUUID(w, r, "offerID")
	if !ok {
		return
	}
	var req domain.RespondToOfferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	offer, err := h.offers.Respond(r.Context(), userID, offerID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}
