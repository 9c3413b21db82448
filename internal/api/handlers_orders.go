/**
 * @description
 * HTTP handlers for the order endpoints: checkout, status advance, cancel,
 * and read.
 */

package api

import (
	"net/http"

	"github.com/souqly/marketplace-core/internal/domain"
)

// CheckoutHandler creates and pays for an order from the caller's cart.
func (h *Handlers) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req domain.CheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.Checkout(r.Context(), userID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrderHandler returns an order to its buyer or seller.
func (h *Handlers) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateOrderStatusHandler advances an order one step along its lifecycle.
func (h *Handlers) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}
	var req domain.UpdateOrderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.AdvanceStatus(r.Context(), userID, orderID, req.NewStatus)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CancelOrderHandler aborts a PENDING or PAID order, refunding when paid.
func (h *Handlers) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.Cancel(r.Context(), userID, orderID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
