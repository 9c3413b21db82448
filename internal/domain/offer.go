/**
 * @description
 * This file defines the price-negotiation (offer) domain model. An offer is a
 * single negotiation thread between a buyer and the owner of a listing; a new
 * round is a new counter value on the same record, not a new entity.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the negotiation state. PENDING means the listing owner acts
// next; COUNTERED means the buyer acts next.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferCountered OfferStatus = "COUNTERED"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
)

// Terminal reports whether the negotiation has resolved.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferRejected
}

// OfferDecision is an action taken on an open offer.
type OfferDecision string

const (
	DecisionAccept  OfferDecision = "ACCEPT"
	DecisionReject  OfferDecision = "REJECT"
	DecisionCounter OfferDecision = "COUNTER"
)

// Valid reports whether the value is a member of the closed enumeration.
func (d OfferDecision) Valid() bool {
	switch d {
	case DecisionAccept, DecisionReject, DecisionCounter:
		return true
	}
	return false
}

// Offer is one negotiation attempt on a listing. Amount is the buyer's
// original proposal and never changes; CounterAmount carries the most recent
// counter from either side and is updated each round.
type Offer struct {
	ID            uuid.UUID   `json:"id"`
	ListingID     uuid.UUID   `json:"listing_id"`
	BuyerID       uuid.UUID   `json:"buyer_id"`
	PartnerID     uuid.UUID   `json:"partner_id"`
	Amount        int64       `json:"amount"` // minor units
	CounterAmount *int64      `json:"counter_amount,omitempty"`
	Status        OfferStatus `json:"status"`
	OrderID       *uuid.UUID  `json:"order_id,omitempty"` // set when the offer paid for an order
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// AgreedAmount is the price the parties settled on: the latest counter if any
// rounds happened, otherwise the original proposal. Only meaningful once the
// offer is ACCEPTED.
func (o Offer) AgreedAmount() int64 {
	if o.CounterAmount != nil {
		return *o.CounterAmount
	}
	return o.Amount
}

// CreateOfferRequest is the DTO for opening a negotiation.
type CreateOfferRequest struct {
	ListingID uuid.UUID `json:"listing_id"`
	Amount    int64     `json:"amount"` // minor units
}

// RespondToOfferRequest is the DTO for acting on an open offer.
type RespondToOfferRequest struct {
	Decision      OfferDecision `json:"decision"`
	CounterAmount *int64        `json:"counter_amount,omitempty"`
}
