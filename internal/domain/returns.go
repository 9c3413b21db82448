/**
 * @description
 * This file defines the post-delivery return/refund domain model. A return
 * request targets one order item, is resolved by an operator or the listing
 * owner, and triggers exactly one ledger credit when the refund is issued.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReturnStatus is the lifecycle state of a return request. REFUNDED is
// terminal and is reached only through an APPROVED request.
type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "PENDING"
	ReturnApproved ReturnStatus = "APPROVED"
	ReturnRejected ReturnStatus = "REJECTED"
	ReturnRefunded ReturnStatus = "REFUNDED"
)

// Terminal reports whether no further transition is permitted.
func (s ReturnStatus) Terminal() bool {
	return s == ReturnRejected || s == ReturnRefunded
}

// ReturnDecision is the operator action on a pending return request.
type ReturnDecision string

const (
	ReturnDecisionApprove ReturnDecision = "APPROVE"
	ReturnDecisionReject  ReturnDecision = "REJECT"
)

// Valid reports whether the value is a member of the closed enumeration.
func (d ReturnDecision) Valid() bool {
	return d == ReturnDecisionApprove || d == ReturnDecisionReject
}

// ReturnRequest is one return attempt against a delivered order item.
// RefundAmount is set when the request is approved and must not exceed the
// item's paid price.
type ReturnRequest struct {
	ID           uuid.UUID    `json:"id"`
	OrderItemID  uuid.UUID    `json:"order_item_id"`
	BuyerID      uuid.UUID    `json:"buyer_id"`
	Reason       string       `json:"reason"`
	Details      string       `json:"details"`
	Status       ReturnStatus `json:"status"`
	RefundAmount *int64       `json:"refund_amount,omitempty"` // minor units
	AdminComment *string      `json:"admin_comment,omitempty"`
	RefundTxID   *uuid.UUID   `json:"refund_transaction_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RequestReturnRequest is the DTO for opening a return.
type RequestReturnRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	Reason      string    `json:"reason"`
	Details     string    `json:"details"`
}

// ResolveReturnRequest is the DTO for the operator decision.
type ResolveReturnRequest struct {
	Decision     ReturnDecision `json:"decision"`
	RefundAmount *int64         `json:"refund_amount,omitempty"` // required on APPROVE
	Comment      *string        `json:"comment,omitempty"`
}
