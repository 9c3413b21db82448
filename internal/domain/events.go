/**
 * @description
 * Event payloads published to RabbitMQ after core state transitions commit.
 * Downstream services (notifications, analytics, partner dashboards) consume
 * these; the core never reads them back.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositApprovedEvent is published when a pending deposit is credited.
type DepositApprovedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Amount        int64     `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransferCompletedEvent is published after a wallet-to-wallet transfer commits.
type TransferCompletedEvent struct {
	TransactionID     uuid.UUID `json:"transaction_id"`
	SenderAccountID   uuid.UUID `json:"sender_account_id"`
	ReceiverAccountID uuid.UUID `json:"receiver_account_id"`
	Amount            int64     `json:"amount"`
	Timestamp         time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent is published on order creation and every advance
// or cancellation.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID   `json:"order_id"`
	BuyerID   uuid.UUID   `json:"buyer_id"`
	PartnerID uuid.UUID   `json:"partner_id"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// OfferResolvedEvent is published when a negotiation reaches a terminal state.
type OfferResolvedEvent struct {
	OfferID      uuid.UUID   `json:"offer_id"`
	ListingID    uuid.UUID   `json:"listing_id"`
	BuyerID      uuid.UUID   `json:"buyer_id"`
	Status       OfferStatus `json:"status"`
	AgreedAmount int64       `json:"agreed_amount,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// RefundIssuedEvent is published after a return refund credits the buyer.
type RefundIssuedEvent struct {
	ReturnRequestID uuid.UUID `json:"return_request_id"`
	OrderItemID     uuid.UUID `json:"order_item_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	Amount          int64     `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
}
