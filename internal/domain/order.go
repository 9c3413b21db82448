/**
 * @description
 * This file defines the order aggregate: the Order header, its immutable line
 * items, and the closed status enumerations with their transition tables.
 * Statuses are typed constants rather than free-form strings so that an
 * unrecognized status can never silently fall through a switch.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPaid       OrderStatus = "PAID"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// orderSuccessor is the forward transition table. Every order moves through
// PENDING -> PAID -> PROCESSING -> SHIPPED -> COMPLETED; CANCELLED is an
// escape hatch from PENDING or PAID only.
var orderSuccessor = map[OrderStatus]OrderStatus{
	OrderPending:    OrderPaid,
	OrderPaid:       OrderProcessing,
	OrderProcessing: OrderShipped,
	OrderShipped:    OrderCompleted,
}

// CanAdvance reports whether `to` is the direct successor of `from`.
func (from OrderStatus) CanAdvance(to OrderStatus) bool {
	next, ok := orderSuccessor[from]
	return ok && next == to
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderPaid
}

// Terminal reports whether no further order-level transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Valid reports whether the value is a member of the closed enumeration.
// Used when parsing statuses off the wire.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// ItemStatus mirrors the order status per line item, with a DELIVERED marker
// layered on top so individual items can diverge (partial shipment).
type ItemStatus string

const (
	ItemPaid       ItemStatus = "PAID"
	ItemProcessing ItemStatus = "PROCESSING"
	ItemShipped    ItemStatus = "SHIPPED"
	ItemDelivered  ItemStatus = "DELIVERED"
	ItemCancelled  ItemStatus = "CANCELLED"
)

// itemStatusFor maps an order-level transition onto the item mirror.
func ItemStatusFor(s OrderStatus) ItemStatus {
	switch s {
	case OrderProcessing:
		return ItemProcessing
	case OrderShipped:
		return ItemShipped
	case OrderCompleted:
		return ItemDelivered
	case OrderCancelled:
		return ItemCancelled
	}
	return ItemPaid
}

// Order is one checkout. Items are created atomically with the order and are
// never added or removed afterwards; only their status and refund fields change.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	BuyerID         uuid.UUID   `json:"buyer_id"`
	PartnerID       uuid.UUID   `json:"partner_id"`
	Status          OrderStatus `json:"status"`
	TotalAmount     int64       `json:"total_amount"` // minor units
	ShippingName    string      `json:"shipping_name"`
	ShippingAddress string      `json:"shipping_address"`
	ShippingPhone   string      `json:"shipping_phone"`
	PaymentTxID     *uuid.UUID  `json:"payment_transaction_id,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is one purchased line. UnitPrice is a snapshot taken at checkout
// and is immutable thereafter.
type OrderItem struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"order_id"`
	ListingID      uuid.UUID  `json:"listing_id"`
	Quantity       int        `json:"quantity"`
	UnitPrice      int64      `json:"unit_price"` // minor units, snapshot at purchase
	Status         ItemStatus `json:"status"`
	Refunded       bool       `json:"refunded"`
	RefundedAmount int64      `json:"refunded_amount"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PaidPrice is the total paid for this line (the refund ceiling).
func (i OrderItem) PaidPrice() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// CartItem is one line of a checkout request.
type CartItem struct {
	ListingID uuid.UUID `json:"listing_id"`
	Quantity  int       `json:"quantity"`
}

// ShippingInfo is the destination captured on the order at checkout.
type ShippingInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// CheckoutRequest is the DTO for creating an order. When OfferID is set, the
// referenced accepted offer's agreed amount overrides the listing price for
// the matching cart line.
type CheckoutRequest struct {
	Items    []CartItem   `json:"items"`
	Shipping ShippingInfo `json:"shipping"`
	OfferID  *uuid.UUID   `json:"offer_id,omitempty"`
}

// UpdateOrderStatusRequest is the DTO for advancing an order's status.
type UpdateOrderStatusRequest struct {
	NewStatus OrderStatus `json:"new_status"`
}
