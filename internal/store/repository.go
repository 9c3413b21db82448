/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access the core engines need. The interface decouples business logic from
 * PostgreSQL so the engines can be tested against in-memory stubs.
 *
 * Ownership boundaries are reflected in the grouping below: only ledger
 * methods touch account balances, only order methods touch order rows, and
 * the composite operations (checkout, cancel-with-refund, refund completion)
 * are ledger-owned because they mutate balances.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: entity identifiers.
 * - internal/domain: domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Accounts
	CreateAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)

	// Ledger. Every method that moves money runs as one short database
	// transaction with row locks on the affected accounts.
	CreateDeposit(ctx context.Context, tx *domain.Transaction) error
	// ResolveDeposit flips a PENDING deposit to COMPLETED (crediting the
	// receiver) or REJECTED. applied=false means the row was already
	// terminal; the existing record is returned unchanged.
	ResolveDeposit(ctx context.Context, transactionID uuid.UUID, approve bool) (tx *domain.Transaction, applied bool, err error)
	ExecuteTransfer(ctx context.Context, senderAccountID, receiverAccountID uuid.UUID, amount int64, description string) (*domain.Transaction, error)
	CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64, txType domain.TransactionType, description string) (*domain.Transaction, error)
	DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64, txType domain.TransactionType, description string) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	ListPendingDeposits(ctx context.Context, limit int) ([]domain.Transaction, error)

	// Composite ledger operations spanning two aggregates in one commit.
	// CreateOrderWithDebit locks the buyer account and every listing row,
	// verifies funds and stock, debits, decrements stock and inserts the
	// order, its items and the payment transaction. When offerID is set the
	// ACCEPTED offer is bound to the order in the same commit; a second
	// checkout referencing it fails with ErrOfferConsumed. Nothing persists
	// on error.
	CreateOrderWithDebit(ctx context.Context, order *domain.Order, items []domain.OrderItem, payment *domain.Transaction, offerID *uuid.UUID) error
	// CancelOrderWithRefund cancels an order still in a cancellable status,
	// restores listing stock and, when the order was PAID, credits the buyer
	// in the same commit. applied=false means the order had already left the
	// cancellable window.
	CancelOrderWithRefund(ctx context.Context, orderID uuid.UUID, refund *domain.Transaction) (applied bool, err error)
	// CompleteRefund flips an APPROVED return request to REFUNDED, credits the
	// buyer and marks the order item refunded in one commit. applied=false
	// means the request was no longer APPROVED (typically already REFUNDED).
	CompleteRefund(ctx context.Context, requestID uuid.UUID, orderItemID uuid.UUID, buyerAccountID uuid.UUID, refund *domain.Transaction) (applied bool, err error)

	// Listings (stock reservation happens inside CreateOrderWithDebit).
	GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)

	// Orders
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderItem(ctx context.Context, itemID uuid.UUID) (*domain.OrderItem, error)
	// AdvanceOrderStatus is a compare-and-swap on the status column so a
	// concurrent transition can never be observed as a backward move. Item
	// statuses are mirrored in the same commit.
	AdvanceOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) (applied bool, err error)

	// Offers
	CreateOffer(ctx context.Context, offer *domain.Offer) error
	GetOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error)
	// UpdateOfferStatus is a compare-and-swap guarded on the current status;
	// counterAmount is written only when non-nil.
	UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, from, to domain.OfferStatus, counterAmount *int64) (applied bool, err error)
	ExpireOffersBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Returns
	CreateReturnRequest(ctx context.Context, req *domain.ReturnRequest) error
	GetReturnRequest(ctx context.Context, requestID uuid.UUID) (*domain.ReturnRequest, error)
	// ResolveReturnRequest is a compare-and-swap from PENDING to the decision.
	ResolveReturnRequest(ctx context.Context, requestID uuid.UUID, to domain.ReturnStatus, refundAmount *int64, comment *string) (applied bool, err error)
	ListApprovedReturnRequests(ctx context.Context, limit int) ([]domain.ReturnRequest, error)
}
