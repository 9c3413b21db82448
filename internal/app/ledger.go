/**
 * @description
 * The Ledger is the subsystem of record for wallet balances. Every balance
 * mutation in the system goes through one of its public operations; the order
 * and return engines never touch account rows directly. Business-rule
 * rejections surface as sentinel errors and are never retried here; the
 * caller decides what to do with them.
 *
 * @dependencies
 * - internal/domain, internal/store: domain models and data access.
 * - pkg/rabbitmq: event publishing after commits.
 * - github.com/prometheus/client_golang: operation counters.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/souqly/marketplace-core/internal/domain"
	"github.com/souqly/marketplace-core/internal/store"
	"github.com/souqly/marketplace-core/pkg/rabbitmq"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidTarget       = errors.New("sender and receiver must differ")
	ErrAlreadyResolved     = errors.New("transaction already resolved")
	ErrInvalidTransition   = errors.New("status transition not permitted")
	ErrForbidden           = errors.New("actor not permitted to perform this action")
	ErrOfferResolved       = errors.New("offer already resolved")
	ErrItemNotEligible     = errors.New("order item not eligible for return")
	ErrInvalidRefundAmount = errors.New("refund amount invalid")
	ErrReturnNotApproved   = errors.New("return request not approved")
)

var ledgerOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "core_ledger_operations_total",
	Help: "Ledger operations by type and outcome",
}, []string{"op", "outcome"})

// EventExchange is the topic exchange all core domain events are published to.
const EventExchange = "marketplace.events"

// Ledger owns account balances and the transaction log.
type Ledger struct {
	repo     store.Repository
	producer rabbitmq.Publisher
}

// NewLedger creates the ledger service.
func NewLedger(repo store.Repository, producer rabbitmq.Publisher) *Ledger {
	return &Ledger{repo: repo, producer: producer}
}

func (l *Ledger) publish(ctx context.Context, routingKey string, body any) {
	if l.producer == nil {
		return
	}
	if err := l.producer.Publish(ctx, EventExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=ledger msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// CreateAccount provisions a wallet for a newly registered user.
func (l *Ledger) CreateAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return l.repo.CreateAccount(ctx, userID)
}

// GetAccountByUser returns the caller's wallet.
func (l *Ledger) GetAccountByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return l.repo.GetAccountByUserID(ctx, userID)
}

// History returns the account's transaction records, newest first.
func (l *Ledger) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return l.repo.ListTransactionsByAccount(ctx, accountID, limit, offset)
}

// PendingDeposits returns the operator approval queue.
func (l *Ledger) PendingDeposits(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return l.repo.ListPendingDeposits(ctx, limit)
}

// Deposit records a top-up request. The balance does not change until an
// operator approves the deposit.
func (l *Ledger) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, source string) (*domain.Transaction, error) {
	if amount <= 0 {
		ledgerOpsTotal.WithLabelValues("deposit", "rejected").Inc()
		return nil, ErrInvalidAmount
	}
	if _, err := l.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:                uuid.New(),
		Type:              domain.TransactionDeposit,
		Amount:            amount,
		ReceiverAccountID: &accountID,
		Status:            domain.TransactionPending,
		Description:       fmt.Sprintf("deposit via %s", source),
	}
	if err := l.repo.CreateDeposit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}
	ledgerOpsTotal.WithLabelValues("deposit", "pending").Inc()
	return tx, nil
}

// ApproveDeposit credits the target account exactly once. Re-approving an
// already-approved deposit returns the existing record without a second
// credit; approving a rejected deposit fails with ErrAlreadyResolved.
func (l *Ledger) ApproveDeposit(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return l.resolveDeposit(ctx, transactionID, true)
}

// RejectDeposit closes a pending deposit without a balance change, with the
// same idempotency guarantee as ApproveDeposit.
func (l *Ledger) RejectDeposit(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return l.resolveDeposit(ctx, transactionID, false)
}

func (l *Ledger) resolveDeposit(ctx context.Context, transactionID uuid.UUID, approve bool) (*domain.Transaction, error) {
	wanted := domain.TransactionRejected
	op := "reject_deposit"
	if approve {
		wanted = domain.TransactionCompleted
		op = "approve_deposit"
	}

	tx, applied, err := l.repo.ResolveDeposit(ctx, transactionID, approve)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Already terminal. Same decision is an idempotent no-op; the
		// opposite decision is a state conflict.
		if tx.Status == wanted {
			return tx, nil
		}
		return nil, ErrAlreadyResolved
	}

	ledgerOpsTotal.WithLabelValues(op, "completed").Inc()
	if approve {
		l.publish(ctx, "wallet.deposit.approved", domain.DepositApprovedEvent{
			TransactionID: tx.ID,
			AccountID:     *tx.ReceiverAccountID,
			Amount:        tx.Amount,
			Timestamp:     time.Now().UTC(),
		})
	}
	return tx, nil
}

// Transfer moves funds between two wallets. Both sides move or neither does;
// the funds check happens under the row lock, so two concurrent transfers can
// never jointly overdraw the sender.
func (l *Ledger) Transfer(ctx context.Context, senderAccountID, receiverAccountID uuid.UUID, amount int64, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		ledgerOpsTotal.WithLabelValues("transfer", "rejected").Inc()
		return nil, ErrInvalidAmount
	}
	if senderAccountID == receiverAccountID {
		ledgerOpsTotal.WithLabelValues("transfer", "rejected").Inc()
		return nil, ErrInvalidTarget
	}

	tx, err := l.repo.ExecuteTransfer(ctx, senderAccountID, receiverAccountID, amount, description)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			ledgerOpsTotal.WithLabelValues("transfer", "insufficient_funds").Inc()
		}
		return nil, err
	}

	ledgerOpsTotal.WithLabelValues("transfer", "completed").Inc()
	l.publish(ctx, "wallet.transfer.completed", domain.TransferCompletedEvent{
		TransactionID:     tx.ID,
		SenderAccountID:   senderAccountID,
		ReceiverAccountID: receiverAccountID,
		Amount:            amount,
		Timestamp:         time.Now().UTC(),
	})
	return tx, nil
}

// Credit adds funds to a wallet. Used by the return engine for refunds and by
// the order engine for cancellations; always succeeds if the account exists.
func (l *Ledger) Credit(ctx context.Context, accountID uuid.UUID, amount int64, txType domain.TransactionType, reason string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx, err := l.repo.CreditAccount(ctx, accountID, amount, txType, reason)
	if err != nil {
		return nil, err
	}
	ledgerOpsTotal.WithLabelValues("credit", "completed").Inc()
	return tx, nil
}

// Debit removes funds from a wallet under the no-negative-balance rule.
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount int64, txType domain.TransactionType, reason string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx, err := l.repo.DebitAccount(ctx, accountID, amount, txType, reason)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			ledgerOpsTotal.WithLabelValues("debit", "insufficient_funds").Inc()
		}
		return nil, err
	}
	ledgerOpsTotal.WithLabelValues("debit", "completed").Inc()
	return tx, nil
}

// PayForOrder is the checkout commit: it debits the buyer and creates the
// order with all its items in the same database transaction. A referenced
// offer is consumed in that same commit. The order engine calls this instead
// of mutating account rows itself.
func (l *Ledger) PayForOrder(ctx context.Context, buyerAccountID uuid.UUID, order *domain.Order, items []domain.OrderItem, offerID *uuid.UUID) (*domain.Transaction, error) {
	payment := &domain.Transaction{
		ID:              uuid.New(),
		Type:            domain.TransactionPayout,
		Amount:          order.TotalAmount,
		SenderAccountID: &buyerAccountID,
		Status:          domain.TransactionCompleted,
		Description:     fmt.Sprintf("payment for order %s", order.ID),
	}
	if err := l.repo.CreateOrderWithDebit(ctx, order, items, payment, offerID); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			ledgerOpsTotal.WithLabelValues("checkout_debit", "insufficient_funds").Inc()
		}
		return nil, err
	}
	ledgerOpsTotal.WithLabelValues("checkout_debit", "completed").Inc()
	return payment, nil
}

// RefundCancelledOrder cancels the order and, when it was already paid,
// credits the buyer in the same commit so the debit/refund pair nets to zero.
func (l *Ledger) RefundCancelledOrder(ctx context.Context, order *domain.Order, buyerAccountID uuid.UUID) (bool, error) {
	var refund *domain.Transaction
	if order.Status == domain.OrderPaid {
		refund = &domain.Transaction{
			ID:                uuid.New(),
			Type:              domain.TransactionRefund,
			Amount:            order.TotalAmount,
			ReceiverAccountID: &buyerAccountID,
			Status:            domain.TransactionCompleted,
			Description:       fmt.Sprintf("refund for cancelled order %s", order.ID),
		}
	}
	applied, err := l.repo.CancelOrderWithRefund(ctx, order.ID, refund)
	if err != nil {
		return false, err
	}
	if applied && refund != nil {
		ledgerOpsTotal.WithLabelValues("cancel_refund", "completed").Inc()
	}
	return applied, nil
}

// RefundReturnedItem credits the buyer for an approved return and marks the
// item refunded, flipping the request to REFUNDED, all in one commit.
// applied=false means the request had already left APPROVED.
func (l *Ledger) RefundReturnedItem(ctx context.Context, req *domain.ReturnRequest, item *domain.OrderItem, buyerAccountID uuid.UUID) (*domain.Transaction, bool, error) {
	if req.RefundAmount == nil || *req.RefundAmount <= 0 {
		return nil, false, ErrInvalidRefundAmount
	}
	refund := &domain.Transaction{
		ID:                uuid.New(),
		Type:              domain.TransactionRefund,
		Amount:            *req.RefundAmount,
		ReceiverAccountID: &buyerAccountID,
		Status:            domain.TransactionCompleted,
		Description:       fmt.Sprintf("refund for return %s", req.ID),
	}
	applied, err := l.repo.CompleteRefund(ctx, req.ID, item.ID, buyerAccountID, refund)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, false, nil
	}
	ledgerOpsTotal.WithLabelValues("return_refund", "completed").Inc()
	return refund, true, nil
}
