/**
 * @description
 * This file defines the wallet-side domain models: accounts and the immutable
 * transaction records that describe every balance-changing event. These structs
 * map directly to the `accounts` and `transactions` tables.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit, which avoids
 *   floating-point inaccuracies with financial data.
 * - Transactions are append-only. The only field that ever changes on a
 *   transaction row is its status, and only once: PENDING -> COMPLETED or
 *   PENDING -> REJECTED.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a balance-changing event.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionTransfer TransactionType = "TRANSFER"
	TransactionPayout   TransactionType = "PAYOUT"
	TransactionRefund   TransactionType = "REFUND"
)

// TransactionStatus is the lifecycle state of a transaction record.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionRejected  TransactionStatus = "REJECTED"
)

// Terminal reports whether no further status change is permitted.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionRejected
}

// Account is a user's wallet. Balance is mutated only by ledger operations and
// is never allowed to go negative.
type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // minor currency units
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is the immutable record of one balance-changing event.
// SenderAccountID is nil for deposits; ReceiverAccountID is nil for payouts.
// A COMPLETED transaction's amount has been reflected in the relevant account
// balance(s) exactly once; a PENDING deposit has not been reflected yet.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	Type              TransactionType   `json:"type"`
	Amount            int64             `json:"amount"` // always positive
	SenderAccountID   *uuid.UUID        `json:"sender_account_id,omitempty"`
	ReceiverAccountID *uuid.UUID        `json:"receiver_account_id,omitempty"`
	Status            TransactionStatus `json:"status"`
	Description       string            `json:"description"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// DepositRequest is the DTO for a top-up request. The deposit stays PENDING
// until an operator approves it; the balance is untouched until then.
type DepositRequest struct {
	Amount int64  `json:"amount"` // minor units
	Source string `json:"source"` // e.g. "bank_transfer", "card"
}

// TransferRequest is the DTO for a peer-to-peer wallet transfer.
type TransferRequest struct {
	ReceiverAccountID uuid.UUID `json:"receiver_account_id"`
	Amount            int64     `json:"amount"` // minor units
	Description       string    `json:"description"`
}
