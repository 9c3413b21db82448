/**
 * @description
 * PostgreSQL implementation of the ledger side of the repository: accounts,
 * transaction records, and the composite operations that pair a balance
 * mutation with order or return rows in a single commit.
 *
 * Concurrency rules applied throughout:
 * - every balance mutation locks the account row with SELECT ... FOR UPDATE
 *   inside a short transaction, so concurrent operations on the same account
 *   serialize and a read-compute-write lost update is impossible;
 * - transfers lock the two account rows in ascending id order to avoid
 *   deadlocks between opposing transfers;
 * - status flips (deposit resolution, refund completion) are guarded UPDATEs
 *   on the current status, so a concurrent duplicate resolves to a no-op
 *   instead of a double credit.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/souqly/marketplace-core/internal/domain"
)

const transactionColumns = `id, type, amount, sender_account_id, receiver_account_id, status, COALESCE(description, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.Type, &tx.Amount, &tx.SenderAccountID, &tx.ReceiverAccountID,
		&tx.Status, &tx.Description, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateAccount provisions a wallet with zero balance for a user. Exactly one
// account per user is enforced by a unique index on user_id.
func (r *PostgresRepository) CreateAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `
		INSERT INTO accounts (id, user_id, balance, version)
		VALUES ($1, $2, 0, 0)
		RETURNING id, user_id, balance, version, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, uuid.New(), userID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return &account, nil
}

// GetAccount retrieves an account by its id.
func (r *PostgresRepository) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, user_id, balance, version, created_at, updated_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByUserID retrieves the wallet owned by a user.
func (r *PostgresRepository) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, user_id, balance, version, created_at, updated_at FROM accounts WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateDeposit records a PENDING deposit. The balance is untouched until the
// deposit is approved.
func (r *PostgresRepository) CreateDeposit(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, amount, sender_account_id, receiver_account_id, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		tx.ID, tx.Type, tx.Amount, tx.SenderAccountID, tx.ReceiverAccountID, tx.Status, tx.Description,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
}

// ResolveDeposit approves or rejects a pending deposit. The status flip and
// the credit happen in the same transaction; the guarded UPDATE makes a
// second concurrent approval a no-op that returns the terminal record.
func (r *PostgresRepository) ResolveDeposit(ctx context.Context, transactionID uuid.UUID, approve bool) (*domain.Transaction, bool, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer dbtx.Rollback(ctx)

	newStatus := domain.TransactionRejected
	if approve {
		newStatus = domain.TransactionCompleted
	}

	flip := `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND type = 'DEPOSIT' AND status = 'PENDING'
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(dbtx.QueryRow(ctx, flip, newStatus, transactionID))
	if err != nil {
		if err != pgx.ErrNoRows {
			return nil, false, err
		}
		// Not flipped: either unknown or already terminal. Read the current
		// record so idempotent re-approval returns the terminal state.
		existing, getErr := r.GetTransaction(ctx, transactionID)
		if getErr != nil {
			return nil, false, getErr
		}
		if existing.Type != domain.TransactionDeposit {
			return nil, false, ErrTransactionNotFound
		}
		return existing, false, nil
	}

	if approve {
		tag, err := dbtx.Exec(ctx,
			`UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
			tx.Amount, tx.ReceiverAccountID,
		)
		if err != nil {
			return nil, false, err
		}
		if tag.RowsAffected() == 0 {
			return nil, false, ErrAccountNotFound
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return tx, true, nil
}

// ExecuteTransfer moves funds between two wallets atomically. The two account
// rows are locked in ascending id order; the funds check happens after the
// lock is held so it can never act on a stale read.
func (r *PostgresRepository) ExecuteTransfer(ctx context.Context, senderAccountID, receiverAccountID uuid.UUID, amount int64, description string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	first, second := senderAccountID, receiverAccountID
	if first.String() > second.String() {
		first, second = second, first
	}

	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{first, second} {
		var balance int64
		err := dbtx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrAccountNotFound
			}
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
		balances[id] = balance
	}

	if balances[senderAccountID] < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		amount, senderAccountID,
	); err != nil {
		return nil, err
	}
	if _, err := dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		amount, receiverAccountID,
	); err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO transactions (id, type, amount, sender_account_id, receiver_account_id, status, description)
		VALUES ($1, 'TRANSFER', $2, $3, $4, 'COMPLETED', $5)
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(dbtx.QueryRow(ctx, insert, uuid.New(), amount, senderAccountID, receiverAccountID, description))
	if err != nil {
		return nil, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// CreditAccount adds funds to a wallet and records a COMPLETED transaction.
func (r *PostgresRepository) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64, txType domain.TransactionType, description string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	tag, err := dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		amount, accountID,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	insert := `
		INSERT INTO transactions (id, type, amount, receiver_account_id, status, description)
		VALUES ($1, $2, $3, $4, 'COMPLETED', $5)
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(dbtx.QueryRow(ctx, insert, uuid.New(), txType, amount, accountID, description))
	if err != nil {
		return nil, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// DebitAccount removes funds from a wallet and records a COMPLETED
// transaction. The row lock plus in-transaction balance check guarantee the
// balance never goes negative.
func (r *PostgresRepository) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64, txType domain.TransactionType, description string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	var balance int64
	err = dbtx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		amount, accountID,
	); err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO transactions (id, type, amount, sender_account_id, status, description)
		VALUES ($1, $2, $3, $4, 'COMPLETED', $5)
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(dbtx.QueryRow(ctx, insert, uuid.New(), txType, amount, accountID, description))
	if err != nil {
		return nil, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransaction retrieves a single transaction record.
func (r *PostgresRepository) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListTransactionsByAccount returns the account's history, newest first.
func (r *PostgresRepository) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_account_id = $1 OR receiver_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// ListPendingDeposits returns the oldest unresolved deposits for the admin
// approval queue.
func (r *PostgresRepository) ListPendingDeposits(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE type = 'DEPOSIT' AND status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *tx)
	}
	return deposits, rows.Err()
}

// sortedByListingID returns a copy of the items ordered by listing id so
// every checkout acquires listing row locks in the same order.
func sortedByListingID(items []domain.OrderItem) []domain.OrderItem {
	sorted := make([]domain.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ListingID.String() < sorted[j].ListingID.String()
	})
	return sorted
}

// CreateOrderWithDebit performs the checkout commit: buyer debit, stock
// reservation, payment record, order rows and offer consumption all succeed
// or all roll back.
func (r *PostgresRepository) CreateOrderWithDebit(ctx context.Context, order *domain.Order, items []domain.OrderItem, payment *domain.Transaction, offerID *uuid.UUID) error {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	// Lock listings in ascending id order before the account row so two
	// checkouts over the same listings cannot deadlock.
	for _, item := range sortedByListingID(items) {
		var stock int
		var active bool
		err := dbtx.QueryRow(ctx,
			`SELECT stock, active FROM listings WHERE id = $1 FOR UPDATE`, item.ListingID,
		).Scan(&stock, &active)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrListingNotFound
			}
			return err
		}
		if !active {
			return ErrListingUnavailable
		}
		if stock < item.Quantity {
			return ErrInsufficientStock
		}
		if _, err := dbtx.Exec(ctx,
			`UPDATE listings SET stock = stock - $1, updated_at = NOW() WHERE id = $2`,
			item.Quantity, item.ListingID,
		); err != nil {
			return err
		}
	}

	var balance int64
	err = dbtx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, payment.SenderAccountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}
	if balance < payment.Amount {
		return ErrInsufficientFunds
	}
	if _, err := dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		payment.Amount, payment.SenderAccountID,
	); err != nil {
		return err
	}

	if err := dbtx.QueryRow(ctx,
		`INSERT INTO transactions (id, type, amount, sender_account_id, status, description)
		 VALUES ($1, $2, $3, $4, 'COMPLETED', $5)
		 RETURNING created_at, updated_at`,
		payment.ID, payment.Type, payment.Amount, payment.SenderAccountID, payment.Description,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return err
	}

	if err := dbtx.QueryRow(ctx,
		`INSERT INTO orders (id, buyer_id, partner_id, status, total_amount, shipping_name, shipping_address, shipping_phone, payment_tx_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		order.ID, order.BuyerID, order.PartnerID, order.Status, order.TotalAmount,
		order.ShippingName, order.ShippingAddress, order.ShippingPhone, payment.ID,
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	for i := range items {
		if err := dbtx.QueryRow(ctx,
			`INSERT INTO order_items (id, order_id, listing_id, quantity, unit_price, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at, updated_at`,
			items[i].ID, items[i].OrderID, items[i].ListingID, items[i].Quantity, items[i].UnitPrice, items[i].Status,
		).Scan(&items[i].CreatedAt, &items[i].UpdatedAt); err != nil {
			return err
		}
	}

	// Bind the offer to this order. The guard on order_id makes consumption
	// exactly-once: a concurrent checkout referencing the same offer finds it
	// taken and the whole commit rolls back.
	if offerID != nil {
		tag, err := dbtx.Exec(ctx,
			`UPDATE offers SET order_id = $1, updated_at = NOW()
			 WHERE id = $2 AND status = 'ACCEPTED' AND order_id IS NULL`,
			order.ID, *offerID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrOfferConsumed
		}
	}

	return dbtx.Commit(ctx)
}

// CancelOrderWithRefund cancels a PENDING/PAID order, restores stock and, when
// a refund transaction is supplied, credits the buyer in the same commit.
func (r *PostgresRepository) CancelOrderWithRefund(ctx context.Context, orderID uuid.UUID, refund *domain.Transaction) (bool, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer dbtx.Rollback(ctx)

	tag, err := dbtx.Exec(ctx,
		`UPDATE orders SET status = 'CANCELLED', updated_at = NOW() WHERE id = $1 AND status IN ('PENDING', 'PAID')`,
		orderID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := dbtx.Exec(ctx,
		`UPDATE order_items SET status = 'CANCELLED', updated_at = NOW() WHERE order_id = $1`, orderID,
	); err != nil {
		return false, err
	}

	// Return reserved stock to the listings. Lock the listing rows in
	// ascending id order first; the bare UPDATE ... FROM would otherwise
	// acquire them in arbitrary order against a concurrent checkout.
	if _, err := dbtx.Exec(ctx,
		`SELECT id FROM listings
		 WHERE id IN (SELECT listing_id FROM order_items WHERE order_id = $1)
		 ORDER BY id FOR UPDATE`,
		orderID,
	); err != nil {
		return false, err
	}
	if _, err := dbtx.Exec(ctx,
		`UPDATE listings SET stock = stock + oi.quantity, updated_at = NOW()
		 FROM order_items oi
		 WHERE oi.order_id = $1 AND listings.id = oi.listing_id`,
		orderID,
	); err != nil {
		return false, err
	}

	if refund != nil {
		tag, err := dbtx.Exec(ctx,
			`UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
			refund.Amount, refund.ReceiverAccountID,
		)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() == 0 {
			return false, ErrAccountNotFound
		}
		if err := dbtx.QueryRow(ctx,
			`INSERT INTO transactions (id, type, amount, receiver_account_id, status, description)
			 VALUES ($1, $2, $3, $4, 'COMPLETED', $5)
			 RETURNING created_at, updated_at`,
			refund.ID, refund.Type, refund.Amount, refund.ReceiverAccountID, refund.Description,
		).Scan(&refund.CreatedAt, &refund.UpdatedAt); err != nil {
			return false, err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// CompleteRefund flips an APPROVED return request to REFUNDED, credits the
// buyer and marks the order item refunded. The guarded first UPDATE makes the
// whole operation idempotent: a second call finds no APPROVED row and applies
// nothing.
func (r *PostgresRepository) CompleteRefund(ctx context.Context, requestID uuid.UUID, orderItemID uuid.UUID, buyerAccountID uuid.UUID, refund *domain.Transaction) (bool, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer dbtx.Rollback(ctx)

	tag, err := dbtx.Exec(ctx,
		`UPDATE return_requests SET status = 'REFUNDED', refund_tx_id = $1, updated_at = NOW()
		 WHERE id = $2 AND status = 'APPROVED'`,
		refund.ID, requestID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		refund.Amount, buyerAccountID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, ErrAccountNotFound
	}

	if err := dbtx.QueryRow(ctx,
		`INSERT INTO transactions (id, type, amount, receiver_account_id, status, description)
		 VALUES ($1, 'REFUND', $2, $3, 'COMPLETED', $4)
		 RETURNING created_at, updated_at`,
		refund.ID, refund.Amount, refund.ReceiverAccountID, refund.Description,
	).Scan(&refund.CreatedAt, &refund.UpdatedAt); err != nil {
		return false, err
	}

	tag, err = dbtx.Exec(ctx,
		`UPDATE order_items SET refunded = TRUE, refunded_amount = $1, updated_at = NOW() WHERE id = $2`,
		refund.Amount, orderItemID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, ErrOrderItemNotFound
	}

	if err := dbtx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
