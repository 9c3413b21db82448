/**
 * @description
 * Shared pieces of the PostgreSQL repository: the sentinel errors handlers
 * map to HTTP statuses, the repository struct, and scan helpers used across
 * the per-aggregate files.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 */

package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingUnavailable  = errors.New("listing unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderItemNotFound   = errors.New("order item not found")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrOfferAlreadyActive  = errors.New("buyer already has an active offer on this listing")
	ErrOfferConsumed       = errors.New("offer already consumed by an order")
	ErrReturnNotFound      = errors.New("return request not found")
	ErrReturnAlreadyOpen   = errors.New("order item already has an open return request")
	ErrAccountExists       = errors.New("account already exists for user")
)

// PostgresRepository is the concrete implementation of the Repository
// interface for PostgreSQL. The implementation is split across one file per
// aggregate (ledger, orders, offers, returns).
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
