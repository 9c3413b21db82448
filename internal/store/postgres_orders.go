/**
 * @description
 * PostgreSQL implementation of the order and listing queries. Order creation
 * and cancellation live in postgres_ledger.go because they move money; this
 * file covers reads and the compare-and-swap status advance.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/souqly/marketplace-core/internal/domain"
)

// GetListing retrieves the core's view of a listing.
func (r *PostgresRepository) GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	query := `SELECT id, partner_id, title, price, stock, active, created_at, updated_at FROM listings WHERE id = $1`
	err := r.db.QueryRow(ctx, query, listingID).Scan(
		&l.ID, &l.PartnerID, &l.Title, &l.Price, &l.Stock, &l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &l, nil
}

const orderItemColumns = `id, order_id, listing_id, quantity, unit_price, status, refunded, refunded_amount, created_at, updated_at`

func scanOrderItem(row pgx.Row) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ListingID, &item.Quantity, &item.UnitPrice,
		&item.Status, &item.Refunded, &item.RefundedAmount, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetOrder retrieves an order with all its items.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	query := `
		SELECT id, buyer_id, partner_id, status, total_amount,
		       COALESCE(shipping_name, ''), COALESCE(shipping_address, ''), COALESCE(shipping_phone, ''),
		       payment_tx_id, created_at, updated_at
		FROM orders WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.BuyerID, &o.PartnerID, &o.Status, &o.TotalAmount,
		&o.ShippingName, &o.ShippingAddress, &o.ShippingPhone,
		&o.PaymentTxID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, *item)
	}
	return &o, rows.Err()
}

// GetOrderItem retrieves a single order line.
func (r *PostgresRepository) GetOrderItem(ctx context.Context, itemID uuid.UUID) (*domain.OrderItem, error) {
	item, err := scanOrderItem(r.db.QueryRow(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = $1`, itemID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// AdvanceOrderStatus moves an order from `from` to `to` and mirrors the item
// statuses in the same commit. The WHERE guard on the current status means a
// lost race applies nothing rather than overwriting a newer state.
func (r *PostgresRepository) AdvanceOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer dbtx.Rollback(ctx)

	tag, err := dbtx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, orderID, from,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	// Refunded items keep their markers; everything else follows the order.
	if _, err := dbtx.Exec(ctx,
		`UPDATE order_items SET status = $1, updated_at = NOW() WHERE order_id = $2 AND refunded = FALSE`,
		domain.ItemStatusFor(to), orderID,
	); err != nil {
		return false, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
