/**
 * @description
 * PostgreSQL implementation of the offer queries. The one-active-offer-per
 * (buyer, listing) rule is enforced by a partial unique index on offers
 * (buyer_id, listing_id) WHERE status IN ('PENDING', 'COUNTERED'); the insert
 * maps its unique violation to ErrOfferAlreadyActive.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/souqly/marketplace-core/internal/domain"
)

const offerColumns = `id, listing_id, buyer_id, partner_id, amount, counter_amount, status, order_id, created_at, updated_at`

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.ID, &o.ListingID, &o.BuyerID, &o.PartnerID, &o.Amount, &o.CounterAmount,
		&o.Status, &o.OrderID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOffer inserts a new PENDING negotiation.
func (r *PostgresRepository) CreateOffer(ctx context.Context, offer *domain.Offer) error {
	query := `
		INSERT INTO offers (id, listing_id, buyer_id, partner_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		offer.ID, offer.ListingID, offer.BuyerID, offer.PartnerID, offer.Amount, offer.Status,
	).Scan(&offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOfferAlreadyActive
		}
		return err
	}
	return nil
}

// GetOffer retrieves a single offer.
func (r *PostgresRepository) GetOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error) {
	offer, err := scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, offerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return offer, nil
}

// UpdateOfferStatus moves an offer between negotiation states. The WHERE
// guard on the current status makes terminal states sticky: once resolved, no
// concurrent respond call can apply.
func (r *PostgresRepository) UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, from, to domain.OfferStatus, counterAmount *int64) (bool, error) {
	var tagQuery string
	var args []any
	if counterAmount != nil {
		tagQuery = `UPDATE offers SET status = $1, counter_amount = $2, updated_at = NOW() WHERE id = $3 AND status = $4`
		args = []any{to, *counterAmount, offerID, from}
	} else {
		tagQuery = `UPDATE offers SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
		args = []any{to, offerID, from}
	}

	tag, err := r.db.Exec(ctx, tagQuery, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireOffersBefore rejects open negotiations older than the cutoff. Only
// used when offer expiry is explicitly enabled.
func (r *PostgresRepository) ExpireOffersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE offers SET status = 'REJECTED', updated_at = NOW()
		 WHERE status IN ('PENDING', 'COUNTERED') AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
