/**
 * @description
 * PostgreSQL implementation of the return-request queries. Refund completion
 * lives in postgres_ledger.go because it credits a wallet. A partial unique
 * index on return_requests (order_item_id) WHERE status IN ('PENDING',
 * 'APPROVED') keeps at most one open request per item.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/souqly/marketplace-core/internal/domain"
)

const returnColumns = `id, order_item_id, buyer_id, reason, COALESCE(details, ''), status, refund_amount, admin_comment, refund_tx_id, created_at, updated_at`

func scanReturnRequest(row pgx.Row) (*domain.ReturnRequest, error) {
	var req domain.ReturnRequest
	err := row.Scan(
		&req.ID, &req.OrderItemID, &req.BuyerID, &req.Reason, &req.Details,
		&req.Status, &req.RefundAmount, &req.AdminComment, &req.RefundTxID,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateReturnRequest inserts a new PENDING return.
func (r *PostgresRepository) CreateReturnRequest(ctx context.Context, req *domain.ReturnRequest) error {
	query := `
		INSERT INTO return_requests (id, order_item_id, buyer_id, reason, details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		req.ID, req.OrderItemID, req.BuyerID, req.Reason, req.Details, req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReturnAlreadyOpen
		}
		return err
	}
	return nil
}

// GetReturnRequest retrieves a single return request.
func (r *PostgresRepository) GetReturnRequest(ctx context.Context, requestID uuid.UUID) (*domain.ReturnRequest, error) {
	req, err := scanReturnRequest(r.db.QueryRow(ctx,
		`SELECT `+returnColumns+` FROM return_requests WHERE id = $1`, requestID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrReturnNotFound
		}
		return nil, err
	}
	return req, nil
}

// ResolveReturnRequest applies the operator decision to a PENDING request.
func (r *PostgresRepository) ResolveReturnRequest(ctx context.Context, requestID uuid.UUID, to domain.ReturnStatus, refundAmount *int64, comment *string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE return_requests
		 SET status = $1, refund_amount = $2, admin_comment = $3, updated_at = NOW()
		 WHERE id = $4 AND status = 'PENDING'`,
		to, refundAmount, comment, requestID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListApprovedReturnRequests returns approved-but-unrefunded requests, oldest
// first, for the refund sweep.
func (r *PostgresRepository) ListApprovedReturnRequests(ctx context.Context, limit int) ([]domain.ReturnRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+returnColumns+` FROM return_requests WHERE status = 'APPROVED' ORDER BY updated_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.ReturnRequest
	for rows.Next() {
		req, err := scanReturnRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}
