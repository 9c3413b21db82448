/**
 * @description
 * ReturnEngine handles post-delivery returns. A buyer opens a request against
 * one delivered order item; an operator approves (setting the refund amount,
 * capped at the line's paid price) or rejects it. Issuing the refund credits
 * the buyer exactly once; the refund sweep retries approved requests that the
 * synchronous path failed to pay out.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/domain"
	"github.com/souqly/marketplace-core/internal/store"
	"github.com/souqly/marketplace-core/pkg/rabbitmq"
)

// ReturnEngine owns return-request state.
type ReturnEngine struct {
	repo     store.Repository
	ledger   *Ledger
	producer rabbitmq.Publisher
}

// NewReturnEngine creates the returns service.
func NewReturnEngine(repo store.Repository, ledger *Ledger, producer rabbitmq.Publisher) *ReturnEngine {
	return &ReturnEngine{repo: repo, ledger: ledger, producer: producer}
}

// Request opens a return on a delivered order item. Only the buyer of the
// order may open one, the order must be COMPLETED, and the item must not have
// been refunded already. One open request per item is enforced by the store.
func (e *ReturnEngine) Request(ctx context.Context, buyerID uuid.UUID, req domain.RequestReturnRequest) (*domain.ReturnRequest, error) {
	item, err := e.repo.GetOrderItem(ctx, req.OrderItemID)
	if err != nil {
		return nil, err
	}
	order, err := e.repo.GetOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, ErrForbidden
	}
	if order.Status != domain.OrderCompleted || item.Refunded {
		return nil, ErrItemNotEligible
	}

	request := &domain.ReturnRequest{
		ID:          uuid.New(),
		OrderItemID: item.ID,
		BuyerID:     buyerID,
		Reason:      req.Reason,
		Details:     req.Details,
		Status:      domain.ReturnPending,
	}
	if err := e.repo.CreateReturnRequest(ctx, request); err != nil {
		return nil, err
	}
	log.Printf("level=info component=returns msg=\"return requested\" request_id=%s order_item_id=%s", request.ID, item.ID)
	return request, nil
}

// Get returns a request to its buyer or to the seller of the item's order.
func (e *ReturnEngine) Get(ctx context.Context, actorID, requestID uuid.UUID) (*domain.ReturnRequest, error) {
	request, err := e.repo.GetReturnRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.BuyerID == actorID {
		return request, nil
	}
	item, err := e.repo.GetOrderItem(ctx, request.OrderItemID)
	if err != nil {
		return nil, err
	}
	order, err := e.repo.GetOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID != actorID {
		return nil, ErrForbidden
	}
	return request, nil
}

// Resolve applies the operator decision to a pending request. Approval fixes
// the refund amount, which must be positive and no more than what the buyer
// paid for the line. Requests that already left PENDING cannot be re-decided.
func (e *ReturnEngine) Resolve(ctx context.Context, requestID uuid.UUID, req domain.ResolveReturnRequest) (*domain.ReturnRequest, error) {
	if !req.Decision.Valid() {
		return nil, ErrInvalidTransition
	}

	request, err := e.repo.GetReturnRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.ReturnPending {
		return nil, ErrAlreadyResolved
	}

	to := domain.ReturnRejected
	var refundAmount *int64
	if req.Decision == domain.ReturnDecisionApprove {
		item, err := e.repo.GetOrderItem(ctx, request.OrderItemID)
		if err != nil {
			return nil, err
		}
		if req.RefundAmount == nil || *req.RefundAmount <= 0 || *req.RefundAmount > item.PaidPrice() {
			return nil, ErrInvalidRefundAmount
		}
		to = domain.ReturnApproved
		refundAmount = req.RefundAmount
	}

	applied, err := e.repo.ResolveReturnRequest(ctx, requestID, to, refundAmount, req.Comment)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadyResolved
	}

	request.Status = to
	request.RefundAmount = refundAmount
	request.AdminComment = req.Comment
	log.Printf("level=info component=returns msg=\"return resolved\" request_id=%s decision=%s", requestID, req.Decision)
	return request, nil
}

// IssueRefund pays out an approved return. Calling it on a request that is
// already REFUNDED returns the existing record without a second credit; any
// other non-approved status is an error.
func (e *ReturnEngine) IssueRefund(ctx context.Context, requestID uuid.UUID) (*domain.ReturnRequest, error) {
	request, err := e.repo.GetReturnRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch request.Status {
	case domain.ReturnRefunded:
		return request, nil
	case domain.ReturnApproved:
	default:
		return nil, ErrReturnNotApproved
	}

	item, err := e.repo.GetOrderItem(ctx, request.OrderItemID)
	if err != nil {
		return nil, err
	}
	buyerAccount, err := e.repo.GetAccountByUserID(ctx, request.BuyerID)
	if err != nil {
		return nil, err
	}

	refund, applied, err := e.ledger.RefundReturnedItem(ctx, request, item, buyerAccount.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent caller won the guarded update; its refund stands.
		return e.repo.GetReturnRequest(ctx, requestID)
	}

	request.Status = domain.ReturnRefunded
	request.RefundTxID = &refund.ID
	log.Printf("level=info component=returns msg=\"refund issued\" request_id=%s amount=%d tx_id=%s", requestID, refund.Amount, refund.ID)
	if e.producer != nil {
		event := domain.RefundIssuedEvent{
			ReturnRequestID: request.ID,
			OrderItemID:     item.ID,
			BuyerID:         request.BuyerID,
			Amount:          refund.Amount,
			Timestamp:       time.Now().UTC(),
		}
		if err := e.producer.Publish(ctx, EventExchange, "return.refund.issued", event); err != nil {
			log.Printf("level=warn component=returns msg=\"event publish failed\" request_id=%s err=%v", requestID, err)
		}
	}
	return request, nil
}

// SweepApproved pays out approved requests whose synchronous refund never
// landed, oldest first. Returns how many refunds were issued.
func (e *ReturnEngine) SweepApproved(ctx context.Context, batchSize int) (int, error) {
	pending, err := e.repo.ListApprovedReturnRequests(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	issued := 0
	for i := range pending {
		if _, err := e.IssueRefund(ctx, pending[i].ID); err != nil {
			log.Printf("level=error component=returns msg=\"sweep refund failed\" request_id=%s err=%v", pending[i].ID, err)
			continue
		}
		issued++
	}
	return issued, nil
}
