/**
 * @description
 * OrderEngine drives the order lifecycle: checkout, the forward status chain
 * PENDING -> PAID -> PROCESSING -> SHIPPED -> COMPLETED, and cancellation.
 * Every balance change is delegated to the Ledger; this engine decides whether
 * a transition is allowed and who may request it.
 *
 * Checkout debits the buyer immediately, so orders are created directly in
 * PAID; no caller can advance an order into PENDING or PAID.
 */

package app

import (
	"context"
	"errors"
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
	ErrEmptyCart          = errors.New("cart must contain at least one item")
	ErrMixedPartnerCart   = errors.New("cart items must belong to a single seller")
	ErrOwnListing         = errors.New("cannot buy or bid on your own listing")
	ErrOfferNotApplicable = errors.New("offer cannot be applied to this checkout")
)

var orderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "core_order_transitions_total",
	Help: "Order status transitions by target status",
}, []string{"status"})

// OrderEngine owns order state. It never mutates account balances directly.
type OrderEngine struct {
	repo     store.Repository
	ledger   *Ledger
	producer rabbitmq.Publisher
}

// NewOrderEngine creates the order service.
func NewOrderEngine(repo store.Repository, ledger *Ledger, producer rabbitmq.Publisher) *OrderEngine {
	return &OrderEngine{repo: repo, ledger: ledger, producer: producer}
}

func (e *OrderEngine) publishStatus(ctx context.Context, order *domain.Order) {
	if e.producer == nil {
		return
	}
	event := domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		PartnerID: order.PartnerID,
		Status:    order.Status,
		Timestamp: time.Now().UTC(),
	}
	if err := e.producer.Publish(ctx, EventExchange, "order.status.changed", event); err != nil {
		log.Printf("level=warn component=orders msg=\"event publish failed\" order_id=%s err=%v", order.ID, err)
	}
}

// Checkout creates an order from a cart and pays for it in one commit. All
// items must belong to the same seller so that shipment responsibility is
// unambiguous. When an accepted offer is referenced, its agreed amount
// replaces the listing price on the matching line.
func (e *OrderEngine) Checkout(ctx context.Context, buyerID uuid.UUID, req domain.CheckoutRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	buyerAccount, err := e.repo.GetAccountByUserID(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	listings := make(map[uuid.UUID]*domain.Listing, len(req.Items))
	var partnerID uuid.UUID
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, ErrInvalidAmount
		}
		listing, err := e.repo.GetListing(ctx, line.ListingID)
		if err != nil {
			return nil, err
		}
		if !listing.Active {
			return nil, store.ErrListingUnavailable
		}
		if listing.PartnerID == buyerID {
			return nil, ErrOwnListing
		}
		if i == 0 {
			partnerID = listing.PartnerID
		} else if listing.PartnerID != partnerID {
			return nil, ErrMixedPartnerCart
		}
		listings[line.ListingID] = listing
	}

	// An accepted offer overrides the unit price of its listing's cart line.
	// The agreed amount covers a single unit and the offer is spent by the
	// checkout commit, so it cannot discount a second order.
	var offer *domain.Offer
	if req.OfferID != nil {
		offer, err = e.repo.GetOffer(ctx, *req.OfferID)
		if err != nil {
			return nil, err
		}
		if offer.Status != domain.OfferAccepted || offer.BuyerID != buyerID || offer.OrderID != nil {
			return nil, ErrOfferNotApplicable
		}
		if _, ok := listings[offer.ListingID]; !ok {
			return nil, ErrOfferNotApplicable
		}
		for _, line := range req.Items {
			if line.ListingID == offer.ListingID && line.Quantity != 1 {
				return nil, ErrOfferNotApplicable
			}
		}
	}

	order := &domain.Order{
		ID:              uuid.New(),
		BuyerID:         buyerID,
		PartnerID:       partnerID,
		Status:          domain.OrderPaid,
		ShippingName:    req.Shipping.Name,
		ShippingAddress: req.Shipping.Address,
		ShippingPhone:   req.Shipping.Phone,
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		unitPrice := listings[line.ListingID].Price
		if offer != nil && offer.ListingID == line.ListingID {
			unitPrice = offer.AgreedAmount()
		}
		item := domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ListingID: line.ListingID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			Status:    domain.ItemPaid,
		}
		total += item.PaidPrice()
		items = append(items, item)
	}
	order.TotalAmount = total

	payment, err := e.ledger.PayForOrder(ctx, buyerAccount.ID, order, items, req.OfferID)
	if err != nil {
		if errors.Is(err, store.ErrOfferConsumed) {
			// Lost the race for the offer to a concurrent checkout.
			return nil, ErrOfferNotApplicable
		}
		return nil, err
	}
	order.PaymentTxID = &payment.ID
	order.Items = items

	orderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()
	log.Printf("level=info component=orders msg=\"order created\" order_id=%s buyer_id=%s total=%d", order.ID, buyerID, total)
	e.publishStatus(ctx, order)
	return order, nil
}

// Get returns an order to one of its two parties.
func (e *OrderEngine) Get(ctx context.Context, actorID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.PartnerID != actorID {
		return nil, ErrForbidden
	}
	return order, nil
}

// AdvanceStatus moves an order one step forward along the chain. The seller
// drives PAID -> PROCESSING -> SHIPPED; the buyer confirms SHIPPED ->
// COMPLETED. Skipping steps or moving backwards is rejected.
func (e *OrderEngine) AdvanceStatus(ctx context.Context, actorID, orderID uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() || to == domain.OrderCancelled {
		return nil, ErrInvalidTransition
	}

	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch to {
	case domain.OrderProcessing, domain.OrderShipped:
		if order.PartnerID != actorID {
			return nil, ErrForbidden
		}
	case domain.OrderCompleted:
		if order.BuyerID != actorID {
			return nil, ErrForbidden
		}
	default:
		// PENDING and PAID have no advancing actor; orders enter them only
		// through checkout itself.
		return nil, ErrInvalidTransition
	}

	if !order.Status.CanAdvance(to) {
		return nil, ErrInvalidTransition
	}

	applied, err := e.repo.AdvanceOrderStatus(ctx, orderID, order.Status, to)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race. If someone else already applied the same transition
		// treat the call as a no-op, otherwise report the conflict.
		current, err := e.repo.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == to {
			return current, nil
		}
		return nil, ErrInvalidTransition
	}

	order.Status = to
	for i := range order.Items {
		if !order.Items[i].Refunded {
			order.Items[i].Status = domain.ItemStatusFor(to)
		}
	}
	orderTransitionsTotal.WithLabelValues(string(to)).Inc()
	log.Printf("level=info component=orders msg=\"order advanced\" order_id=%s status=%s", orderID, to)
	e.publishStatus(ctx, order)
	return order, nil
}

// Cancel aborts an order still in PENDING or PAID. Either party may cancel.
// A PAID order refunds the full total to the buyer in the same commit that
// flips the status; stock returns to the listings either way.
func (e *OrderEngine) Cancel(ctx context.Context, actorID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.PartnerID != actorID {
		return nil, ErrForbidden
	}
	if !order.Status.Cancellable() {
		return nil, ErrInvalidTransition
	}

	buyerAccount, err := e.repo.GetAccountByUserID(ctx, order.BuyerID)
	if err != nil {
		return nil, err
	}

	applied, err := e.ledger.RefundCancelledOrder(ctx, order, buyerAccount.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		current, err := e.repo.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.OrderCancelled {
			return current, nil
		}
		return nil, ErrInvalidTransition
	}

	order.Status = domain.OrderCancelled
	for i := range order.Items {
		order.Items[i].Status = domain.ItemCancelled
	}
	orderTransitionsTotal.WithLabelValues(string(domain.OrderCancelled)).Inc()
	log.Printf("level=info component=orders msg=\"order cancelled\" order_id=%s actor_id=%s", orderID, actorID)
	e.publishStatus(ctx, order)
	return order, nil
}
