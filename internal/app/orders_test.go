package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/domain"
	"github.com/souqly/marketplace-core/internal/store"
)

type checkoutRepoStub struct {
	store.Repository

	account  *domain.Account
	listings map[uuid.UUID]*domain.Listing
	offer    *domain.Offer

	createErr     error
	createdOrder  *domain.Order
	createdItems  []domain.OrderItem
	payment       *domain.Transaction
	consumedOffer *uuid.UUID
}

func (s *checkoutRepoStub) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if s.account == nil || s.account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *checkoutRepoStub) GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	listing, ok := s.listings[listingID]
	if !ok {
		return nil, store.ErrListingNotFound
	}
	return listing, nil
}

func (s *checkoutRepoStub) GetOffer(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error) {
	if s.offer == nil || s.offer.ID != offerID {
		return nil, store.ErrOfferNotFound
	}
	return s.offer, nil
}

func (s *checkoutRepoStub) CreateOrderWithDebit(ctx context.Context, order *domain.Order, items []domain.OrderItem, payment *domain.Transaction, offerID *uuid.UUID) error {
	if s.createErr != nil {
		return s.createErr
	}
	if offerID != nil {
		if s.offer == nil || s.offer.ID != *offerID || s.offer.OrderID != nil {
			return store.ErrOfferConsumed
		}
		s.offer.OrderID = &order.ID
		s.consumedOffer = offerID
	}
	s.createdOrder = order
	s.createdItems = items
	s.payment = payment
	return nil
}

func newCheckoutFixture() (*checkoutRepoStub, uuid.UUID, *domain.Listing) {
	buyerID := uuid.New()
	listing := &domain.Listing{
		ID:        uuid.New(),
		PartnerID: uuid.New(),
		Title:     "vintage camera",
		Price:     120_000,
		Stock:     3,
		Active:    true,
	}
	repo := &checkoutRepoStub{
		account:  &domain.Account{ID: uuid.New(), UserID: buyerID, Balance: 1_000_000},
		listings: map[uuid.UUID]*domain.Listing{listing.ID: listing},
	}
	return repo, buyerID, listing
}

func TestCheckout_RejectsEmptyCart(t *testing.T) {
	repo, buyerID, _ := newCheckoutFixture()
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	if _, err := engine.Checkout(context.Background(), buyerID, domain.CheckoutRequest{}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_RejectsMixedPartnerCart(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	other := &domain.Listing{ID: uuid.New(), PartnerID: uuid.New(), Price: 50_000, Stock: 1, Active: true}
	repo.listings[other.ID] = other
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{Items: []domain.CartItem{
		{ListingID: listing.ID, Quantity: 1},
		{ListingID: other.ID, Quantity: 1},
	}}
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, ErrMixedPartnerCart) {
		t.Fatalf("expected ErrMixedPartnerCart, got %v", err)
	}
}

func TestCheckout_RejectsOwnListing(t *testing.T) {
	repo, _, listing := newCheckoutFixture()
	repo.account.UserID = listing.PartnerID
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{Items: []domain.CartItem{{ListingID: listing.ID, Quantity: 1}}}
	if _, err := engine.Checkout(context.Background(), listing.PartnerID, req); !errors.Is(err, ErrOwnListing) {
		t.Fatalf("expected ErrOwnListing, got %v", err)
	}
}

func TestCheckout_RejectsInactiveListing(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	listing.Active = false
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{Items: []domain.CartItem{{ListingID: listing.ID, Quantity: 1}}}
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, store.ErrListingUnavailable) {
		t.Fatalf("expected ErrListingUnavailable, got %v", err)
	}
}

func TestCheckout_CreatesPaidOrderAndPaysFromWallet(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	producer := &capturingProducer{}
	engine := NewOrderEngine(repo, NewLedger(repo, producer), producer)

	req := domain.CheckoutRequest{
		Items:    []domain.CartItem{{ListingID: listing.ID, Quantity: 2}},
		Shipping: domain.ShippingInfo{Name: "A. Buyer", Address: "12 Harbor Rd", Phone: "555-0101"},
	}
	order, err := engine.Checkout(context.Background(), buyerID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderPaid {
		t.Fatalf("expected PAID, got %s", order.Status)
	}
	if order.TotalAmount != 240_000 {
		t.Fatalf("expected total 240000, got %d", order.TotalAmount)
	}
	if repo.payment == nil || repo.payment.Amount != 240_000 || *repo.payment.SenderAccountID != repo.account.ID {
		t.Fatal("payment debit was not issued against the buyer wallet")
	}
	if order.PaymentTxID == nil || *order.PaymentTxID != repo.payment.ID {
		t.Fatal("order is not linked to its payment transaction")
	}
	if len(order.Items) != 1 || order.Items[0].UnitPrice != listing.Price {
		t.Fatal("order items do not snapshot the listing price")
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != "order.status.changed" {
		t.Fatalf("expected one order event, got %v", producer.routingKeys)
	}
}

func TestCheckout_AcceptedOfferOverridesListingPrice(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	counter := int64(90_000)
	repo.offer = &domain.Offer{
		ID:            uuid.New(),
		ListingID:     listing.ID,
		BuyerID:       buyerID,
		PartnerID:     listing.PartnerID,
		Amount:        80_000,
		CounterAmount: &counter,
		Status:        domain.OfferAccepted,
	}
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{
		Items:   []domain.CartItem{{ListingID: listing.ID, Quantity: 1}},
		OfferID: &repo.offer.ID,
	}
	order, err := engine.Checkout(context.Background(), buyerID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.TotalAmount != counter {
		t.Fatalf("expected agreed amount %d charged, got %d", counter, order.TotalAmount)
	}
	if repo.consumedOffer == nil || *repo.consumedOffer != repo.offer.ID {
		t.Fatal("checkout must consume the offer in the same commit")
	}
}

func TestCheckout_OfferIsSpentByFirstUse(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	counter := int64(90_000)
	repo.offer = &domain.Offer{
		ID:            uuid.New(),
		ListingID:     listing.ID,
		BuyerID:       buyerID,
		PartnerID:     listing.PartnerID,
		Amount:        80_000,
		CounterAmount: &counter,
		Status:        domain.OfferAccepted,
	}
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{
		Items:   []domain.CartItem{{ListingID: listing.ID, Quantity: 1}},
		OfferID: &repo.offer.ID,
	}
	first, err := engine.Checkout(context.Background(), buyerID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalAmount != counter {
		t.Fatalf("expected discounted total %d, got %d", counter, first.TotalAmount)
	}

	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, ErrOfferNotApplicable) {
		t.Fatalf("reused offer: expected ErrOfferNotApplicable, got %v", err)
	}
}

func TestCheckout_OfferLineLimitedToSingleUnit(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	repo.offer = &domain.Offer{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		PartnerID: listing.PartnerID,
		Amount:    90_000,
		Status:    domain.OfferAccepted,
	}
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{
		Items:   []domain.CartItem{{ListingID: listing.ID, Quantity: 2}},
		OfferID: &repo.offer.ID,
	}
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, ErrOfferNotApplicable) {
		t.Fatalf("expected ErrOfferNotApplicable, got %v", err)
	}
}

func TestCheckout_LostOfferRaceReportsNotApplicable(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	repo.offer = &domain.Offer{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		PartnerID: listing.PartnerID,
		Amount:    90_000,
		Status:    domain.OfferAccepted,
	}
	repo.createErr = store.ErrOfferConsumed
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{
		Items:   []domain.CartItem{{ListingID: listing.ID, Quantity: 1}},
		OfferID: &repo.offer.ID,
	}
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, ErrOfferNotApplicable) {
		t.Fatalf("expected ErrOfferNotApplicable, got %v", err)
	}
}

func TestCheckout_RejectsUnacceptedOrForeignOffer(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	repo.offer = &domain.Offer{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		PartnerID: listing.PartnerID,
		Amount:    80_000,
		Status:    domain.OfferPending,
	}
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)
	req := domain.CheckoutRequest{
		Items:   []domain.CartItem{{ListingID: listing.ID, Quantity: 1}},
		OfferID: &repo.offer.ID,
	}
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, ErrOfferNotApplicable) {
		t.Fatalf("pending offer: expected ErrOfferNotApplicable, got %v", err)
	}

	repo.offer.Status = domain.OfferAccepted
	repo.offer.BuyerID = uuid.New()
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, ErrOfferNotApplicable) {
		t.Fatalf("foreign offer: expected ErrOfferNotApplicable, got %v", err)
	}
}

func TestCheckout_PropagatesInsufficientFunds(t *testing.T) {
	repo, buyerID, listing := newCheckoutFixture()
	repo.createErr = store.ErrInsufficientFunds
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	req := domain.CheckoutRequest{Items: []domain.CartItem{{ListingID: listing.ID, Quantity: 1}}}
	if _, err := engine.Checkout(context.Background(), buyerID, req); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

type orderStatusRepoStub struct {
	store.Repository

	order        *domain.Order
	account      *domain.Account
	advanceOK    bool
	advanceCalls int
	lastFrom     domain.OrderStatus
	lastTo       domain.OrderStatus

	cancelOK     bool
	cancelCalled bool
	cancelRefund *domain.Transaction
}

func (s *orderStatusRepoStub) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, store.ErrOrderNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *orderStatusRepoStub) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if s.account == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *orderStatusRepoStub) AdvanceOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	s.advanceCalls++
	s.lastFrom, s.lastTo = from, to
	if s.advanceOK {
		s.order.Status = to
	}
	return s.advanceOK, nil
}

func (s *orderStatusRepoStub) CancelOrderWithRefund(ctx context.Context, orderID uuid.UUID, refund *domain.Transaction) (bool, error) {
	s.cancelCalled = true
	s.cancelRefund = refund
	if s.cancelOK {
		s.order.Status = domain.OrderCancelled
	}
	return s.cancelOK, nil
}

func newOrderStatusFixture(status domain.OrderStatus) (*orderStatusRepoStub, *domain.Order) {
	order := &domain.Order{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		PartnerID:   uuid.New(),
		Status:      status,
		TotalAmount: 150_000,
	}
	repo := &orderStatusRepoStub{
		order:     order,
		account:   &domain.Account{ID: uuid.New(), UserID: order.BuyerID},
		advanceOK: true,
		cancelOK:  true,
	}
	return repo, order
}

func TestAdvanceStatus_SellerMovesPaidToProcessing(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPaid)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	updated, err := engine.AdvanceStatus(context.Background(), order.PartnerID, order.ID, domain.OrderProcessing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.OrderProcessing {
		t.Fatalf("expected PROCESSING, got %s", updated.Status)
	}
	if repo.lastFrom != domain.OrderPaid || repo.lastTo != domain.OrderProcessing {
		t.Fatal("compare-and-swap arguments are wrong")
	}
}

func TestAdvanceStatus_BuyerCannotShip(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderProcessing)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	if _, err := engine.AdvanceStatus(context.Background(), order.BuyerID, order.ID, domain.OrderShipped); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAdvanceStatus_OnlyBuyerCompletes(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderShipped)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	if _, err := engine.AdvanceStatus(context.Background(), order.PartnerID, order.ID, domain.OrderCompleted); !errors.Is(err, ErrForbidden) {
		t.Fatalf("seller completing: expected ErrForbidden, got %v", err)
	}

	updated, err := engine.AdvanceStatus(context.Background(), order.BuyerID, order.ID, domain.OrderCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.OrderCompleted {
		t.Fatalf("expected COMPLETED, got %s", updated.Status)
	}
}

func TestAdvanceStatus_NoActorMayEnterPendingOrPaid(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPending)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	for _, actor := range []uuid.UUID{order.BuyerID, order.PartnerID} {
		if _, err := engine.AdvanceStatus(context.Background(), actor, order.ID, domain.OrderPaid); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("to PAID: expected ErrInvalidTransition, got %v", err)
		}
		if _, err := engine.AdvanceStatus(context.Background(), actor, order.ID, domain.OrderPending); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("to PENDING: expected ErrInvalidTransition, got %v", err)
		}
	}
	if repo.advanceCalls != 0 {
		t.Fatal("actorless targets must not reach the store")
	}
}

func TestAdvanceStatus_RejectsSkippedAndBackwardSteps(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPaid)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	if _, err := engine.AdvanceStatus(context.Background(), order.PartnerID, order.ID, domain.OrderShipped); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip: expected ErrInvalidTransition, got %v", err)
	}

	repo.order.Status = domain.OrderShipped
	if _, err := engine.AdvanceStatus(context.Background(), order.PartnerID, order.ID, domain.OrderProcessing); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward: expected ErrInvalidTransition, got %v", err)
	}
	if repo.advanceCalls != 0 {
		t.Fatal("invalid transitions must not reach the store")
	}
}

func TestAdvanceStatus_LostRaceToSameTargetIsNoOp(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPaid)
	engine := NewOrderEngine(&racingAdvanceRepo{inner: repo, target: domain.OrderProcessing}, NewLedger(repo, nil), nil)

	result, err := engine.AdvanceStatus(context.Background(), order.PartnerID, order.ID, domain.OrderProcessing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.OrderProcessing {
		t.Fatalf("expected PROCESSING after lost race, got %s", result.Status)
	}
}

// racingAdvanceRepo fails the compare-and-swap and flips the order to the
// target status, imitating a concurrent winner.
type racingAdvanceRepo struct {
	store.Repository
	inner  *orderStatusRepoStub
	target domain.OrderStatus
}

func (r *racingAdvanceRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return r.inner.GetOrder(ctx, orderID)
}

func (r *racingAdvanceRepo) AdvanceOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	r.inner.order.Status = r.target
	return false, nil
}

func TestCancel_StrangerForbidden(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPaid)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	if _, err := engine.Cancel(context.Background(), uuid.New(), order.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancel_RejectedOnceProcessing(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderProcessing)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	if _, err := engine.Cancel(context.Background(), order.BuyerID, order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.cancelCalled {
		t.Fatal("store must not be reached for a non-cancellable order")
	}
}

func TestCancel_PaidOrderRefundsFullTotal(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPaid)
	producer := &capturingProducer{}
	engine := NewOrderEngine(repo, NewLedger(repo, producer), producer)

	cancelled, err := engine.Cancel(context.Background(), order.BuyerID, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if repo.cancelRefund == nil {
		t.Fatal("a PAID cancellation must carry a refund")
	}
	if repo.cancelRefund.Amount != order.TotalAmount || *repo.cancelRefund.ReceiverAccountID != repo.account.ID {
		t.Fatal("refund must return the full total to the buyer wallet")
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != "order.status.changed" {
		t.Fatalf("expected one order event, got %v", producer.routingKeys)
	}
}

func TestCancel_PendingOrderHasNoRefund(t *testing.T) {
	repo, order := newOrderStatusFixture(domain.OrderPending)
	engine := NewOrderEngine(repo, NewLedger(repo, nil), nil)

	cancelled, err := engine.Cancel(context.Background(), order.PartnerID, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if repo.cancelRefund != nil {
		t.Fatal("an unpaid order must not trigger a refund")
	}
}
