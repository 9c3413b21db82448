/**
 * @description
 * OfferEngine runs price negotiations on listings. One record per negotiation:
 * PENDING means the listing owner acts next, COUNTERED means the buyer acts
 * next, ACCEPTED and REJECTED are terminal and sticky. An accepted offer is
 * consumed by checkout, where its agreed amount overrides the listing price.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/domain"
	"github.com/souqly/marketplace-core/internal/store"
	"github.com/souqly/marketplace-core/pkg/rabbitmq"
)

var ErrCounterAmountRequired = errors.New("counter decision requires a positive counter amount")

// OfferEngine owns negotiation state.
type OfferEngine struct {
	repo     store.Repository
	producer rabbitmq.Publisher
}

// NewOfferEngine creates the offer service.
func NewOfferEngine(repo store.Repository, producer rabbitmq.Publisher) *OfferEngine {
	return &OfferEngine{repo: repo, producer: producer}
}

func (e *OfferEngine) publishResolved(ctx context.Context, offer *domain.Offer) {
	if e.producer == nil {
		return
	}
	event := domain.OfferResolvedEvent{
		OfferID:   offer.ID,
		ListingID: offer.ListingID,
		BuyerID:   offer.BuyerID,
		Status:    offer.Status,
		Timestamp: time.Now().UTC(),
	}
	if offer.Status == domain.OfferAccepted {
		event.AgreedAmount = offer.AgreedAmount()
	}
	if err := e.producer.Publish(ctx, EventExchange, "offer.resolved", event); err != nil {
		log.Printf("level=warn component=offers msg=\"event publish failed\" offer_id=%s err=%v", offer.ID, err)
	}
}

// Create opens a negotiation on a listing. A buyer may hold at most one open
// offer per listing; the insert fails with ErrOfferAlreadyActive otherwise.
func (e *OfferEngine) Create(ctx context.Context, buyerID uuid.UUID, req domain.CreateOfferRequest) (*domain.Offer, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	listing, err := e.repo.GetListing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.Active {
		return nil, store.ErrListingUnavailable
	}
	if listing.PartnerID == buyerID {
		return nil, ErrOwnListing
	}

	offer := &domain.Offer{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyerID,
		PartnerID: listing.PartnerID,
		Amount:    req.Amount,
		Status:    domain.OfferPending,
	}
	if err := e.repo.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}
	log.Printf("level=info component=offers msg=\"offer created\" offer_id=%s listing_id=%s amount=%d", offer.ID, listing.ID, req.Amount)
	return offer, nil
}

// Get returns an offer to one of its two parties.
func (e *OfferEngine) Get(ctx context.Context, actorID, offerID uuid.UUID) (*domain.Offer, error) {
	offer, err := e.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.BuyerID != actorID && offer.PartnerID != actorID {
		return nil, ErrForbidden
	}
	return offer, nil
}

// Respond applies a decision to an open offer. Whose turn it is follows from
// the status: the listing owner acts on PENDING, the buyer acts on COUNTERED.
// ACCEPT and REJECT resolve the negotiation; COUNTER hands the turn to the
// other side with a new proposed amount. Decisions on a resolved offer fail
// with ErrOfferResolved regardless of which decision was taken.
func (e *OfferEngine) Respond(ctx context.Context, actorID, offerID uuid.UUID, req domain.RespondToOfferRequest) (*domain.Offer, error) {
	if !req.Decision.Valid() {
		return nil, ErrInvalidTransition
	}

	offer, err := e.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status.Terminal() {
		return nil, ErrOfferResolved
	}

	switch offer.Status {
	case domain.OfferPending:
		if offer.PartnerID != actorID {
			return nil, ErrForbidden
		}
	case domain.OfferCountered:
		if offer.BuyerID != actorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrOfferResolved
	}

	var to domain.OfferStatus
	var counterAmount *int64
	switch req.Decision {
	case domain.DecisionAccept:
		to = domain.OfferAccepted
	case domain.DecisionReject:
		to = domain.OfferRejected
	case domain.DecisionCounter:
		if req.CounterAmount == nil || *req.CounterAmount <= 0 {
			return nil, ErrCounterAmountRequired
		}
		counterAmount = req.CounterAmount
		// The owner's counter waits on the buyer; the buyer's counter hands
		// the turn back to the owner.
		if offer.Status == domain.OfferPending {
			to = domain.OfferCountered
		} else {
			to = domain.OfferPending
		}
	}

	applied, err := e.repo.UpdateOfferStatus(ctx, offerID, offer.Status, to, counterAmount)
	if err != nil {
		return nil, err
	}
	if !applied {
		// The offer moved underneath us; a terminal state is sticky.
		current, err := e.repo.GetOffer(ctx, offerID)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, ErrOfferResolved
		}
		return nil, ErrForbidden
	}

	offer.Status = to
	if counterAmount != nil {
		offer.CounterAmount = counterAmount
	}
	log.Printf("level=info component=offers msg=\"offer decision applied\" offer_id=%s decision=%s status=%s", offerID, req.Decision, to)
	if to.Terminal() {
		e.publishResolved(ctx, offer)
	}
	return offer, nil
}

// ExpireBefore rejects open negotiations untouched since the cutoff. Driven
// by the scheduler; does nothing unless expiry is enabled in config.
func (e *OfferEngine) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := e.repo.ExpireOffersBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("level=info component=offers msg=\"expired stale offers\" count=%d cutoff=%s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
