package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/events"
)

// Offers creates, deduplicates, enumerates, and cancels trade offers.
type Offers struct {
	offers   repositories.OfferRepository
	listings repositories.ListingRepository
	cards    repositories.CardRepository
	bus      *events.Bus
}

func NewOffers(offers repositories.OfferRepository, listings repositories.ListingRepository, cards repositories.CardRepository, bus *events.Bus) *Offers {
	return &Offers{
		offers:   offers,
		listings: listings,
		cards:    cards,
		bus:      bus,
	}
}

// Create proposes trading the proposer's card for a listed card. The
// duplicate-pair check here is best-effort; the store's unique index on the
// unordered pair is the backstop when two identical proposals race.
func (o *Offers) Create(ctx context.Context, listingCardID, proposerCardID int64, proposerID string) (string, error) {
	listingCard, err := o.cards.GetByID(ctx, listingCardID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrInvalidCard
		}
		return "", fmt.Errorf("failed to load listed card: %w", err)
	}

	proposerCard, err := o.cards.GetByID(ctx, proposerCardID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrInvalidCard
		}
		return "", fmt.Errorf("failed to load proposer card: %w", err)
	}

	if proposerCard.OwnerID != proposerID {
		return "", ErrNotOwner
	}
	if listingCard.OwnerID == proposerID {
		return "", ErrInvalidCard
	}

	listing, err := o.listings.FindByCardID(ctx, listingCardID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrInvalidCard
		}
		return "", fmt.Errorf("failed to check listing: %w", err)
	}

	if _, err := o.offers.FindByPair(ctx, listingCardID, proposerCardID); err == nil {
		return "", ErrDuplicateOffer
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return "", fmt.Errorf("failed to check for duplicate offer: %w", err)
	}

	offer := &models.Offer{
		OfferID:        uuid.NewString(),
		ListingID:      listing.ID,
		ListingCardID:  listingCardID,
		ProposerCardID: proposerCardID,
		ProposerID:     proposerID,
	}

	if err := o.offers.Create(ctx, offer); err != nil {
		if errors.Is(err, repositories.ErrDuplicateOffer) {
			return "", ErrDuplicateOffer
		}
		return "", fmt.Errorf("failed to create offer: %w", err)
	}

	o.bus.Publish(events.Event{
		Kind:      events.OfferCreated,
		OfferID:   offer.OfferID,
		ListingID: listing.ListingID,
		UserID:    proposerID,
	})

	slog.Info("Offer created",
		slog.String("type", "trade"),
		slog.String("offer_id", offer.OfferID),
		slog.Int64("listing_card_id", listingCardID),
		slog.Int64("proposer_card_id", proposerCardID),
		slog.String("proposer_id", proposerID))

	return offer.OfferID, nil
}

// Cancel deletes the offer unconditionally. Used for withdrawal by the
// proposer and internally for decline.
func (o *Offers) Cancel(ctx context.Context, offerID string) error {
	if err := o.offers.Delete(ctx, offerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to cancel offer: %w", err)
	}

	o.bus.Publish(events.Event{
		Kind:    events.OfferResolved,
		OfferID: offerID,
		Outcome: events.OutcomeDeclined,
	})
	return nil
}

// IncomingForUser lists the open offers the user must respond to, i.e. offers
// targeting cards the user currently owns.
func (o *Offers) IncomingForUser(ctx context.Context, ownerID string) ([]*models.Offer, error) {
	offers, err := o.offers.GetIncoming(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming offers: %w", err)
	}
	return offers, nil
}
