package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/events"
)

// Service is the surface the presentation layer talks to. Caller identity is
// established upstream and passed in; the service never authenticates.
type Service struct {
	registry   *Registry
	offers     *Offers
	settlement *Settlement
	cards      repositories.CardRepository
	listings   repositories.ListingRepository
}

func NewService(
	cards repositories.CardRepository,
	listings repositories.ListingRepository,
	offers repositories.OfferRepository,
	bus *events.Bus,
) *Service {
	registry := NewRegistry(listings, cards, bus)
	return &Service{
		registry:   registry,
		offers:     NewOffers(offers, listings, cards, bus),
		settlement: NewSettlement(offers, registry, bus),
		cards:      cards,
		listings:   listings,
	}
}

// IncomingOffer pairs an open offer with live projections of both cards.
// Content is re-fetched from the authoritative records at use time, never
// cached on the offer.
type IncomingOffer struct {
	Offer         *models.Offer
	RequestedCard *models.Card
	OfferedCard   *models.Card
}

func (s *Service) PublishListing(ctx context.Context, cardID int64, ownerID string) (string, error) {
	return s.registry.Publish(ctx, cardID, ownerID)
}

func (s *Service) WithdrawListing(ctx context.Context, listingID string, ownerID string) error {
	return s.registry.Withdraw(ctx, listingID, ownerID)
}

func (s *Service) BrowseListings(ctx context.Context, userID string) ([]*models.Listing, error) {
	return s.registry.BrowseExcept(ctx, userID)
}

// MakeOffer proposes the caller's card against a listing, addressed by its
// public listing ID.
func (s *Service) MakeOffer(ctx context.Context, listingID string, myCardID int64, proposerID string) (string, error) {
	listing, err := s.listings.GetByListingID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve listing: %w", err)
	}
	return s.offers.Create(ctx, listing.CardID, myCardID, proposerID)
}

// ListIncomingOffers returns the offers the user must respond to, with both
// cards' current content.
func (s *Service) ListIncomingOffers(ctx context.Context, userID string) ([]IncomingOffer, error) {
	offers, err := s.offers.IncomingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	incoming := make([]IncomingOffer, 0, len(offers))
	for _, offer := range offers {
		requested, err := s.cards.GetByID(ctx, offer.ListingCardID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load requested card: %w", err)
		}
		offered, err := s.cards.GetByID(ctx, offer.ProposerCardID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load offered card: %w", err)
		}
		incoming = append(incoming, IncomingOffer{
			Offer:         offer,
			RequestedCard: requested,
			OfferedCard:   offered,
		})
	}
	return incoming, nil
}

func (s *Service) AcceptOffer(ctx context.Context, offerID string) error {
	return s.settlement.Accept(ctx, offerID)
}

func (s *Service) DeclineOffer(ctx context.Context, offerID string) error {
	return s.settlement.Decline(ctx, offerID)
}

// CancelOffer withdraws the caller's own proposal.
func (s *Service) CancelOffer(ctx context.Context, offerID string) error {
	return s.offers.Cancel(ctx, offerID)
}
