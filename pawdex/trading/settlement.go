package trading

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/events"
)

// Settlement executes the atomic two-card exchange when an offer is accepted.
type Settlement struct {
	offers   repositories.OfferRepository
	registry *Registry
	bus      *events.Bus
}

func NewSettlement(offers repositories.OfferRepository, registry *Registry, bus *events.Bus) *Settlement {
	return &Settlement{
		offers:   offers,
		registry: registry,
		bus:      bus,
	}
}

// Accept settles the offer. The whole exchange - re-fetch the offer, verify
// both cards, swap their content, remove the offer and the affected listings -
// commits atomically in the store, so a second Accept (or a racing decline or
// withdrawal) observes ErrNotFound rather than a second swap.
//
// ErrCardVanished means a referenced card or the listing disappeared between
// offer creation and acceptance; the dangling offer is declined on the way
// out. Any other failure is wrapped in *SettlementError, logged, and leaves
// the offer in place so Accept can be retried.
func (s *Settlement) Accept(ctx context.Context, offerID string) error {
	report, err := s.offers.Settle(ctx, offerID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, repositories.ErrCardMissing):
			if declineErr := s.Decline(ctx, offerID); declineErr != nil && !errors.Is(declineErr, ErrNotFound) {
				slog.Warn("Failed to clean up dangling offer",
					slog.String("type", "trade"),
					slog.String("offer_id", offerID),
					slog.Any("error", declineErr))
			}
			return ErrCardVanished
		default:
			serr := &SettlementError{OfferID: offerID, Err: err}
			slog.Error("Settlement failed, offer left in place for retry",
				slog.String("type", "trade"),
				slog.String("offer_id", offerID),
				slog.Any("error", err))
			return serr
		}
	}

	s.registry.invalidateBrowse()

	s.bus.Publish(events.Event{
		Kind:    events.OfferResolved,
		OfferID: report.Offer.OfferID,
		UserID:  report.Offer.ProposerID,
		Outcome: events.OutcomeAccepted,
	})
	for _, siblingID := range report.CancelledOfferIDs {
		s.bus.Publish(events.Event{
			Kind:    events.OfferResolved,
			OfferID: siblingID,
			Outcome: events.OutcomeDeclined,
		})
	}
	for _, listingID := range report.RemovedListingIDs {
		s.bus.Publish(events.Event{
			Kind:      events.ListingRemoved,
			ListingID: listingID,
		})
	}

	return nil
}

// Decline deletes the offer only. The listing stays active for other offers.
func (s *Settlement) Decline(ctx context.Context, offerID string) error {
	if err := s.offers.Delete(ctx, offerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.bus.Publish(events.Event{
		Kind:    events.OfferResolved,
		OfferID: offerID,
		Outcome: events.OutcomeDeclined,
	})
	return nil
}
