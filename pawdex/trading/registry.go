package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/events"
)

const browseCacheSize = 256

// Registry manages the set of active trade listings.
type Registry struct {
	listings repositories.ListingRepository
	cards    repositories.CardRepository
	bus      *events.Bus
	cache    *lru.Cache
}

func NewRegistry(listings repositories.ListingRepository, cards repositories.CardRepository, bus *events.Bus) *Registry {
	cache, _ := lru.New(browseCacheSize)
	return &Registry{
		listings: listings,
		cards:    cards,
		bus:      bus,
		cache:    cache,
	}
}

// Publish opts a card into trading. The display fields are snapshotted from
// the card at publish time. Concurrent publishes for the same card are
// arbitrated by the store: exactly one wins, the rest get ErrAlreadyListed.
func (r *Registry) Publish(ctx context.Context, cardID int64, ownerID string) (string, error) {
	card, err := r.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load card for publish: %w", err)
	}
	if card.OwnerID != ownerID {
		return "", ErrNotOwner
	}

	listing := &models.Listing{
		ListingID: uuid.NewString(),
		CardID:    card.ID,
		OwnerID:   card.OwnerID,
		Breed:     card.Breed,
		Rarity:    card.Rarity,
		ImageURL:  card.ImageURL,
	}

	if err := r.listings.Create(ctx, listing); err != nil {
		if errors.Is(err, repositories.ErrDuplicateListing) {
			return "", ErrAlreadyListed
		}
		return "", fmt.Errorf("failed to publish listing: %w", err)
	}

	r.invalidateBrowse()
	r.bus.Publish(events.Event{
		Kind:      events.ListingPublished,
		ListingID: listing.ListingID,
		UserID:    ownerID,
	})

	slog.Info("Listing published",
		slog.String("type", "trade"),
		slog.String("listing_id", listing.ListingID),
		slog.Int64("card_id", card.ID),
		slog.String("owner_id", ownerID))

	return listing.ListingID, nil
}

// Withdraw removes a listing and cancels every open offer against it.
// Ownership is checked against the authoritative card record, falling back to
// the listing snapshot if the card itself is gone.
func (r *Registry) Withdraw(ctx context.Context, listingID string, requestingOwner string) error {
	listing, err := r.listings.GetByListingID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load listing: %w", err)
	}

	owner := listing.OwnerID
	if card, err := r.cards.GetByID(ctx, listing.CardID); err == nil {
		owner = card.OwnerID
	}
	if owner != requestingOwner {
		return ErrNotOwner
	}

	cancelled, err := r.listings.Withdraw(ctx, listing.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to withdraw listing: %w", err)
	}

	r.invalidateBrowse()
	for _, offerID := range cancelled {
		r.bus.Publish(events.Event{
			Kind:    events.OfferResolved,
			OfferID: offerID,
			Outcome: events.OutcomeDeclined,
		})
	}
	r.bus.Publish(events.Event{
		Kind:      events.ListingRemoved,
		ListingID: listing.ListingID,
		UserID:    requestingOwner,
	})

	return nil
}

// Find reports the active listing for a card, if any.
func (r *Registry) Find(ctx context.Context, cardID int64) (*models.Listing, error) {
	listing, err := r.listings.FindByCardID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return listing, nil
}

// BrowseExcept returns the current snapshot of listings not owned by the
// given user, sorted by breed for display. Results are cached per viewer and
// the cache is purged on any listing mutation, so re-querying always reflects
// the latest snapshot.
func (r *Registry) BrowseExcept(ctx context.Context, excludedOwner string) ([]*models.Listing, error) {
	if cached, ok := r.cache.Get(excludedOwner); ok {
		return cached.([]*models.Listing), nil
	}

	listings, err := r.listings.GetAllExcept(ctx, excludedOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to browse listings: %w", err)
	}

	r.cache.Add(excludedOwner, listings)
	return listings, nil
}

func (r *Registry) invalidateBrowse() {
	r.cache.Purge()
}
