package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/uptrace/bun"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByOfferID(ctx context.Context, offerID string) (*models.Offer, error)
	FindByPair(ctx context.Context, cardA, cardB int64) (*models.Offer, error)
	GetIncoming(ctx context.Context, ownerID string) ([]*models.Offer, error)
	Delete(ctx context.Context, offerID string) error
	Settle(ctx context.Context, offerID string) (*models.SettlementReport, error)
}

type offerRepository struct {
	db *bun.DB
}

func NewOfferRepository(db *bun.DB) OfferRepository {
	return &offerRepository{db: db}
}

// Create inserts the offer. The unique index on the unordered card pair is
// the final backstop against two identical proposals racing past the
// application-level duplicate check.
func (r *offerRepository) Create(ctx context.Context, offer *models.Offer) error {
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = time.Now()

	if _, err := r.db.NewInsert().Model(offer).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOffer
		}
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

func (r *offerRepository) GetByOfferID(ctx context.Context, offerID string) (*models.Offer, error) {
	offer := new(models.Offer)
	err := r.db.NewSelect().
		Model(offer).
		Where("offer_id = ?", offerID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

// FindByPair looks up an active offer for the unordered card pair.
func (r *offerRepository) FindByPair(ctx context.Context, cardA, cardB int64) (*models.Offer, error) {
	offer := new(models.Offer)
	err := r.db.NewSelect().
		Model(offer).
		Where("(listing_card_id = ? AND proposer_card_id = ?) OR (listing_card_id = ? AND proposer_card_id = ?)",
			cardA, cardB, cardB, cardA).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find offer by pair: %w", err)
	}
	return offer, nil
}

// GetIncoming returns offers the given user must respond to. Ownership is
// resolved through the authoritative card row, not a denormalized column, so
// the result cannot go stale if card ownership changes.
func (r *offerRepository) GetIncoming(ctx context.Context, ownerID string) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := r.db.NewSelect().
		Model(&offers).
		Join("JOIN cards AS lc ON lc.id = o.listing_card_id").
		Where("lc.owner_id = ?", ownerID).
		Order("o.created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get incoming offers: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) Delete(ctx context.Context, offerID string) error {
	result, err := r.db.NewDelete().
		Model((*models.Offer)(nil)).
		Where("offer_id = ?", offerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Settle executes the accepted trade as one serializable transaction: lock the
// offer, lock both cards, swap their trade content under stable identity, then
// remove the offer, every other offer touching either card, and the affected
// listings. The single commit means a reader never observes a half-applied
// swap.
func (r *offerRepository) Settle(ctx context.Context, offerID string) (*models.SettlementReport, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the offer first. A concurrent accept or decline that already
	// resolved it makes this the idempotency exit.
	offer := new(models.Offer)
	err = tx.NewSelect().
		Model(offer).
		Where("offer_id = ?", offerID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock offer: %w", err)
	}

	// Lock both cards in id order so concurrent settlements on overlapping
	// pairs cannot deadlock.
	firstID, secondID := offer.ListingCardID, offer.ProposerCardID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	lockCard := func(id int64) (*models.Card, error) {
		card := new(models.Card)
		err := tx.NewSelect().
			Model(card).
			Where("id = ?", id).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrCardMissing
			}
			return nil, fmt.Errorf("failed to lock card %d: %w", id, err)
		}
		return card, nil
	}

	first, err := lockCard(firstID)
	if err != nil {
		return nil, err
	}
	second, err := lockCard(secondID)
	if err != nil {
		return nil, err
	}

	listingCard, proposerCard := first, second
	if listingCard.ID != offer.ListingCardID {
		listingCard, proposerCard = second, first
	}

	// The listing must still exist and still point at the listed card.
	listing := new(models.Listing)
	err = tx.NewSelect().
		Model(listing).
		Where("id = ?", offer.ListingID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardMissing
		}
		return nil, fmt.Errorf("failed to lock listing: %w", err)
	}
	if listing.CardID != offer.ListingCardID {
		return nil, ErrCardMissing
	}

	// Swap trade content under stable identity: each row keeps its id and
	// owner, the viewer-facing fields exchange sides.
	listingSnapshot := listingCard.Content()
	proposerSnapshot := proposerCard.Content()
	listingCard.SetContent(proposerSnapshot)
	proposerCard.SetContent(listingSnapshot)

	for _, card := range []*models.Card{listingCard, proposerCard} {
		card.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().
			Model(card).
			Column("breed", "details", "rarity", "image_url", "statistics", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to write swapped content for card %d: %w", card.ID, err)
		}
	}

	// Every other offer touching either card is now stale; collect and
	// remove them so they can be reported as declined.
	var related []*models.Offer
	err = tx.NewSelect().
		Model(&related).
		Where("listing_card_id IN (?, ?) OR proposer_card_id IN (?, ?)",
			listingCard.ID, proposerCard.ID, listingCard.ID, proposerCard.ID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load related offers: %w", err)
	}

	var cancelled []string
	offerRowIDs := make([]int64, 0, len(related))
	for _, o := range related {
		offerRowIDs = append(offerRowIDs, o.ID)
		if o.OfferID != offer.OfferID {
			cancelled = append(cancelled, o.OfferID)
		}
	}
	if len(offerRowIDs) > 0 {
		if _, err := tx.NewDelete().
			Model((*models.Offer)(nil)).
			Where("id IN (?)", bun.In(offerRowIDs)).
			Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to delete resolved offers: %w", err)
		}
	}

	// Remove the originating listing, plus any listing on the proposer's
	// card whose content just changed out from under it.
	var removedListings []*models.Listing
	err = tx.NewSelect().
		Model(&removedListings).
		Where("card_id IN (?, ?)", listingCard.ID, proposerCard.ID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings for traded cards: %w", err)
	}

	removed := make([]string, 0, len(removedListings))
	listingRowIDs := make([]int64, 0, len(removedListings))
	for _, l := range removedListings {
		listingRowIDs = append(listingRowIDs, l.ID)
		removed = append(removed, l.ListingID)
	}
	if len(listingRowIDs) > 0 {
		if _, err := tx.NewDelete().
			Model((*models.Listing)(nil)).
			Where("id IN (?)", bun.In(listingRowIDs)).
			Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to delete listings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	slog.Info("Trade settled",
		slog.String("type", "trade"),
		slog.String("offer_id", offer.OfferID),
		slog.Int64("listing_card_id", listingCard.ID),
		slog.Int64("proposer_card_id", proposerCard.ID),
		slog.String("proposer_id", offer.ProposerID),
		slog.Int("cancelled_offers", len(cancelled)))

	return &models.SettlementReport{
		Offer:             offer,
		ListingCard:       listingCard,
		ProposerCard:      proposerCard,
		RemovedListingIDs: removed,
		CancelledOfferIDs: cancelled,
	}, nil
}
