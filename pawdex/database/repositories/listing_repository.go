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

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByListingID(ctx context.Context, listingID string) (*models.Listing, error)
	FindByCardID(ctx context.Context, cardID int64) (*models.Listing, error)
	GetAllExcept(ctx context.Context, excludedOwner string) ([]*models.Listing, error)
	Withdraw(ctx context.Context, id int64) ([]string, error)
}

type listingRepository struct {
	db *bun.DB
}

func NewListingRepository(db *bun.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create inserts the listing. The unique index on card_id arbitrates
// concurrent publishes for the same card: exactly one insert wins, the rest
// surface ErrDuplicateListing.
func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = time.Now()

	if _, err := r.db.NewInsert().Model(listing).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateListing
		}
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *listingRepository) GetByListingID(ctx context.Context, listingID string) (*models.Listing, error) {
	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Where("listing_id = ?", listingID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

func (r *listingRepository) FindByCardID(ctx context.Context, cardID int64) (*models.Listing, error) {
	listing := new(models.Listing)
	err := r.db.NewSelect().
		Model(listing).
		Where("card_id = ?", cardID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing by card: %w", err)
	}
	return listing, nil
}

func (r *listingRepository) GetAllExcept(ctx context.Context, excludedOwner string) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.db.NewSelect().
		Model(&listings).
		Where("owner_id != ?", excludedOwner).
		Order("breed ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	return listings, nil
}

// Withdraw deletes the listing and every open offer that references it in one
// transaction, so no offer ever outlives its listing. It returns the public
// IDs of the cancelled offers for event emission.
func (r *listingRepository) Withdraw(ctx context.Context, id int64) ([]string, error) {
	var cancelled []string

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	listing := new(models.Listing)
	err = tx.NewSelect().
		Model(listing).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock listing: %w", err)
	}

	var offers []*models.Offer
	err = tx.NewSelect().
		Model(&offers).
		Where("listing_id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers for listing: %w", err)
	}

	if len(offers) > 0 {
		ids := make([]int64, 0, len(offers))
		for _, o := range offers {
			ids = append(ids, o.ID)
			cancelled = append(cancelled, o.OfferID)
		}
		if _, err := tx.NewDelete().
			Model((*models.Offer)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to cancel offers for listing: %w", err)
		}
	}

	if _, err := tx.NewDelete().
		Model((*models.Listing)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	slog.Info("Listing withdrawn",
		slog.String("type", "trade"),
		slog.String("listing_id", listing.ListingID),
		slog.Int64("card_id", listing.CardID),
		slog.Int("cancelled_offers", len(cancelled)))

	return cancelled, nil
}
