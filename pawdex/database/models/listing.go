package models

import (
	"time"

	"github.com/pawdex/pawdex/pawdex/rarity"
	"github.com/uptrace/bun"
)

// Listing publishes a card as available for trade. The breed/rarity/image
// columns are display snapshots taken at publish time, not authoritative card
// state. The unique index on card_id is the store-level guarantee that a card
// has at most one active listing.
type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID        int64  `bun:"id,pk,autoincrement"`
	ListingID string `bun:"listing_id,notnull,unique"`
	CardID    int64  `bun:"card_id,notnull,unique"`
	OwnerID   string `bun:"owner_id,notnull"`

	Breed    string      `bun:"breed,notnull"`
	Rarity   rarity.Tier `bun:"rarity,notnull"`
	ImageURL string      `bun:"image_url,notnull,default:''"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	Card *Card `bun:"rel:belongs-to,join:card_id=id"`
}
