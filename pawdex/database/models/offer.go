package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Offer is a proposal to exchange the proposer's card for a listed card. It
// references both cards by stable id and re-fetches their content at use time;
// nothing mutable is cached here. Terminal transitions (accepted, declined)
// delete the row, so there is no status column.
type Offer struct {
	bun.BaseModel `bun:"table:offers,alias:o"`

	ID             int64  `bun:"id,pk,autoincrement"`
	OfferID        string `bun:"offer_id,notnull,unique"`
	ListingID      int64  `bun:"listing_id,notnull"`
	ListingCardID  int64  `bun:"listing_card_id,notnull"`
	ProposerCardID int64  `bun:"proposer_card_id,notnull"`
	ProposerID     string `bun:"proposer_id,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	ListingCard  *Card    `bun:"rel:belongs-to,join:listing_card_id=id"`
	ProposerCard *Card    `bun:"rel:belongs-to,join:proposer_card_id=id"`
	Listing      *Listing `bun:"rel:belongs-to,join:listing_id=id"`
}

// SettlementReport describes everything a completed settlement removed or
// rewrote, so callers can emit the matching domain events after commit.
type SettlementReport struct {
	Offer             *Offer
	ListingCard       *Card
	ProposerCard      *Card
	RemovedListingIDs []string
	CancelledOfferIDs []string
}
