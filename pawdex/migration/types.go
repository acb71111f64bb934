package migration

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LegacyCard is a card document from the original store. Rarity is a raw
// integer and statistics a serialized rating string; both go through the
// strict decoders on the way in.
type LegacyCard struct {
	ID         primitive.ObjectID `bson:"_id"`
	User       string             `bson:"user"`
	Breed      string             `bson:"breed"`
	Details    string             `bson:"details"`
	Rarity     int                `bson:"rarity"`
	Statistics string             `bson:"statistics"`
	Image      string             `bson:"image"`
	Created    time.Time          `bson:"created"`
}

// LegacyListing is a trade listing document. cardReference points at the
// listed card's document ID.
type LegacyListing struct {
	ID            primitive.ObjectID `bson:"_id"`
	CardReference primitive.ObjectID `bson:"cardReference"`
	User          string             `bson:"user"`
	Created       time.Time          `bson:"created"`
}

// LegacyOffer is an offer document: "card" is the proposer's card, "for" the
// listed card it is proposed against, tradeRef the originating listing.
type LegacyOffer struct {
	ID       primitive.ObjectID `bson:"_id"`
	Card     primitive.ObjectID `bson:"card"`
	For      primitive.ObjectID `bson:"for"`
	TradeRef primitive.ObjectID `bson:"tradeRef"`
	User     string             `bson:"user"`
	Created  time.Time          `bson:"created"`
}

// MigrationStats tracks per-collection import counts.
type MigrationStats struct {
	StartTime time.Time
	Cards     TableStats
	Listings  TableStats
	Offers    TableStats
}

type TableStats struct {
	Read     int
	Imported int
	Skipped  int
}
