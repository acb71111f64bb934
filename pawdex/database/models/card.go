package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pawdex/pawdex/pawdex/rarity"
	"github.com/uptrace/bun"
)

// Card is a single owned collectible card. Ownership transfer never moves the
// row: settlement swaps the trade content (breed, details, image, rarity,
// stats) between two rows while each keeps its id and owner.
type Card struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	ID       int64       `bun:"id,pk,autoincrement"`
	OwnerID  string      `bun:"owner_id,notnull"`
	Breed    string      `bun:"breed,notnull"`
	Details  string      `bun:"details,type:text,default:''"`
	Rarity   rarity.Tier `bun:"rarity,notnull"`
	ImageURL string      `bun:"image_url,notnull,default:''"`
	Stats    Statistics  `bun:"statistics,type:text,notnull,default:''"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// TradeContent is the snapshot of the fields exchanged during settlement.
type TradeContent struct {
	Breed    string
	Details  string
	Rarity   rarity.Tier
	ImageURL string
	Stats    Statistics
}

func (c *Card) Content() TradeContent {
	return TradeContent{
		Breed:    c.Breed,
		Details:  c.Details,
		Rarity:   c.Rarity,
		ImageURL: c.ImageURL,
		Stats:    c.Stats,
	}
}

func (c *Card) SetContent(tc TradeContent) {
	c.Breed = tc.Breed
	c.Details = tc.Details
	c.Rarity = tc.Rarity
	c.ImageURL = tc.ImageURL
	c.Stats = tc.Stats
}

// StatCount is the number of ratings in a card's statistics block.
const StatCount = 12

// StatNames lists the ratings in serialization order.
var StatNames = [StatCount]string{
	"adaptability",
	"affection",
	"barking",
	"energy",
	"friendliness",
	"grooming",
	"health",
	"intelligence",
	"playfulness",
	"protectiveness",
	"shedding",
	"trainability",
}

// Statistics is the twelve-rating attribute block, each rating 0-5. The store
// persists it as a comma-separated string; decoding is strict so malformed
// documents fail at the boundary instead of propagating partial data.
type Statistics [StatCount]int

// ParseStatistics decodes the serialized rating block, rejecting anything that
// is not exactly twelve integers in 0..5.
func ParseStatistics(s string) (Statistics, error) {
	var stats Statistics
	parts := strings.Split(s, ",")
	if len(parts) != StatCount {
		return stats, fmt.Errorf("statistics block has %d ratings, want %d", len(parts), StatCount)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return stats, fmt.Errorf("statistics rating %s is not an integer: %w", StatNames[i], err)
		}
		if v < 0 || v > 5 {
			return stats, fmt.Errorf("statistics rating %s = %d out of range 0..5", StatNames[i], v)
		}
		stats[i] = v
	}
	return stats, nil
}

func (s Statistics) String() string {
	parts := make([]string, StatCount)
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (s *Statistics) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("statistics block is null")
	default:
		return fmt.Errorf("cannot scan statistics from %T", src)
	}

	parsed, err := ParseStatistics(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Statistics) Value() (driver.Value, error) {
	for i, v := range s {
		if v < 0 || v > 5 {
			return nil, fmt.Errorf("refusing to store rating %s = %d out of range 0..5", StatNames[i], v)
		}
	}
	return s.String(), nil
}
