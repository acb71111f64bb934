package rarity

import (
	"database/sql/driver"
	"fmt"
	"math/rand"
)

// Tier is the rarity class assigned to a card at creation time.
type Tier int

const (
	Common Tier = iota
	Rare
	Epic
	Legendary
	Mythic
)

var tierNames = map[Tier]string{
	Common:    "common",
	Rare:      "rare",
	Epic:      "epic",
	Legendary: "legendary",
	Mythic:    "mythic",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier converts a stored integer into a Tier, rejecting unmapped values.
func ParseTier(v int) (Tier, error) {
	t := Tier(v)
	if _, ok := tierNames[t]; !ok {
		return Common, fmt.Errorf("unknown rarity tier %d", v)
	}
	return t, nil
}

// Scan implements sql.Scanner so an out-of-range value in the store surfaces
// as a decode error instead of leaking an unmapped integer into the core.
func (t *Tier) Scan(src any) error {
	var v int64
	switch s := src.(type) {
	case int64:
		v = s
	case int32:
		v = int64(s)
	case []byte:
		if _, err := fmt.Sscanf(string(s), "%d", &v); err != nil {
			return fmt.Errorf("failed to scan rarity tier: %w", err)
		}
	default:
		return fmt.Errorf("cannot scan rarity tier from %T", src)
	}

	parsed, err := ParseTier(int(v))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Tier) Value() (driver.Value, error) {
	if _, ok := tierNames[t]; !ok {
		return nil, fmt.Errorf("refusing to store unknown rarity tier %d", int(t))
	}
	return int64(t), nil
}

// Weight pairs a tier with its relative draw weight. Weights need not sum to 1.
type Weight struct {
	Tier  Tier
	Value float64
}

// Table is an ordered weight sequence. Order matters: the draw walks the table
// front to back.
type Table []Weight

// DefaultTable is the product distribution. The values are relative weights,
// not probabilities; they intentionally sum to 0.931 and the sampler draws
// over the actual total, so proportions are preserved without normalization.
var DefaultTable = Table{
	{Common, 0.75},
	{Rare, 0.15},
	{Epic, 0.025},
	{Legendary, 0.005},
	{Mythic, 0.001},
}

// Total returns the sum of all positive weights.
func (t Table) Total() float64 {
	var total float64
	for _, w := range t {
		if w.Value > 0 {
			total += w.Value
		}
	}
	return total
}

// Source supplies uniform values in [0, 1). *rand.Rand satisfies it, and tests
// inject a fixed-seed source.
type Source interface {
	Float64() float64
}

// Sampler draws tiers from a weight table. It has no side effects beyond
// consuming its random source.
type Sampler struct {
	src Source
}

func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// NewSeededSampler is a convenience constructor for a math/rand backed sampler.
func NewSeededSampler(seed int64) *Sampler {
	return &Sampler{src: rand.New(rand.NewSource(seed))}
}

// Sample performs a weighted-index draw: a uniform value in [0, total) is
// reduced by each weight in order until it drops below zero. Zero-weight tiers
// can never be drawn. If floating-point drift leaves a residual after the walk,
// the last tier wins. An empty or non-positive table returns the first defined
// tier along with an error, since that is a configuration mistake.
func (s *Sampler) Sample(table Table) (Tier, error) {
	total := table.Total()
	if len(table) == 0 || total <= 0 {
		return Common, fmt.Errorf("rarity table has no positive weights")
	}

	remainder := s.src.Float64() * total
	for _, w := range table {
		if w.Value <= 0 {
			continue
		}
		remainder -= w.Value
		if remainder < 0 {
			return w.Tier, nil
		}
	}
	return table[len(table)-1].Tier, nil
}
