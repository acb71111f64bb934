package packs

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/rarity"
)

// Rand is the random source the generator consumes. *rand.Rand satisfies it;
// tests inject a fixed seed.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Breed is a catalog entry a minted card copies its display content from.
type Breed struct {
	Name    string
	Details string
}

// BreedSource picks a breed for a freshly minted card.
type BreedSource interface {
	Random(r Rand) Breed
}

// ImageResolver maps a breed name to its artwork URL.
type ImageResolver interface {
	CardImageURL(breed string) string
}

// Generator mints new cards when a user opens a pack. Rarity comes from the
// weighted sampler, display content from the breed catalog, and the twelve
// ratings are rolled per card.
type Generator struct {
	sampler *rarity.Sampler
	table   rarity.Table
	breeds  BreedSource
	images  ImageResolver
	cards   repositories.CardRepository

	mu  sync.Mutex
	rng Rand
}

func NewGenerator(
	rng Rand,
	table rarity.Table,
	breeds BreedSource,
	images ImageResolver,
	cards repositories.CardRepository,
) *Generator {
	return &Generator{
		sampler: rarity.NewSampler(rng),
		table:   table,
		breeds:  breeds,
		images:  images,
		cards:   cards,
		rng:     rng,
	}
}

// Open mints count cards for ownerID, persisting each one. The rolls are
// serialized on the shared random source; persistence fans out concurrently.
// Results keep draw order.
func (g *Generator) Open(ctx context.Context, ownerID string, count int) ([]*models.Card, error) {
	if count <= 0 {
		return nil, fmt.Errorf("pack size must be positive, got %d", count)
	}

	minted := make([]*models.Card, count)
	for i := range minted {
		card, err := g.roll(ownerID)
		if err != nil {
			return nil, err
		}
		minted[i] = card
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, card := range minted {
		card := card
		eg.Go(func() error {
			if err := g.cards.Create(ctx, card); err != nil {
				return fmt.Errorf("failed to mint %s card: %w", card.Breed, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return minted, nil
}

// roll draws one card's content under the source lock so concurrent opens
// never interleave partial draws.
func (g *Generator) roll(ownerID string) (*models.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tier, err := g.sampler.Sample(g.table)
	if err != nil {
		return nil, err
	}
	breed := g.breeds.Random(g.rng)

	var stats models.Statistics
	for i := range stats {
		stats[i] = g.rng.Intn(6)
	}

	return &models.Card{
		OwnerID:  ownerID,
		Breed:    breed.Name,
		Details:  breed.Details,
		Rarity:   tier,
		ImageURL: g.images.CardImageURL(breed.Name),
		Stats:    stats,
	}, nil
}
