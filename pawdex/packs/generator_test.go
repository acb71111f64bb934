package packs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/rarity"
)

type memCardRepo struct {
	mu     sync.Mutex
	nextID int64
	cards  map[int64]*models.Card
	failOn string
}

func newMemCardRepo() *memCardRepo {
	return &memCardRepo{cards: make(map[int64]*models.Card)}
}

func (r *memCardRepo) Create(_ context.Context, card *models.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && card.Breed == r.failOn {
		return fmt.Errorf("store rejected %s", card.Breed)
	}
	r.nextID++
	card.ID = r.nextID
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *memCardRepo) GetByID(_ context.Context, id int64) (*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *card
	return &cp, nil
}

func (r *memCardRepo) GetByOwner(_ context.Context, ownerID string) ([]*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Card
	for _, c := range r.cards {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCardRepo) Update(_ context.Context, card *models.Card) error { return nil }
func (r *memCardRepo) Delete(_ context.Context, id int64) error          { return nil }

type stubImages struct{}

func (stubImages) CardImageURL(breed string) string {
	return "https://cdn.example.com/cards/" + breed + ".jpg"
}

func TestOpenMintsRequestedCount(t *testing.T) {
	repo := newMemCardRepo()
	rng := rand.New(rand.NewSource(7))
	gen := NewGenerator(rng, rarity.DefaultTable, DefaultCatalog, stubImages{}, repo)

	minted, err := gen.Open(context.Background(), "alice", 5)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(minted) != 5 {
		t.Fatalf("Open() minted %d cards, want 5", len(minted))
	}

	owned, err := repo.GetByOwner(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByOwner() error = %v", err)
	}
	if len(owned) != 5 {
		t.Errorf("persisted %d cards, want 5", len(owned))
	}

	for _, card := range minted {
		if card.ID == 0 {
			t.Errorf("card %s has no assigned id", card.Breed)
		}
		if card.OwnerID != "alice" {
			t.Errorf("card owner = %q, want alice", card.OwnerID)
		}
		if card.Breed == "" || card.Details == "" || card.ImageURL == "" {
			t.Errorf("card missing content: %+v", card)
		}
		for i, v := range card.Stats {
			if v < 0 || v > 5 {
				t.Errorf("stat %s = %d, out of range", models.StatNames[i], v)
			}
		}
	}
}

func TestOpenRejectsNonPositiveCount(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(1)), rarity.DefaultTable, DefaultCatalog, stubImages{}, newMemCardRepo())
	for _, count := range []int{0, -3} {
		if _, err := gen.Open(context.Background(), "alice", count); err == nil {
			t.Errorf("Open(count=%d) succeeded, want error", count)
		}
	}
}

func TestOpenPropagatesStoreFailure(t *testing.T) {
	repo := newMemCardRepo()
	repo.failOn = "Beagle"
	rng := rand.New(rand.NewSource(3))
	gen := NewGenerator(rng, rarity.DefaultTable, DefaultCatalog, stubImages{}, repo)

	// A large enough pack is certain to hit the failing breed.
	if _, err := gen.Open(context.Background(), "alice", 200); err == nil {
		t.Fatal("Open() succeeded despite store failures")
	}
}

// TestOpenRarityDistribution mints a large pool and checks the tier shares
// against the weight table within a loose tolerance.
func TestOpenRarityDistribution(t *testing.T) {
	repo := newMemCardRepo()
	rng := rand.New(rand.NewSource(42))
	gen := NewGenerator(rng, rarity.DefaultTable, DefaultCatalog, stubImages{}, repo)

	const n = 20000
	counts := make(map[rarity.Tier]int)
	for i := 0; i < n/100; i++ {
		minted, err := gen.Open(context.Background(), "alice", 100)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		for _, card := range minted {
			counts[card.Rarity]++
		}
	}

	total := rarity.DefaultTable.Total()
	for _, w := range rarity.DefaultTable {
		want := w.Value / total
		got := float64(counts[w.Tier]) / n
		// Three standard deviations for a binomial proportion.
		tolerance := 3 * math.Sqrt(want*(1-want)/n)
		if math.Abs(got-want) > tolerance {
			t.Errorf("tier %s share = %.4f, want %.4f +/- %.4f", w.Tier, got, want, tolerance)
		}
	}
}
