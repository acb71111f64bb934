package trading

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/events"
)

// fakeStore models the backing store in memory: one mutex plays the role of
// the store's transactional primitives, and the uniqueness rules mirror the
// real schema's unique indexes.
type fakeStore struct {
	mu          sync.Mutex
	cards       map[int64]*models.Card
	listings    map[int64]*models.Listing
	offers      map[int64]*models.Offer
	nextCard    int64
	nextListing int64
	nextOffer   int64

	// settleErr, when set, makes Settle fail after validation to simulate a
	// mid-exchange store failure.
	settleErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:    make(map[int64]*models.Card),
		listings: make(map[int64]*models.Listing),
		offers:   make(map[int64]*models.Offer),
	}
}

func cloneCard(c *models.Card) *models.Card {
	cp := *c
	return &cp
}

func cloneListing(l *models.Listing) *models.Listing {
	cp := *l
	cp.Card = nil
	return &cp
}

func cloneOffer(o *models.Offer) *models.Offer {
	cp := *o
	cp.ListingCard = nil
	cp.ProposerCard = nil
	cp.Listing = nil
	return &cp
}

func (s *fakeStore) addCard(card *models.Card) *models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCard++
	card.ID = s.nextCard
	card.CreatedAt = time.Now()
	card.UpdatedAt = time.Now()
	s.cards[card.ID] = cloneCard(card)
	return card
}

type fakeCardRepo struct{ store *fakeStore }

func (r *fakeCardRepo) Create(_ context.Context, card *models.Card) error {
	r.store.addCard(card)
	return nil
}

func (r *fakeCardRepo) GetByID(_ context.Context, id int64) (*models.Card, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	card, ok := r.store.cards[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneCard(card), nil
}

func (r *fakeCardRepo) GetByOwner(_ context.Context, ownerID string) ([]*models.Card, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Card
	for _, c := range r.store.cards {
		if c.OwnerID == ownerID {
			out = append(out, cloneCard(c))
		}
	}
	return out, nil
}

func (r *fakeCardRepo) Update(_ context.Context, card *models.Card) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.cards[card.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.store.cards[card.ID] = cloneCard(card)
	return nil
}

func (r *fakeCardRepo) Delete(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.cards[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.store.cards, id)
	return nil
}

type fakeListingRepo struct{ store *fakeStore }

func (r *fakeListingRepo) Create(_ context.Context, listing *models.Listing) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, l := range r.store.listings {
		if l.CardID == listing.CardID {
			return repositories.ErrDuplicateListing
		}
	}
	r.store.nextListing++
	listing.ID = r.store.nextListing
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = time.Now()
	r.store.listings[listing.ID] = cloneListing(listing)
	return nil
}

func (r *fakeListingRepo) GetByListingID(_ context.Context, listingID string) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, l := range r.store.listings {
		if l.ListingID == listingID {
			return cloneListing(l), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeListingRepo) FindByCardID(_ context.Context, cardID int64) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, l := range r.store.listings {
		if l.CardID == cardID {
			return cloneListing(l), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeListingRepo) GetAllExcept(_ context.Context, excludedOwner string) ([]*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Listing
	for _, l := range r.store.listings {
		if l.OwnerID != excludedOwner {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Breed < out[j].Breed })
	return out, nil
}

func (r *fakeListingRepo) Withdraw(_ context.Context, id int64) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.listings[id]; !ok {
		return nil, repositories.ErrNotFound
	}
	var cancelled []string
	for rowID, o := range r.store.offers {
		if o.ListingID == id {
			cancelled = append(cancelled, o.OfferID)
			delete(r.store.offers, rowID)
		}
	}
	delete(r.store.listings, id)
	sort.Strings(cancelled)
	return cancelled, nil
}

type fakeOfferRepo struct{ store *fakeStore }

func samePair(o *models.Offer, cardA, cardB int64) bool {
	return (o.ListingCardID == cardA && o.ProposerCardID == cardB) ||
		(o.ListingCardID == cardB && o.ProposerCardID == cardA)
}

func (r *fakeOfferRepo) Create(_ context.Context, offer *models.Offer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, o := range r.store.offers {
		if samePair(o, offer.ListingCardID, offer.ProposerCardID) {
			return repositories.ErrDuplicateOffer
		}
	}
	r.store.nextOffer++
	offer.ID = r.store.nextOffer
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = time.Now()
	r.store.offers[offer.ID] = cloneOffer(offer)
	return nil
}

func (r *fakeOfferRepo) GetByOfferID(_ context.Context, offerID string) (*models.Offer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, o := range r.store.offers {
		if o.OfferID == offerID {
			return cloneOffer(o), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeOfferRepo) FindByPair(_ context.Context, cardA, cardB int64) (*models.Offer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, o := range r.store.offers {
		if samePair(o, cardA, cardB) {
			return cloneOffer(o), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeOfferRepo) GetIncoming(_ context.Context, ownerID string) ([]*models.Offer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Offer
	for _, o := range r.store.offers {
		card, ok := r.store.cards[o.ListingCardID]
		if ok && card.OwnerID == ownerID {
			out = append(out, cloneOffer(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeOfferRepo) Delete(_ context.Context, offerID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for rowID, o := range r.store.offers {
		if o.OfferID == offerID {
			delete(r.store.offers, rowID)
			return nil
		}
	}
	return repositories.ErrNotFound
}

// Settle mirrors the real repository's transactional exchange: everything
// below happens under one lock, so a concurrent caller sees either the full
// pre-state or the full post-state.
func (r *fakeOfferRepo) Settle(_ context.Context, offerID string) (*models.SettlementReport, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var offer *models.Offer
	for _, o := range r.store.offers {
		if o.OfferID == offerID {
			offer = o
			break
		}
	}
	if offer == nil {
		return nil, repositories.ErrNotFound
	}

	listingCard, ok := r.store.cards[offer.ListingCardID]
	if !ok {
		return nil, repositories.ErrCardMissing
	}
	proposerCard, ok := r.store.cards[offer.ProposerCardID]
	if !ok {
		return nil, repositories.ErrCardMissing
	}
	listing, ok := r.store.listings[offer.ListingID]
	if !ok || listing.CardID != offer.ListingCardID {
		return nil, repositories.ErrCardMissing
	}

	if r.store.settleErr != nil {
		return nil, r.store.settleErr
	}

	listingSnapshot := listingCard.Content()
	proposerSnapshot := proposerCard.Content()
	listingCard.SetContent(proposerSnapshot)
	proposerCard.SetContent(listingSnapshot)
	listingCard.UpdatedAt = time.Now()
	proposerCard.UpdatedAt = time.Now()

	var cancelled []string
	for rowID, o := range r.store.offers {
		touches := o.ListingCardID == listingCard.ID || o.ListingCardID == proposerCard.ID ||
			o.ProposerCardID == listingCard.ID || o.ProposerCardID == proposerCard.ID
		if !touches {
			continue
		}
		if o.OfferID != offer.OfferID {
			cancelled = append(cancelled, o.OfferID)
		}
		delete(r.store.offers, rowID)
	}

	var removed []string
	for rowID, l := range r.store.listings {
		if l.CardID == listingCard.ID || l.CardID == proposerCard.ID {
			removed = append(removed, l.ListingID)
			delete(r.store.listings, rowID)
		}
	}

	sort.Strings(cancelled)
	sort.Strings(removed)

	return &models.SettlementReport{
		Offer:             cloneOffer(offer),
		ListingCard:       cloneCard(listingCard),
		ProposerCard:      cloneCard(proposerCard),
		RemovedListingIDs: removed,
		CancelledOfferIDs: cancelled,
	}, nil
}

// testEnv wires a Service over the fake store with a subscribed event
// channel.
type testEnv struct {
	store *fakeStore
	cards repositories.CardRepository
	svc   *Service
	bus   *events.Bus
	sub   *events.Subscriber
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	cards := &fakeCardRepo{store: store}
	listings := &fakeListingRepo{store: store}
	offers := &fakeOfferRepo{store: store}
	bus := events.NewBus()
	return &testEnv{
		store: store,
		cards: cards,
		svc:   NewService(cards, listings, offers, bus),
		bus:   bus,
		sub:   bus.Subscribe(),
	}
}

// collectEvents drains everything currently buffered on the subscriber.
func (e *testEnv) collectEvents() []events.Event {
	var got []events.Event
	for {
		select {
		case ev := <-e.sub.C:
			got = append(got, ev)
		default:
			return got
		}
	}
}

func (e *testEnv) countEvents(kind events.Kind, outcome events.Outcome) int {
	n := 0
	for _, ev := range e.collectEvents() {
		if ev.Kind == kind && (outcome == "" || ev.Outcome == outcome) {
			n++
		}
	}
	return n
}
