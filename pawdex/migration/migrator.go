package migration

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/pawdex/pawdex/pawdex/rarity"
)

// Migrator imports the legacy document store into Postgres. Documents come
// either from a live Mongo database or from .bson dump files in dataDir
// (cards.bson, listings.bson, offers.bson); Mongo wins when both are set.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	dataDir   string
	batchSize int
	stats     MigrationStats

	// Legacy document ID to imported row, built during the card pass and
	// consumed by the listing and offer passes.
	cards    map[primitive.ObjectID]*models.Card
	listings map[primitive.ObjectID]*models.Listing
}

func NewMigrator(pgDB *bun.DB, dataDir string) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		dataDir:   dataDir,
		batchSize: 1000,
		stats:     MigrationStats{StartTime: time.Now()},
		cards:     make(map[primitive.ObjectID]*models.Card),
		listings:  make(map[primitive.ObjectID]*models.Listing),
	}
}

// UseMongo switches the source from dump files to a live database.
func (m *Migrator) UseMongo(db *mongo.Database) { m.mongoDB = db }

// SetBatchSize overrides the default insert batch size.
func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// Run imports cards, then listings, then offers. Order matters: listings and
// offers resolve their card references against the IDs assigned in the card
// pass.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.migrateCards(ctx); err != nil {
		return fmt.Errorf("card migration failed: %w", err)
	}
	if err := m.migrateListings(ctx); err != nil {
		return fmt.Errorf("listing migration failed: %w", err)
	}
	if err := m.migrateOffers(ctx); err != nil {
		return fmt.Errorf("offer migration failed: %w", err)
	}

	slog.Info("Legacy import completed",
		slog.String("type", "sys"),
		slog.Int("cards", m.stats.Cards.Imported),
		slog.Int("listings", m.stats.Listings.Imported),
		slog.Int("offers", m.stats.Offers.Imported),
		slog.Int("skipped", m.stats.Cards.Skipped+m.stats.Listings.Skipped+m.stats.Offers.Skipped),
		slog.Duration("took", time.Since(m.stats.StartTime)))
	return nil
}

// Stats returns the counters accumulated by Run.
func (m *Migrator) Stats() MigrationStats { return m.stats }

// forEachDoc streams raw BSON documents from the named Mongo collection, or
// from <name>.bson in dataDir when no database is attached. Dump files are a
// plain concatenation of length-prefixed documents, the mongodump layout.
func (m *Migrator) forEachDoc(ctx context.Context, name string, fn func(raw []byte) error) error {
	if m.mongoDB != nil {
		cur, err := m.mongoDB.Collection(name).Find(ctx, bson.D{})
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", name, err)
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			if err := fn(cur.Current); err != nil {
				return err
			}
		}
		return cur.Err()
	}

	path := filepath.Join(m.dataDir, name+".bson")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		// Each document starts with its own int32 length, length included.
		lengthBytes := make([]byte, 4)
		if _, err := io.ReadFull(reader, lengthBytes); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read document length: %w", err)
		}

		length := int32(binary.LittleEndian.Uint32(lengthBytes))
		if length <= 4 {
			return fmt.Errorf("invalid document length: %d", length)
		}

		docBytes := make([]byte, length-4)
		if _, err := io.ReadFull(reader, docBytes); err != nil {
			return fmt.Errorf("failed to read document bytes: %w", err)
		}

		if err := fn(append(lengthBytes, docBytes...)); err != nil {
			return err
		}
	}
}

func (m *Migrator) migrateCards(ctx context.Context) error {
	var batch []*models.Card
	var batchDocs []primitive.ObjectID

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := m.pgDB.NewInsert().
			Model(&batch).
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert card batch: %w", err)
		}
		for i, card := range batch {
			m.cards[batchDocs[i]] = card
		}
		m.stats.Cards.Imported += len(batch)
		batch = batch[:0]
		batchDocs = batchDocs[:0]
		return nil
	}

	err := m.forEachDoc(ctx, "cards", func(raw []byte) error {
		m.stats.Cards.Read++

		var doc LegacyCard
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to decode card document: %w", err)
		}

		tier, err := rarity.ParseTier(doc.Rarity)
		if err != nil {
			slog.Warn("Skipping card with unmapped rarity",
				slog.String("type", "sys"),
				slog.String("doc_id", doc.ID.Hex()),
				slog.Any("error", err))
			m.stats.Cards.Skipped++
			return nil
		}
		stats, err := models.ParseStatistics(doc.Statistics)
		if err != nil {
			slog.Warn("Skipping card with malformed statistics",
				slog.String("type", "sys"),
				slog.String("doc_id", doc.ID.Hex()),
				slog.Any("error", err))
			m.stats.Cards.Skipped++
			return nil
		}

		created := doc.Created
		if created.IsZero() {
			created = doc.ID.Timestamp()
		}
		batch = append(batch, &models.Card{
			OwnerID:   doc.User,
			Breed:     doc.Breed,
			Details:   doc.Details,
			Rarity:    tier,
			ImageURL:  doc.Image,
			Stats:     stats,
			CreatedAt: created,
			UpdatedAt: created,
		})
		batchDocs = append(batchDocs, doc.ID)

		if len(batch) >= m.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func (m *Migrator) migrateListings(ctx context.Context) error {
	seen := make(map[primitive.ObjectID]bool)

	return m.forEachDoc(ctx, "listings", func(raw []byte) error {
		m.stats.Listings.Read++

		var doc LegacyListing
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to decode listing document: %w", err)
		}

		card, ok := m.cards[doc.CardReference]
		if !ok || seen[doc.CardReference] {
			m.stats.Listings.Skipped++
			return nil
		}
		seen[doc.CardReference] = true

		listing := &models.Listing{
			ListingID: uuid.New().String(),
			CardID:    card.ID,
			OwnerID:   card.OwnerID,
			Breed:     card.Breed,
			Rarity:    card.Rarity,
			ImageURL:  card.ImageURL,
			CreatedAt: doc.Created,
			UpdatedAt: doc.Created,
		}
		if _, err := m.pgDB.NewInsert().
			Model(listing).
			On("CONFLICT DO NOTHING").
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert listing: %w", err)
		}

		m.listings[doc.ID] = listing
		m.stats.Listings.Imported++
		return nil
	})
}

func (m *Migrator) migrateOffers(ctx context.Context) error {
	return m.forEachDoc(ctx, "offers", func(raw []byte) error {
		m.stats.Offers.Read++

		var doc LegacyOffer
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to decode offer document: %w", err)
		}

		proposerCard, okCard := m.cards[doc.Card]
		listedCard, okFor := m.cards[doc.For]
		listing, okRef := m.listings[doc.TradeRef]
		if !okCard || !okFor || !okRef || listing.CardID != listedCard.ID {
			m.stats.Offers.Skipped++
			return nil
		}

		offer := &models.Offer{
			OfferID:        uuid.New().String(),
			ListingID:      listing.ID,
			ListingCardID:  listedCard.ID,
			ProposerCardID: proposerCard.ID,
			ProposerID:     doc.User,
			CreatedAt:      doc.Created,
			UpdatedAt:      doc.Created,
		}
		res, err := m.pgDB.NewInsert().
			Model(offer).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert offer: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Duplicate pair in the legacy data, swallowed by the index.
			m.stats.Offers.Skipped++
			return nil
		}

		m.stats.Offers.Imported++
		return nil
	})
}
