package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawdex/pawdex/pawdex"
	"github.com/pawdex/pawdex/pawdex/database"
	"github.com/pawdex/pawdex/pawdex/database/repositories"
	"github.com/pawdex/pawdex/pawdex/events"
	"github.com/pawdex/pawdex/pawdex/logger"
	"github.com/pawdex/pawdex/pawdex/migration"
	"github.com/pawdex/pawdex/pawdex/packs"
	"github.com/pawdex/pawdex/pawdex/rarity"
	"github.com/pawdex/pawdex/pawdex/services"
	"github.com/pawdex/pawdex/pawdex/trading"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting PawDex trade engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	migrateLegacy := flag.Bool("migrate-legacy", false, "import the legacy document store before serving")
	legacyData := flag.String("legacy-data", "data", "directory holding legacy .bson dumps")
	starterPackUser := flag.String("starter-pack", "", "mint a starter pack for the given user id and exit")
	flag.Parse()

	cfg, err := pawdex.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	if *migrateLegacy {
		slog.Info("Importing legacy document store",
			slog.String("type", "sys"),
			slog.String("data_dir", *legacyData))
		migrator := migration.NewMigrator(db.BunDB(), *legacyData)
		if err := migrator.Run(ctx); err != nil {
			logger.LogError("Legacy import failed", err)
			os.Exit(-1)
		}
	}

	imageService, err := services.NewImageService(
		cfg.Spaces.Key,
		cfg.Spaces.Secret,
		cfg.Spaces.Region,
		cfg.Spaces.Bucket,
		cfg.Spaces.CardRoot,
	)
	if err != nil {
		slog.Error("Failed to initialize image service", slog.Any("error", err))
		os.Exit(-1)
	}

	cardRepo := repositories.NewCardRepository(db.BunDB())
	listingRepo := repositories.NewListingRepository(db.BunDB())
	offerRepo := repositories.NewOfferRepository(db.BunDB())

	bus := events.NewBus()
	defer bus.Close()

	tradingService := trading.NewService(cardRepo, listingRepo, offerRepo, bus)

	packSize := cfg.Packs.Size
	if packSize <= 0 {
		packSize = 5
	}
	generator := packs.NewGenerator(
		rand.New(rand.NewSource(time.Now().UnixNano())),
		rarity.DefaultTable,
		packs.DefaultCatalog,
		imageService,
		cardRepo,
	)

	if *starterPackUser != "" {
		start := time.Now()
		minted, err := generator.Open(ctx, *starterPackUser, packSize)
		logger.LogTrade("starter-pack", time.Since(start), err)
		if err != nil {
			os.Exit(-1)
		}
		for _, card := range minted {
			logger.LogSystem("Minted card",
				slog.String("owner", card.OwnerID),
				slog.String("breed", card.Breed),
				slog.String("rarity", card.Rarity.String()))
		}
		return
	}

	// Mirror domain events into the log until a delivery transport is attached.
	sub := bus.Subscribe()
	go func() {
		for ev := range sub.C {
			slog.Info("Domain event",
				slog.String("type", "trade"),
				slog.String("kind", string(ev.Kind)),
				slog.String("offer_id", ev.OfferID),
				slog.String("listing_id", ev.ListingID),
				slog.String("outcome", string(ev.Outcome)))
		}
	}()

	// Warm the public browse projection so the first reader hits the cache.
	if _, err := tradingService.BrowseListings(ctx, ""); err != nil {
		logger.LogError("Failed to warm listing cache", err)
	}

	logger.LogSystem("Trade engine is running. Press CTRL-C to exit.",
		slog.Int("pack_size", packSize))

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")
}
