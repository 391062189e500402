package main

import (
	"context"
	"database/sql"
	"log"

	"estate-market-backend/internal/config"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository/postgres"
	"estate-market-backend/internal/seed"

	"github.com/alecthomas/kingpin/v2"
	_ "github.com/lib/pq"
)

func main() {
	configPath := kingpin.Flag("config", "Path to configuration file").Short('c').Default("config/config.dev.yaml").String()
	fixtures := kingpin.Flag("fixtures", "Path to the seed fixture file").Short('f').Default("config/seed.dev.yaml").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	data, err := seed.ReadFile(*fixtures)
	if err != nil {
		log.Fatalf("Failed to read fixtures: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	store := postgres.NewStore(db)
	res, err := seed.NewSeeder(store.UserRepository, store.PropertyRepository).Apply(ctx, data)
	if err != nil {
		logger.Error("Seeding failed", "error", err)
		log.Fatalf("Seeding failed: %v", err)
	}
	logger.Info("Fixtures loaded",
		"users_created", res.UsersCreated,
		"users_existing", res.UsersExisting,
		"properties_created", res.PropertiesCreated,
	)
}
