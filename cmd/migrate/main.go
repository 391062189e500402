package main

import (
	"database/sql"
	"errors"
	"log"
	"os"

	"estate-market-backend/internal/config"
	"estate-market-backend/internal/logger"

	"github.com/alecthomas/kingpin/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	app := kingpin.New("migrate", "Apply database schema migrations")
	configPath := app.Flag("config", "Path to configuration file").Short('c').Default("config/config.dev.yaml").String()
	source := app.Flag("source", "Migration source URL").Default("file://migrations").String()
	upCmd := app.Command("up", "Apply all pending migrations")
	downCmd := app.Command("down", "Roll back migrations")
	steps := downCmd.Flag("steps", "Number of migrations to roll back").Default("1").Int()
	versionCmd := app.Command("version", "Print the current schema version")
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("postgres.WithInstance: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		log.Fatalf("migrate.NewWithDatabaseInstance: %v", err)
	}

	before := currentVersion(m)

	switch cmd {
	case upCmd.FullCommand():
		err = m.Up()
	case downCmd.FullCommand():
		err = m.Steps(-*steps)
	case versionCmd.FullCommand():
		logger.Info("Migration status", "version", before)
		return
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("%s: %v", cmd, err)
	}

	logger.Info("Migration status", "command", cmd, "preMigrationVersion", before, "postMigrationVersion", currentVersion(m))
}

func currentVersion(m *migrate.Migrate) uint {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0
	}
	if err != nil {
		log.Fatalf("m.Version: %v", err)
	}
	if dirty {
		logger.Warn("Schema is dirty, fix the failed migration and force its version", "version", version)
	}
	return version
}
