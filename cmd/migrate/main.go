package main

import (
	"log"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/database"
	"github.com/pageza/extended-accounts/backend/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalw("migration failed", "error", err)
	}
	logger.Infow("migrations applied", "driver", cfg.DBDriver)
}
