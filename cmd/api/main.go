package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/api"
	"github.com/pageza/extended-accounts/backend/internal/app"
	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/router"
	"github.com/pageza/extended-accounts/backend/internal/server"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	handler := router.SetupRouter(api.Deps{
		DB:          a.DB,
		Redis:       a.Redis,
		Accounts:    a.Accounts,
		Images:      a.Images,
		Auth:        a.Auth,
		Mailer:      a.Mailer,
		FrontendURL: cfg.FrontendURL,
		Logger:      logger,
	}, cfg.FrontendURL)

	if err := server.New(cfg, handler, logger).Run(ctx); err != nil {
		logger.Fatalw("server error", "error", err)
	}
	logger.Info("server stopped")
}
