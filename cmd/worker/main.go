package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/app"
	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/queue"
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

	worker := queue.NewWorker(a.Queue, queue.WorkerConfig{PollInterval: cfg.Sweeper.PollInterval}, logger)
	a.Sweeper.Register(worker, a.Accounts)

	if err := worker.Run(ctx); err != nil {
		logger.Fatalw("worker failed", "error", err)
	}
}
