package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/queue"
)

// DeleteUnconfirmedJob is the queue name of the unconfirmed-account cleanup.
const DeleteUnconfirmedJob = "delete_unconfirmed_accounts"

// UnconfirmedPayload is the body of a DeleteUnconfirmedJob.
type UnconfirmedPayload struct {
	Username string `json:"username"`
}

// UnconfirmedDeleter removes an account if it is still inactive.
type UnconfirmedDeleter interface {
	DeleteIfUnconfirmed(ctx context.Context, username string) error
}

// Sweeper schedules and runs the deletion of accounts that were never confirmed.
type Sweeper struct {
	queue queue.Queue
	cfg   config.SweeperConfig
	log   *zap.SugaredLogger
}

func NewSweeper(q queue.Queue, cfg config.SweeperConfig, log *zap.SugaredLogger) *Sweeper {
	if cfg.Delay <= 0 {
		cfg.Delay = config.DefaultSweeperDelay
	}
	return &Sweeper{queue: q, cfg: cfg, log: log}
}

// Schedule enqueues the cleanup of username. It does nothing while dispatch is disabled.
func (s *Sweeper) Schedule(ctx context.Context, username string) error {
	if !s.cfg.Dispatch || s.queue == nil {
		s.log.Debugw("sweeper dispatch disabled, not scheduling", "username", username)
		return nil
	}
	if err := s.queue.Enqueue(ctx, DeleteUnconfirmedJob, UnconfirmedPayload{Username: username}, s.cfg.Delay); err != nil {
		return fmt.Errorf("failed to schedule %s for %s: %w", DeleteUnconfirmedJob, username, err)
	}
	s.log.Debugw("scheduled unconfirmed account cleanup", "username", username, "delay", s.cfg.Delay)
	return nil
}

// HandleDeleteUnconfirmed runs one cleanup job. Missing or active accounts are not errors.
func (s *Sweeper) HandleDeleteUnconfirmed(ctx context.Context, accounts UnconfirmedDeleter, job queue.Job) error {
	var payload UnconfirmedPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if payload.Username == "" {
		s.log.Warnw("discarding cleanup job without username", "id", job.ID)
		return nil
	}
	return accounts.DeleteIfUnconfirmed(ctx, payload.Username)
}

// Register binds the cleanup handler on w.
func (s *Sweeper) Register(w *queue.Worker, accounts UnconfirmedDeleter) {
	w.Handle(DeleteUnconfirmedJob, func(ctx context.Context, job queue.Job) error {
		return s.HandleDeleteUnconfirmed(ctx, accounts, job)
	})
}
