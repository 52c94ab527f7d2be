package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Handler processes one job. Returning an error schedules a retry.
type Handler func(ctx context.Context, job Job) error

// WorkerConfig tunes polling and retries.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Worker drains a Broker, dispatching jobs to handlers by name.
type Worker struct {
	broker   Broker
	handlers map[string]Handler
	cfg      WorkerConfig
	log      *zap.SugaredLogger
}

// NewWorker creates a worker with sane defaults for zero config values.
func NewWorker(broker Broker, cfg WorkerConfig, log *zap.SugaredLogger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	return &Worker{broker: broker, handlers: make(map[string]Handler), cfg: cfg, log: log}
}

// Handle registers h for jobs called name.
func (w *Worker) Handle(name string, h Handler) {
	w.handlers[name] = h
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Infow("queue worker started", "poll_interval", w.cfg.PollInterval)
	for {
		if _, err := w.RunOnce(ctx, time.Now()); err != nil {
			w.log.Errorw("queue poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			w.log.Infow("queue worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims and processes every job due at now, returning how many ran.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) (int, error) {
	processed := 0
	for {
		jobs, err := w.broker.Claim(ctx, now, w.cfg.BatchSize)
		if err != nil {
			return processed, err
		}
		if len(jobs) == 0 {
			return processed, nil
		}
		for _, job := range jobs {
			w.process(ctx, job)
			processed++
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	err := w.dispatch(ctx, job)
	if err == nil {
		if ackErr := w.broker.Ack(ctx, job); ackErr != nil {
			w.log.Warnw("failed to ack job", "job", job.Name, "id", job.ID, "error", ackErr)
		}
		return
	}

	job.Attempts++
	if job.Attempts >= w.cfg.MaxAttempts {
		w.log.Errorw("job failed permanently", "job", job.Name, "id", job.ID, "attempts", job.Attempts, "error", err)
		_ = w.broker.Ack(ctx, job)
		return
	}
	delay := w.cfg.RetryBackoff * time.Duration(job.Attempts)
	w.log.Warnw("job failed, retrying", "job", job.Name, "id", job.ID, "attempts", job.Attempts, "retry_in", delay, "error", err)
	if retryErr := w.broker.Retry(ctx, job, delay); retryErr != nil {
		w.log.Errorw("failed to reschedule job", "job", job.Name, "id", job.ID, "error", retryErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, job Job) (err error) {
	h, ok := w.handlers[job.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, job.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return h(ctx, job)
}
