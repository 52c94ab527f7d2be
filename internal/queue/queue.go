// Package queue implements a durable delayed job queue and the worker that drains it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoHandler is returned for jobs whose name has no registered handler.
var ErrNoHandler = errors.New("no handler registered for job")

// Job is one delayed unit of work.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Name, err)
	}
	return nil
}

// NewJob builds a job with a fresh id and the JSON encoding of payload.
func NewJob(name string, payload interface{}) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Job{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Queue is the producer side: schedule a job to run after delay.
type Queue interface {
	Enqueue(ctx context.Context, name string, payload interface{}, delay time.Duration) error
}

// Broker is the consumer side used by Worker.
type Broker interface {
	Queue
	// Claim leases up to max jobs due at now.
	Claim(ctx context.Context, now time.Time, max int) ([]Job, error)
	// Ack removes a finished job.
	Ack(ctx context.Context, job Job) error
	// Retry releases a failed job to run again after delay.
	Retry(ctx context.Context, job Job, delay time.Duration) error
}
