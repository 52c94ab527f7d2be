package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/queue"
)

type greeting struct {
	Name string `json:"name"`
}

func TestMemoryQueue_DelayIsHonoured(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "greet", greeting{Name: "ann"}, time.Hour))

	jobs, err := q.Claim(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	jobs, err = q.Claim(ctx, time.Now().Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	var g greeting
	require.NoError(t, jobs[0].Decode(&g))
	assert.Equal(t, "ann", g.Name)
	assert.Empty(t, q.Scheduled())
}

func TestWorker_RunOnceDispatchesByName(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	w := queue.NewWorker(q, queue.WorkerConfig{}, zap.NewNop().Sugar())

	var seen []string
	w.Handle("greet", func(ctx context.Context, job queue.Job) error {
		var g greeting
		if err := job.Decode(&g); err != nil {
			return err
		}
		seen = append(seen, g.Name)
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, "greet", greeting{Name: "a"}, 0))
	require.NoError(t, q.Enqueue(ctx, "greet", greeting{Name: "b"}, 0))
	require.NoError(t, q.Enqueue(ctx, "greet", greeting{Name: "later"}, time.Hour))

	n, err := w.RunOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
	assert.Len(t, q.Scheduled(), 1)
}

func TestWorker_FailedJobIsRetriedThenDropped(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	w := queue.NewWorker(q, queue.WorkerConfig{MaxAttempts: 2, RetryBackoff: time.Minute}, zap.NewNop().Sugar())

	calls := 0
	w.Handle("flaky", func(ctx context.Context, job queue.Job) error {
		calls++
		return errors.New("boom")
	})
	require.NoError(t, q.Enqueue(ctx, "flaky", struct{}{}, 0))

	_, err := w.RunOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	scheduled := q.Scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, 1, scheduled[0].Attempts)

	_, err = w.RunOnce(ctx, time.Now().Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Empty(t, q.Scheduled())
}

func TestWorker_PanicIsRecovered(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	w := queue.NewWorker(q, queue.WorkerConfig{MaxAttempts: 1}, zap.NewNop().Sugar())
	w.Handle("explode", func(ctx context.Context, job queue.Job) error { panic("kaboom") })
	require.NoError(t, q.Enqueue(ctx, "explode", nil, 0))

	assert.NotPanics(t, func() {
		_, err := w.RunOnce(ctx, time.Now())
		assert.NoError(t, err)
	})
}

func TestWorker_UnknownJobIsNotLost(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	w := queue.NewWorker(q, queue.WorkerConfig{MaxAttempts: 3}, zap.NewNop().Sugar())
	require.NoError(t, q.Enqueue(ctx, "nobody_handles_this", nil, 0))

	_, err := w.RunOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, q.Scheduled(), 1)
}
