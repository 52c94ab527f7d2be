package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

type scheduledJob struct {
	job Job
	at  time.Time
}

// MemoryQueue is an in-process Broker used by tests and single-binary setups.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   []scheduledJob
	leased map[string]Job
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{leased: make(map[string]Job)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, name string, payload interface{}, delay time.Duration) error {
	job, err := NewJob(name, payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, scheduledJob{job: job, at: time.Now().Add(delay)})
	return nil
}

func (q *MemoryQueue) Claim(ctx context.Context, now time.Time, max int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.SliceStable(q.jobs, func(i, j int) bool { return q.jobs[i].at.Before(q.jobs[j].at) })

	var out []Job
	rest := q.jobs[:0]
	for _, sj := range q.jobs {
		if len(out) < max && !sj.at.After(now) {
			out = append(out, sj.job)
			q.leased[sj.job.ID] = sj.job
			continue
		}
		rest = append(rest, sj)
	}
	q.jobs = rest
	return out, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.leased, job.ID)
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.leased, job.ID)
	q.jobs = append(q.jobs, scheduledJob{job: job, at: time.Now().Add(delay)})
	return nil
}

// Scheduled returns a snapshot of jobs waiting to run with their due times.
func (q *MemoryQueue) Scheduled() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	for i, sj := range q.jobs {
		out[i] = sj.job
	}
	return out
}

// DueAt returns when the job with id is scheduled to run.
func (q *MemoryQueue) DueAt(id string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, sj := range q.jobs {
		if sj.job.ID == id {
			return sj.at, true
		}
	}
	return time.Time{}, false
}
