package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps due times in a sorted set and job bodies in a hash.
// Claimed jobs move to a lease set; a lease that expires without an Ack is
// put back on the schedule, which gives at-least-once delivery.
type RedisQueue struct {
	client *redis.Client
	prefix string
	lease  time.Duration
}

// NewRedisQueue creates a queue whose keys live under prefix.
func NewRedisQueue(client *redis.Client, prefix string, lease time.Duration) *RedisQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &RedisQueue{client: client, prefix: prefix, lease: lease}
}

func (q *RedisQueue) scheduledKey() string { return q.prefix + ":scheduled" }
func (q *RedisQueue) leasedKey() string    { return q.prefix + ":leased" }
func (q *RedisQueue) jobsKey() string      { return q.prefix + ":jobs" }

func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload interface{}, delay time.Duration) error {
	job, err := NewJob(name, payload)
	if err != nil {
		return err
	}
	return q.schedule(ctx, job, time.Now().Add(delay))
}

func (q *RedisQueue) schedule(ctx context.Context, job Job, at time.Time) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobsKey(), job.ID, body)
	pipe.ZRem(ctx, q.leasedKey(), job.ID)
	pipe.ZAdd(ctx, q.scheduledKey(), redis.Z{Score: float64(at.UnixMilli()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}
	return nil
}

// claimScript requeues expired leases, then atomically moves due ids from
// the schedule to the lease set.
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return ids
`)

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, max int) ([]Job, error) {
	ids, err := claimScript.Run(ctx, q.client,
		[]string{q.scheduledKey(), q.leasedKey()},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(q.lease).UnixMilli(), 10),
		max,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	bodies, err := q.client.HMGet(ctx, q.jobsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	jobs := make([]Job, 0, len(ids))
	for i, body := range bodies {
		s, ok := body.(string)
		if !ok {
			// Body already acked by a concurrent worker.
			q.client.ZRem(ctx, q.leasedKey(), ids[i])
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("corrupt job %s: %w", ids[i], err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.leasedKey(), job.ID)
	pipe.HDel(ctx, q.jobsKey(), job.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	return q.schedule(ctx, job, time.Now().Add(delay))
}

// Pending reports how many jobs are scheduled or leased.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.HLen(ctx, q.jobsKey()).Result()
}
