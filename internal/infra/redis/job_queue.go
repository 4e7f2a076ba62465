package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"offer-ai-service/internal/infra/queue"
)

var _ queue.Broker = (*JobQueue)(nil)

// JobQueue is a reliable Redis list queue. Popped messages sit in an
// in-flight list until acked; retries wait in a sorted set scored by due time.
type JobQueue struct {
	cli      *redis.Client
	ready    string
	inflight string
	delayed  string
	batch    int
}

func NewJobQueue(c *redClient, prefix string) *JobQueue {
	if prefix == "" {
		prefix = "offer_jobs"
	}
	return &JobQueue{
		cli:      c.cli,
		ready:    prefix + ":ready",
		inflight: prefix + ":inflight",
		delayed:  prefix + ":delayed",
		batch:    100,
	}
}

func (q *JobQueue) Push(ctx context.Context, m queue.Message) error {
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now().UTC()
	}
	raw, err := queue.Encode(m)
	if err != nil {
		return err
	}
	return q.cli.LPush(ctx, q.ready, raw).Err()
}

func (q *JobQueue) Pop(ctx context.Context, timeout time.Duration) (*queue.Delivery, error) {
	raw, err := q.cli.BRPopLPush(ctx, q.ready, q.inflight, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d, err := queue.NewDelivery(raw)
	if err != nil {
		// poison message: drop it from flight so it is not requeued forever
		_ = q.cli.LRem(ctx, q.inflight, 1, raw).Err()
		return nil, err
	}
	return d, nil
}

func (q *JobQueue) Ack(ctx context.Context, d *queue.Delivery) error {
	return q.cli.LRem(ctx, q.inflight, 1, d.Raw()).Err()
}

func (q *JobQueue) Retry(ctx context.Context, d *queue.Delivery, next queue.Message, at time.Time) error {
	raw, err := queue.Encode(next)
	if err != nil {
		return err
	}
	_, err = q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.inflight, 1, d.Raw())
		p.ZAdd(ctx, q.delayed, &redis.Z{Score: float64(at.UnixMilli()), Member: raw})
		return nil
	})
	return err
}

var luaPromote = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call("ZREM", KEYS[1], m)
	redis.call("LPUSH", KEYS[2], m)
end
return #due`)

func (q *JobQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	n, err := luaPromote.Run(ctx, q.cli, []string{q.delayed, q.ready},
		strconv.FormatInt(now.UnixMilli(), 10), q.batch).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (q *JobQueue) Requeue(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.cli.RPopLPush(ctx, q.inflight, q.ready).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *JobQueue) Ping(ctx context.Context) error { return q.cli.Ping(ctx).Err() }
