package queue

import (
	"context"
	"errors"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/infra/metrics"
	"offer-ai-service/internal/infra/worker"
)

// Handler processes one job. Wrap an error with Permanent to skip retries.
type Handler func(ctx context.Context, jobID string) error

type ConsumerConfig struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 5 * time.Second
	}
	return c
}

// Backoff returns base * 2^attempt, capped at limit.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= limit || d <= 0 {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

// Consumer pops messages and runs them on a worker pool.
type Consumer struct {
	broker Broker
	pool   *worker.Pool
	handle Handler
	cfg    ConsumerConfig
	now    func() time.Time
	log    *zerolog.Logger
}

func NewConsumer(b Broker, pool *worker.Pool, h Handler, cfg ConsumerConfig, log *zerolog.Logger) *Consumer {
	return &Consumer{
		broker: b,
		pool:   pool,
		handle: h,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		log:    log,
	}
}

// Run blocks until ctx is done. Messages still in flight at shutdown are
// requeued by the next Run.
func (c *Consumer) Run(ctx context.Context) error {
	n, err := c.broker.Requeue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.IncQueueBy("requeued", n)
		c.log.Warn().Int("count", n).Msg("requeued in-flight messages from a previous run")
	}

	go c.sweep(ctx)
	c.log.Info().Int("max_attempts", c.cfg.MaxAttempts).Msg("queue consumer started")

	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("queue consumer stopping")
			return nil
		}
		d, err := c.broker.Pop(ctx, c.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrBrokerClosed) {
				return nil
			}
			c.log.Error().Err(err).Msg("queue pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.SweepInterval):
			}
			continue
		}
		if d == nil {
			continue
		}
		metrics.IncQueue("delivered")
		if err := c.pool.SubmitWait(ctx, func(ctx context.Context) error {
			c.deliver(ctx, d)
			return nil
		}); err != nil {
			return nil
		}
	}
}

func (c *Consumer) sweep(ctx context.Context) {
	t := jitterbug.New(c.cfg.SweepInterval, &jitterbug.Norm{Stdev: c.cfg.SweepInterval / 10})
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.broker.PromoteDue(ctx, c.now())
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error().Err(err).Msg("promote delayed messages failed")
				}
				continue
			}
			if n > 0 {
				c.log.Debug().Int("count", n).Msg("promoted delayed messages")
			}
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d *Delivery) {
	log := c.log.With().Str("job_id", d.JobID).Int("attempt", d.Attempt).Logger()

	err := c.handle(ctx, d.JobID)
	if err == nil {
		c.ack(ctx, d, &log)
		metrics.IncQueue("acked")
		return
	}

	if IsPermanent(err) || d.Attempt+1 >= c.cfg.MaxAttempts {
		log.Error().Err(err).Bool("permanent", IsPermanent(err)).Msg("dropping message after final attempt")
		c.ack(ctx, d, &log)
		metrics.IncQueue("dead")
		return
	}

	next := d.Message
	next.Attempt++
	delay := Backoff(c.cfg.BaseBackoff, c.cfg.MaxBackoff, d.Attempt)
	if rerr := c.broker.Retry(ctx, d, next, c.now().Add(delay)); rerr != nil {
		log.Error().Err(rerr).Msg("schedule retry failed; message stays in flight")
		return
	}
	metrics.IncQueue("retried")
	log.Warn().Err(err).Dur("delay", delay).Msg("job processing failed; retry scheduled")
}

func (c *Consumer) ack(ctx context.Context, d *Delivery, log *zerolog.Logger) {
	if err := c.broker.Ack(ctx, d); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}
