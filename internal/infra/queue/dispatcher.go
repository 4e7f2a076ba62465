package queue

import (
	"context"
	"fmt"
	"time"

	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/infra/metrics"
)

var _ adapter.Dispatcher = (*Dispatcher)(nil)

// Dispatcher enqueues a fresh job for the consumer.
type Dispatcher struct {
	broker Broker
}

func NewDispatcher(b Broker) *Dispatcher { return &Dispatcher{broker: b} }

func (d *Dispatcher) Dispatch(ctx context.Context, jobID string) error {
	if err := d.broker.Push(ctx, Message{JobID: jobID, EnqueuedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	metrics.IncQueue("pushed")
	return nil
}
