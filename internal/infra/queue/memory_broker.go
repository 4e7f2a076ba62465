package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Broker = (*MemoryBroker)(nil)

type scheduled struct {
	at  time.Time
	raw string
}

// MemoryBroker is a process-local Broker for dev mode and tests.
type MemoryBroker struct {
	mu       sync.Mutex
	ready    []string
	inflight []string
	delayed  []scheduled
	signal   chan struct{}
	closed   bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{signal: make(chan struct{}, 1)}
}

func (b *MemoryBroker) wake() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *MemoryBroker) Push(ctx context.Context, m Message) error {
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now().UTC()
	}
	raw, err := Encode(m)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	b.ready = append(b.ready, raw)
	b.mu.Unlock()
	b.wake()
	return nil
}

func (b *MemoryBroker) Pop(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrBrokerClosed
		}
		if len(b.ready) > 0 {
			raw := b.ready[0]
			b.ready = b.ready[1:]
			b.inflight = append(b.inflight, raw)
			more := len(b.ready) > 0
			b.mu.Unlock()
			if more {
				b.wake()
			}
			return NewDelivery(raw)
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-b.signal:
		}
	}
}

func (b *MemoryBroker) removeInflight(raw string) {
	for i, r := range b.inflight {
		if r == raw {
			b.inflight = append(b.inflight[:i], b.inflight[i+1:]...)
			return
		}
	}
}

func (b *MemoryBroker) Ack(ctx context.Context, d *Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeInflight(d.raw)
	return nil
}

func (b *MemoryBroker) Retry(ctx context.Context, d *Delivery, next Message, at time.Time) error {
	raw, err := Encode(next)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeInflight(d.raw)
	b.delayed = append(b.delayed, scheduled{at: at, raw: raw})
	sort.SliceStable(b.delayed, func(i, j int) bool { return b.delayed[i].at.Before(b.delayed[j].at) })
	return nil
}

func (b *MemoryBroker) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	n := 0
	for n < len(b.delayed) && !b.delayed[n].at.After(now) {
		b.ready = append(b.ready, b.delayed[n].raw)
		n++
	}
	b.delayed = b.delayed[n:]
	b.mu.Unlock()
	if n > 0 {
		b.wake()
	}
	return n, nil
}

func (b *MemoryBroker) Requeue(ctx context.Context) (int, error) {
	b.mu.Lock()
	n := len(b.inflight)
	b.ready = append(b.ready, b.inflight...)
	b.inflight = nil
	b.mu.Unlock()
	if n > 0 {
		b.wake()
	}
	return n, nil
}

func (b *MemoryBroker) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return nil
}

func (b *MemoryBroker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wake()
}

// Len reports ready, in-flight and delayed counts.
func (b *MemoryBroker) Len() (ready, inflight, delayed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ready), len(b.inflight), len(b.delayed)
}
