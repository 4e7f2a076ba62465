// Package queue carries job ids from submission to processing with
// at-least-once delivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message is one request to process a job. Attempt counts prior failures.
type Message struct {
	JobID      string    `json:"jobId"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Delivery is a popped message. It stays in flight until acked or retried.
type Delivery struct {
	Message
	raw string
}

func NewDelivery(raw string) (*Delivery, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode queue message: %w", err)
	}
	return &Delivery{Message: m, raw: raw}, nil
}

// Raw is the encoded form used to locate the message in broker storage.
func (d *Delivery) Raw() string { return d.raw }

func Encode(m Message) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Broker is the storage side of the queue.
type Broker interface {
	Push(ctx context.Context, m Message) error
	// Pop blocks up to timeout. It returns nil, nil when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Retry removes d from flight and schedules next to become ready at at.
	Retry(ctx context.Context, d *Delivery, next Message, at time.Time) error
	// PromoteDue moves scheduled messages whose time has come back to ready.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// Requeue returns every in-flight message to ready. Called at startup.
	Requeue(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// ErrBrokerClosed is returned by MemoryBroker after Close.
var ErrBrokerClosed = errors.New("queue: broker closed")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
