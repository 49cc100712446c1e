// Package queue carries background jobs from request handlers to workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned by Reserve once the queue has been closed.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned by Enqueue when a bounded queue has no room.
	ErrFull = errors.New("queue full")
)

// Job is one unit of background work. Payload is the JSON-encoded argument
// struct for the handler registered under Type.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// raw is the exact encoding stored by a durable queue, used to ack.
	raw []byte
}

// NewJob encodes payload into a job of the given type.
func NewJob(jobType string, payload any) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to encode %s payload: %w", jobType, err)
	}
	return Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Enqueuer accepts jobs for later execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Queue is the full contract consumed by Worker.
type Queue interface {
	Enqueuer
	// Reserve blocks until a job is available or ctx is done.
	Reserve(ctx context.Context) (Job, error)
	// Ack marks a reserved job as finished.
	Ack(ctx context.Context, job Job) error
}
