package queue

import (
	"context"
	"sync"
)

// MemoryQueue is a buffered in-process queue. Jobs are lost on restart.
// Enqueue never waits for room; a full buffer rejects the job.
type MemoryQueue struct {
	jobs      chan Job
	closeOnce sync.Once
	done      chan struct{}
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs: make(chan Job, size),
		done: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

func (q *MemoryQueue) Reserve(ctx context.Context) (Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-q.done:
		return Job{}, ErrClosed
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(context.Context, Job) error {
	return nil
}

// Len reports the number of jobs waiting.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Close stops Reserve and rejects new jobs.
func (q *MemoryQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
