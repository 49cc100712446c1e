package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handler executes one job. A returned error is logged and the job is
// still acknowledged; handlers that care about retries enqueue again.
type Handler func(ctx context.Context, job Job) error

// Worker pulls jobs from a Queue and dispatches them by type on a fixed
// number of goroutines.
type Worker struct {
	queue       Queue
	log         *slog.Logger
	concurrency int
	// retryDelay is the pause after a failed Reserve.
	retryDelay time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(q Queue, log *slog.Logger, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		log:         log,
		concurrency: concurrency,
		retryDelay:  time.Second,
		handlers:    make(map[string]Handler),
	}
}

// Handle registers h for jobType, replacing any previous handler.
func (w *Worker) Handle(jobType string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

func (w *Worker) handler(jobType string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[jobType]
	return h, ok
}

// Run processes jobs until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", "concurrency", w.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}

	err := g.Wait()
	w.log.Info("worker stopped")
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		job, err := w.queue.Reserve(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return err
			}
			w.log.Warn("failed to reserve job", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay):
			}
			continue
		}

		w.Process(ctx, job)

		// Ack on a detached context so a shutdown mid-job does not leave
		// finished work in the processing list.
		if err := w.queue.Ack(context.WithoutCancel(ctx), job); err != nil {
			w.log.Warn("failed to ack job", "job_id", job.ID, "type", job.Type, "error", err)
		}
	}
}

// Process runs the handler for job synchronously. It never panics.
func (w *Worker) Process(ctx context.Context, job Job) {
	h, ok := w.handler(job.Type)
	if !ok {
		w.log.Warn("no handler for job type", "job_id", job.ID, "type", job.Type)
		return
	}

	if err := w.safeCall(ctx, h, job); err != nil {
		w.log.Error("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		return
	}
	w.log.Debug("job done", "job_id", job.ID, "type", job.Type)
}

func (w *Worker) safeCall(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, job)
}
