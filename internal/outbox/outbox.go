// Package outbox defers side effects of a database transaction until the
// transaction has committed.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/yukikurage/taskflow-api/internal/queue"
	"gorm.io/gorm"
)

// Box collects the jobs and hooks scheduled by one transaction.
type Box struct {
	jobs  []queue.Job
	hooks []func(ctx context.Context)
	err   error
}

// Enqueue schedules a job to be pushed after commit. An encoding failure
// rolls the transaction back.
func (b *Box) Enqueue(jobType string, payload any) {
	if b.err != nil {
		return
	}
	job, err := queue.NewJob(jobType, payload)
	if err != nil {
		b.err = err
		return
	}
	b.jobs = append(b.jobs, job)
}

// AfterCommit registers fn to run once the transaction has committed,
// before any job is pushed.
func (b *Box) AfterCommit(fn func(ctx context.Context)) {
	b.hooks = append(b.hooks, fn)
}

// Jobs returns the jobs scheduled so far.
func (b *Box) Jobs() []queue.Job {
	return b.jobs
}

// defaultFlushTimeout bounds the post-commit work done on the caller's
// goroutine.
const defaultFlushTimeout = time.Second

// Runner wraps gorm transactions with an outbox.
type Runner struct {
	db    *gorm.DB
	queue queue.Enqueuer
	log   *slog.Logger
	// flushTimeout bounds hooks and pushes together.
	flushTimeout time.Duration
}

func NewRunner(db *gorm.DB, q queue.Enqueuer, log *slog.Logger) *Runner {
	return &Runner{db: db, queue: q, log: log, flushTimeout: defaultFlushTimeout}
}

// DB returns the handle used outside transactions.
func (r *Runner) DB() *gorm.DB {
	return r.db
}

// Run executes fn in a transaction. After a successful commit it runs the
// registered hooks, then pushes the scheduled jobs. Push failures are
// logged, never returned, and the flush gives up after flushTimeout even if
// ctx is cancelled earlier or has no deadline. If fn fails nothing
// scheduled is executed.
func (r *Runner) Run(ctx context.Context, fn func(tx *gorm.DB, box *Box) error) error {
	box := &Box{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx, box); err != nil {
			return err
		}
		return box.err
	})
	if err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.flushTimeout)
	defer cancel()
	r.flush(flushCtx, box)
	return nil
}

func (r *Runner) flush(ctx context.Context, box *Box) {
	for _, hook := range box.hooks {
		hook(ctx)
	}
	for _, job := range box.jobs {
		if err := r.queue.Enqueue(ctx, job); err != nil {
			r.log.Warn("failed to enqueue job after commit", "job_id", job.ID, "type", job.Type, "error", err)
		}
	}
}
