package testutil

import (
	"context"
	"sync"

	"github.com/yukikurage/taskflow-api/internal/queue"
)

// RecordingQueue captures enqueued jobs for assertions.
type RecordingQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
	Err  error
}

func (q *RecordingQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// Jobs returns a copy of every job recorded.
func (q *RecordingQueue) Jobs() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Job(nil), q.jobs...)
}

// Types returns the type of each recorded job in order.
func (q *RecordingQueue) Types() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = job.Type
	}
	return out
}

// OfType returns the recorded jobs with the given type.
func (q *RecordingQueue) OfType(jobType string) []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Job
	for _, job := range q.jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

// Reset forgets every recorded job.
func (q *RecordingQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}
