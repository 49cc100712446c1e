package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Name string `json:"name"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisQueue(t *testing.T) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()

	mr := miniredis.RunT(t)
	pool := &redis.Pool{
		MaxIdle: 4,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", mr.Addr())
		},
	}
	t.Cleanup(func() { pool.Close() })
	return mr, NewRedisQueue(pool, "jobs:test")
}

func TestNewJob_EncodesPayload(t *testing.T) {
	job, err := NewJob("greet", greeting{Name: "ada"})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "greet", job.Type)

	var got greeting
	require.NoError(t, job.Decode(&got))
	assert.Equal(t, "ada", got.Name)
}

func TestMemoryQueue_FIFOAndClose(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)

	first, _ := NewJob("a", nil)
	second, _ := NewJob("b", nil)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	assert.Equal(t, 2, q.Len())

	got, err := q.Reserve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Type)

	q.Close()
	assert.ErrorIs(t, q.Enqueue(ctx, first), ErrClosed)
}

func TestMemoryQueue_EnqueueRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)

	first, _ := NewJob("a", nil)
	second, _ := NewJob("b", nil)
	require.NoError(t, q.Enqueue(ctx, first))

	start := time.Now()
	assert.ErrorIs(t, q.Enqueue(ctx, second), ErrFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, q.Len())

	_, err := q.Reserve(ctx)
	require.NoError(t, err)
	assert.NoError(t, q.Enqueue(ctx, second))
}

func TestMemoryQueue_ReserveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewMemoryQueue(1).Reserve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisQueue_ReserveAck(t *testing.T) {
	ctx := context.Background()
	mr, q := newRedisQueue(t)

	job, err := NewJob("greet", greeting{Name: "grace"})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Reserve(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	processing, err := mr.List("jobs:test:processing")
	require.NoError(t, err)
	assert.Len(t, processing, 1)

	require.NoError(t, q.Ack(ctx, got))
	assert.False(t, mr.Exists("jobs:test:processing"))
}

func TestRedisQueue_RecoverRequeuesUnacked(t *testing.T) {
	ctx := context.Background()
	_, q := newRedisQueue(t)

	job, _ := NewJob("greet", greeting{Name: "linus"})
	require.NoError(t, q.Enqueue(ctx, job))
	_, err := q.Reserve(ctx)
	require.NoError(t, err)

	moved, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := q.Reserve(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
}

func TestWorker_DispatchesByType(t *testing.T) {
	q := NewMemoryQueue(8)
	w := NewWorker(q, discardLogger(), 2)

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 3)
	record := func(_ context.Context, job Job) error {
		var g greeting
		if err := job.Decode(&g); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, g.Name)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	w.Handle("greet", record)
	w.Handle("fail", func(context.Context, Job) error {
		done <- struct{}{}
		return errors.New("boom")
	})
	w.Handle("panic", func(context.Context, Job) error {
		defer func() { done <- struct{}{} }()
		panic("handler bug")
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for _, j := range []struct {
		typ     string
		payload any
	}{
		{"greet", greeting{Name: "ken"}},
		{"fail", nil},
		{"unknown", nil},
		{"panic", nil},
	} {
		job, err := NewJob(j.typ, j.payload)
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(ctx, job))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	cancel()
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ken"}, seen)
}
