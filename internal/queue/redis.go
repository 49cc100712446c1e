package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

// RedisQueue is a durable list-backed queue. Reserved jobs sit in a
// processing list until acknowledged, so a crashed worker's jobs can be
// put back with Recover. Delivery is at-least-once.
type RedisQueue struct {
	pool       *redis.Pool
	name       string
	processing string
	// blockSeconds bounds each BRPOPLPUSH so Reserve notices cancellation.
	blockSeconds int
}

func NewRedisQueue(pool *redis.Pool, name string) *RedisQueue {
	return &RedisQueue{
		pool:         pool,
		name:         name,
		processing:   name + ":processing",
		blockSeconds: 1,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "LPUSH", q.name, data); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Reserve(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		data, err := q.pop(ctx)
		if errors.Is(err, redis.ErrNil) {
			continue
		}
		if err != nil {
			return Job{}, err
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			// Drop the poison message so it is not recovered forever.
			_ = q.remove(ctx, data)
			return Job{}, fmt.Errorf("failed to decode job: %w", err)
		}
		job.raw = data
		return job, nil
	}
}

func (q *RedisQueue) pop(ctx context.Context) ([]byte, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	return redis.Bytes(redis.DoContext(conn, ctx, "BRPOPLPUSH", q.name, q.processing, q.blockSeconds))
}

func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	if job.raw == nil {
		return nil
	}
	return q.remove(ctx, job.raw)
}

func (q *RedisQueue) remove(ctx context.Context, data []byte) error {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "LREM", q.processing, 1, data); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Recover moves every job left in the processing list back onto the queue
// and returns how many were moved. Call it before starting workers.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	moved := 0
	for {
		_, err := redis.Bytes(redis.DoContext(conn, ctx, "RPOPLPUSH", q.processing, q.name))
		if errors.Is(err, redis.ErrNil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover jobs: %w", err)
		}
		moved++
	}
}

// Len reports the number of jobs waiting, excluding reserved ones.
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	return redis.Int(redis.DoContext(conn, ctx, "LLEN", q.name))
}
