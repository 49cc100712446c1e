package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisStore is a Store backed by a redigo connection pool.
type RedisStore struct {
	pool *redis.Pool
}

func NewRedisStore(pool *redis.Pool) *RedisStore {
	return &RedisStore{pool: pool}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SET", key, value, "PX", ttl.Milliseconds()); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	_, err = redis.String(redis.DoContext(conn, ctx, "SET", key, value, "NX", "PX", ttl.Milliseconds()))
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis add %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", redis.Args{}.AddFlat(keys)...); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
