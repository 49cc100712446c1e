package database

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Redis I/O limits. The read timeout must outlast the queue's blocking pop
// and the broker's ping interval.
const (
	redisConnectTimeout = 2 * time.Second
	redisReadTimeout    = 5 * time.Second
	redisWriteTimeout   = 2 * time.Second
)

// NewRedisPool returns the connection pool shared by the cache store, the
// job queue and the broadcast broker.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     16,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr,
				redis.DialConnectTimeout(redisConnectTimeout),
				redis.DialReadTimeout(redisReadTimeout),
				redis.DialWriteTimeout(redisWriteTimeout),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// PingRedis verifies the pool can reach the server.
func PingRedis(ctx context.Context, pool *redis.Pool) error {
	conn, err := pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = redis.DoContext(conn, ctx, "PING")
	return err
}
