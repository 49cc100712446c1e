// Package cache provides the key/value stores behind read-through caching
// and the tri-state lookup used to tell a cached negative from a miss.
package cache

import (
	"context"
	"time"
)

// Store is the minimal cache backend contract.
type Store interface {
	// Get returns the raw value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Add stores value only if key is absent and reports whether it did.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// DeleteMany removes keys. Absent keys are ignored.
	DeleteMany(ctx context.Context, keys ...string) error
}
