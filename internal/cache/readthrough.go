package cache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader reads the authoritative value. found=false is cached as a
// negative entry.
type Loader[T any] func(ctx context.Context) (value T, found bool, err error)

// ReadThrough coordinates cache population so that concurrent misses on
// the same key hit the backing store once per process, and once across
// processes while the populate lock is held.
type ReadThrough struct {
	store Store
	log   *slog.Logger
	group singleflight.Group

	jitter       time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
}

type Option func(*ReadThrough)

// WithJitter sets the upper bound of the random TTL extension.
func WithJitter(d time.Duration) Option {
	return func(r *ReadThrough) { r.jitter = d }
}

// WithPolling sets how often and how long a caller waits for another
// populator before computing the value itself.
func WithPolling(interval, maxWait time.Duration) Option {
	return func(r *ReadThrough) {
		r.pollInterval = interval
		r.maxWait = maxWait
	}
}

func NewReadThrough(store Store, log *slog.Logger, opts ...Option) *ReadThrough {
	r := &ReadThrough{
		store:        store,
		log:          log,
		jitter:       30 * time.Second,
		lockTTL:      2 * time.Second,
		pollInterval: 50 * time.Millisecond,
		maxWait:      time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *ReadThrough) Store() Store {
	return r.store
}

// Invalidate deletes keys, logging rather than returning backend failures.
func (r *ReadThrough) Invalidate(ctx context.Context, keys ...string) {
	if err := r.store.DeleteMany(ctx, keys...); err != nil {
		r.log.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

type fetched[T any] struct {
	value T
	found bool
}

// Fetch returns the cached value for key, populating it from load on a miss.
// Cache failures never surface; only load errors are returned.
func Fetch[T any](ctx context.Context, r *ReadThrough, key string, ttl time.Duration, load Loader[T]) (T, bool, error) {
	lookup, err := Get[T](ctx, r.store, key)
	if err != nil {
		r.log.Debug("cache read failed, reading store", "key", key, "error", err)
		return load(ctx)
	}
	switch lookup.State {
	case Hit:
		return lookup.Value, true, nil
	case NegativeHit:
		var zero T
		return zero, false, nil
	}

	// The flight outlives any single caller so one cancelled request does
	// not fail the others waiting on it.
	ch := r.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.maxWait+r.lockTTL)
		defer cancel()

		// A flight that finished between our read and Do already cached it.
		if again, err := Get[T](ctx, r.store, key); err == nil && again.State != Miss {
			return fetched[T]{value: again.Value, found: again.State == Hit}, nil
		}
		value, found, err := populate(ctx, r, key, ttl, load)
		if err != nil {
			return nil, err
		}
		return fetched[T]{value: value, found: found}, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, false, res.Err
		}
		v := res.Val.(fetched[T])
		return v.value, v.found, nil
	}
}

func populate[T any](ctx context.Context, r *ReadThrough, key string, ttl time.Duration, load Loader[T]) (T, bool, error) {
	lockKey := key + ":lock"

	acquired, err := r.store.Add(ctx, lockKey, []byte("1"), r.lockTTL)
	if err != nil {
		r.log.Debug("cache lock failed, reading store", "key", key, "error", err)
		return loadAndStore(ctx, r, key, ttl, load)
	}
	if acquired {
		defer r.Invalidate(context.WithoutCancel(ctx), lockKey)
		return loadAndStore(ctx, r, key, ttl, load)
	}

	deadline := time.NewTimer(r.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		case <-deadline.C:
			return loadAndStore(ctx, r, key, ttl, load)
		case <-ticker.C:
			lookup, err := Get[T](ctx, r.store, key)
			if err != nil {
				return loadAndStore(ctx, r, key, ttl, load)
			}
			switch lookup.State {
			case Hit:
				return lookup.Value, true, nil
			case NegativeHit:
				var zero T
				return zero, false, nil
			}
		}
	}
}

func loadAndStore[T any](ctx context.Context, r *ReadThrough, key string, ttl time.Duration, load Loader[T]) (T, bool, error) {
	value, found, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if err := Put(ctx, r.store, key, value, found, r.withJitter(ttl)); err != nil {
		r.log.Debug("cache write failed", "key", key, "error", err)
	}
	return value, found, nil
}

func (r *ReadThrough) withJitter(ttl time.Duration) time.Duration {
	if r.jitter <= 0 {
		return ttl
	}
	return ttl + rand.N(r.jitter)
}
