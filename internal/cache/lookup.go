package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// State distinguishes a cached value, a cached absence and a miss.
type State int

const (
	Miss State = iota
	Hit
	NegativeHit
)

func (s State) String() string {
	switch s {
	case Hit:
		return "hit"
	case NegativeHit:
		return "negative_hit"
	}
	return "miss"
}

// Lookup is the result of reading a typed entry.
type Lookup[T any] struct {
	State State
	Value T
}

type entry[T any] struct {
	Negative bool `json:"neg,omitempty"`
	Value    T    `json:"val"`
}

// Get decodes the entry stored under key.
func Get[T any](ctx context.Context, store Store, key string) (Lookup[T], error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return Lookup[T]{State: Miss}, err
	}

	var e entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		return Lookup[T]{State: Miss}, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if e.Negative {
		return Lookup[T]{State: NegativeHit}, nil
	}
	return Lookup[T]{State: Hit, Value: e.Value}, nil
}

// Put stores value under key, or a negative marker when found is false.
func Put[T any](ctx context.Context, store Store, key string, value T, found bool, ttl time.Duration) error {
	e := entry[T]{Negative: !found}
	if found {
		e.Value = value
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}
