// Package cache defines the injected cache abstraction used for cross-request
// lookups such as tenant schema resolution. It replaces process-global maps
// so implementations can be swapped for a distributed cache or disabled in
// tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a minimal TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Noop is a Cache that stores nothing. Useful in tests and when Redis is
// unavailable.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }

func (Noop) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }

func (Noop) Invalidate(ctx context.Context, key string) error { return nil }
