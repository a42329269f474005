package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used by the HTTP rate limiter.
type Store interface {
	// IncrementWithTTL bumps the counter for key. The window starts with the
	// first increment and is not extended by later ones. It returns the new
	// count and the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
