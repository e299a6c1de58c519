// Package cache provides a small key-value store abstraction used for
// token revocation and rate limiting. Two implementations exist: a
// Redis-backed store for deployments and an in-process store for tests
// and single-node development.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is a minimal TTL-aware key-value store.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Increment atomically increments the counter at key and returns the
	// new value. The ttl is applied only when the key is created.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
