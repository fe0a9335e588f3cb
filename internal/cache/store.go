// Package cache implements a stale-while-revalidate read-through cache over a
// byte-oriented key/value store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when the key is missing or expired.
var ErrNotFound = errors.New("cache: not found")

// Store is a byte key/value store with per-entry expiry. Implementations must
// be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pruner is implemented by stores that keep expired entries until removed.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}
