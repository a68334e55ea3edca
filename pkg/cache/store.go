package cache

import (
	"context"
	"time"
)

// Store is the key-value backend the cache owns exclusively.
// Set replaces the whole value; ttl is the time left until the store may drop it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Flush(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
