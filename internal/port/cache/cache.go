// Package cache defines the byte cache used for routing decisions.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key. A miss is (nil, false, nil); errors are
// reserved for backend failures. Backends with their own expiry, such as a
// KV bucket TTL, may ignore ttl.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
