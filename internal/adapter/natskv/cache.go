// Package natskv implements the cache port on a NATS JetStream KV bucket so
// router decisions are shared between orchestrator replicas.
package natskv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache stores values in one KV bucket. Expiry is the bucket's TTL.
type Cache struct {
	kv     jetstream.KeyValue
	prefix string
}

// New creates a cache over kv. Keys are stored under prefix, which may be empty.
func New(kv jetstream.KeyValue, prefix string) *Cache {
	return &Cache{kv: kv, prefix: prefix}
}

func (c *Cache) key(k string) string {
	// KV keys only allow [-/_=.a-zA-Z0-9].
	k = strings.NewReplacer(":", ".", " ", "_").Replace(k)
	if c.prefix == "" {
		return k
	}
	return c.prefix + "." + k
}

// Get returns the stored value. Missing and deleted keys are a miss.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores value. The per-entry ttl is ignored in favour of the bucket TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, c.key(key), value)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, c.key(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
