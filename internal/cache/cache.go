package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is the shared cache contract used to publish normalized ticks for
// other processes and to persist the gateway session token across restarts.
// The cache is optional: when unavailable the engine degrades to MemoryCache.
type Cache interface {
	// Get returns the value stored under key, or an ErrCodeCacheMiss error
	// when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A non-positive ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Keys returns all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Key joins a namespace prefix and key parts with ":".
func Key(prefix string, parts ...string) string {
	if prefix == "" {
		return strings.Join(parts, ":")
	}

	return prefix + ":" + strings.Join(parts, ":")
}
