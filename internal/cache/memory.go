package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process fallback used when the shared cache is
// disabled or unreachable. Same contract as RedisCache but visible only to
// this process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		mu:      sync.RWMutex{},
		entries: make(map[string]memoryEntry),
	}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeCacheMiss, "key %s not found", key)
	}

	if entry.expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()

		return nil, errors.Newf(errors.ErrCodeCacheMiss, "key %s not found", key)
	}

	return entry.value, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	m.mu.Unlock()

	return nil
}

// Keys implements Cache.
func (m *MemoryCache) Keys(_ context.Context, prefix string) ([]string, error) {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))

	for key, entry := range m.entries {
		if entry.expired(now) {
			continue
		}

		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
