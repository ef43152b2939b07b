package cache

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/connection"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// RedisCache is the shared cache backed by a Redis server. It doubles as the
// connection.Capability for its own supervisor: connect and probe both ping
// the server, the client pool handles socket recovery on its own.
type RedisCache struct {
	client *redis.Client
}

var (
	_ Cache                 = (*RedisCache)(nil)
	_ connection.Capability = (*RedisCache)(nil)
)

// NewRedisCache creates a Redis-backed cache from the cache config section.
// No connection is attempted here; the supervisor drives DoConnect.
func NewRedisCache(cfg config.CacheConfig) *RedisCache {
	//nolint:exhaustruct
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{client: client}
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, errors.Newf(errors.ErrCodeCacheMiss, "key %s not found", key)
		}

		return nil, errors.Wrapf(errors.ErrCodeCacheUnavailable, err, "cache get %s failed", key)
	}

	return value, nil
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(errors.ErrCodeCacheUnavailable, err, "cache set %s failed", key)
	}

	return nil
}

// Keys implements Cache.
func (r *RedisCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := r.client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCacheUnavailable, err, "cache keys %s failed", prefix)
	}

	return keys, nil
}

// Name implements connection.Capability.
func (r *RedisCache) Name() string {
	return "cache"
}

// DoConnect implements connection.Capability.
func (r *RedisCache) DoConnect(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "redis ping failed", err)
	}

	return nil
}

// DoDisconnect implements connection.Capability.
func (r *RedisCache) DoDisconnect(_ context.Context) error {
	if err := r.client.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "redis close failed", err)
	}

	return nil
}

// ProbeAlive implements connection.Capability.
func (r *RedisCache) ProbeAlive(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeProbeFailed, "redis ping failed", err)
	}

	return nil
}
