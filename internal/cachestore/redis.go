package cachestore

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a redis-backed implementation of Store for multi-instance
// deployments. A small TinyLFU local layer fronts redis; cross-process
// staleness is bounded by the TTL.
type RedisStore struct {
	data *cache.Cache
	ttl  time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the redis instance at redisURL and verifies the
// connection with a ping.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &RedisStore{
		data: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(10_000, ttl),
		}),
		ttl: ttl,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	var val string
	err := s.data.Get(ctx, cacheKey(name, key), &val)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, name, key, val string) error {
	return s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   cacheKey(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisStore) Purge(ctx context.Context, name, key string) error {
	err := s.data.Delete(ctx, cacheKey(name, key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
