package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a redis-backed implementation of Store for multi-instance
// deployments. Entries expire with the session TTL so abandoned sessions
// do not accumulate.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the redis instance at redisURL and verifies
// the connection with a ping. ttl bounds the lifetime of session entries.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &RedisStore{client: rdb, ttl: ttl}, nil
}

func redisSessionKey(sessionID, key string) string {
	return "session/" + sessionID + "/" + key
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, redisSessionKey(sessionID, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key string, val []byte) error {
	return s.client.Set(ctx, redisSessionKey(sessionID, key), val, s.ttl).Err()
}

// Close closes the underlying redis client.
func (s *RedisStore) Close() error { return s.client.Close() }
