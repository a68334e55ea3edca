package cache

import (
	"context"
	"time"

	"github.com/ragetrade/vaultmetrics/pkg/redis"
)

// RedisStore keeps envelopes in a redis database, one SET EX per key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.client.Get(ctx, key)
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.SetEx(ctx, key, value, ttl)
}

// Flush clears the selected redis database.
func (s *RedisStore) Flush(ctx context.Context) error {
	return s.client.FlushDB(ctx)
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
