package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisContentCache is a ContentCache backed by Redis string keys.
type RedisContentCache struct {
	client *redis.Client
	prefix string
}

// NewRedisContentCache returns a cache that namespaces every key with prefix.
func NewRedisContentCache(client *redis.Client, prefix string) *RedisContentCache {
	return &RedisContentCache{client: client, prefix: prefix}
}

func (c *RedisContentCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisContentCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
