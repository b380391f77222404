package templatecache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached templates across API instances. Entries carry
// no TTL; invalidation is explicit, matching the in-memory backend.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and verifies the connection.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: "ocgtpl:"}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "ocgtpl:"}
}

func (c *RedisCache) key(templateType string) string {
	return c.prefix + templateType
}

func (c *RedisCache) Get(ctx context.Context, templateType string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(templateType)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached template: %w", err)
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, templateType string, data []byte) error {
	if err := c.client.Set(ctx, c.key(templateType), data, 0).Err(); err != nil {
		return fmt.Errorf("cache template: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, templateType string) error {
	if err := c.client.Del(ctx, c.key(templateType)).Err(); err != nil {
		return fmt.Errorf("invalidate cached template: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
