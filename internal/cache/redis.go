// Package cache holds rendered hierarchy projections in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	generationKey = "hierarchy:gen"
	defaultTTL    = 5 * time.Minute
)

// RedisCache stores projections under a generation number. Invalidate bumps
// the generation so every earlier entry becomes unreachable and expires on
// its own.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: "hierarchy:public:",
		ttl:    ttl,
	}
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) key(gen int64, scope string) string {
	return fmt.Sprintf("%s%d:%s", c.prefix, gen, scope)
}

// Get returns the cached payload for scope together with the generation it
// was looked up under. ok is false on a miss; the generation is still valid
// and is what a caller rebuilding the projection must hand back to Set.
func (c *RedisCache) Get(ctx context.Context, scope string) ([]byte, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	data, err := c.client.Get(ctx, c.key(gen, scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("read cached projection: %w", err)
	}
	return data, gen, true, nil
}

// Set stores payload for scope under gen, the generation observed before the
// payload was built. A projection built across an Invalidate lands under the
// old generation and is never served.
func (c *RedisCache) Set(ctx context.Context, gen int64, scope string, payload []byte) error {
	if err := c.client.Set(ctx, c.key(gen, scope), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached projection: %w", err)
	}
	return nil
}

// Invalidate drops every cached projection.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
