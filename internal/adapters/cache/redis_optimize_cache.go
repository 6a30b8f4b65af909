package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptimizeCache stores optimization results as JSON under a prefixed key.
type RedisOptimizeCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisOptimizeCache(client *redis.Client, ttl time.Duration) *RedisOptimizeCache {
	return &RedisOptimizeCache{client: client, prefix: "fleet:optimize:", ttl: ttl}
}

func (c *RedisOptimizeCache) Get(ctx context.Context, key string) (_ domain.OptimizedOrder, _ bool, err error) {
	defer obs.Time(ctx, "optimize.cache.Get")(&err)

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OptimizedOrder{}, false, nil
	}
	if err != nil {
		return domain.OptimizedOrder{}, false, fmt.Errorf("get optimize cache: %w", err)
	}

	var order domain.OptimizedOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return domain.OptimizedOrder{}, false, fmt.Errorf("get optimize cache: decode: %w", err)
	}
	return order, true, nil
}

func (c *RedisOptimizeCache) Set(ctx context.Context, key string, order domain.OptimizedOrder) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("set optimize cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set optimize cache: %w", err)
	}
	return nil
}
