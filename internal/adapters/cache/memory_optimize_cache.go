package cache

import (
	"context"
	"fleet-routing-service/internal/domain"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryOptimizeCache keeps optimization results in process memory.
// Used when Redis is not configured.
type MemoryOptimizeCache struct {
	c *gocache.Cache
}

func NewMemoryOptimizeCache(ttl time.Duration) *MemoryOptimizeCache {
	return &MemoryOptimizeCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryOptimizeCache) Get(_ context.Context, key string) (domain.OptimizedOrder, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return domain.OptimizedOrder{}, false, nil
	}
	order := v.(domain.OptimizedOrder)
	// Hand out a private copy of the stop slice.
	order.Stops = append([]domain.OrderedStop(nil), order.Stops...)
	return order, true, nil
}

func (m *MemoryOptimizeCache) Set(_ context.Context, key string, order domain.OptimizedOrder) error {
	order.Stops = append([]domain.OrderedStop(nil), order.Stops...)
	m.c.SetDefault(key, order)
	return nil
}
