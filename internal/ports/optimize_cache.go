package ports

import (
	"context"
	"fleet-routing-service/internal/domain"
)

// Short-lived cache of optimization results keyed by request fingerprint.
type OptimizeCache interface {
	Get(ctx context.Context, key string) (domain.OptimizedOrder, bool, error)
	Set(ctx context.Context, key string, order domain.OptimizedOrder) error
}
