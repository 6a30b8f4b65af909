package services

import (
	"context"
	"errors"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fleet-routing-service/internal/ports"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type OptimizerConfig struct {
	// Bound on a single provider call.
	ProviderTimeout time.Duration
	// Extra provider attempts after the first failure before falling back.
	ProviderRetries int
	// Cap on adjacent-swap improvement passes; 0 disables the pass.
	TwoOptIterations int
}

func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		ProviderTimeout:  8 * time.Second,
		ProviderRetries:  1,
		TwoOptIterations: 50,
	}
}

// RouteOptimizer orders a route's stops to approximately minimize travel distance.
//
// It asks the primary provider for the full pairwise matrix once per run. If
// that fails (after bounded retries) the whole run switches to the fallback
// provider and the result is marked degraded. Metrics are never mixed.
// The optimizer holds no per-call state and is safe for concurrent use.
type RouteOptimizer struct {
	provider ports.DistanceProvider
	fallback ports.DistanceProvider
	cfg      OptimizerConfig
}

func NewRouteOptimizer(provider, fallback ports.DistanceProvider, cfg OptimizerConfig) *RouteOptimizer {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultOptimizerConfig().ProviderTimeout
	}
	if cfg.ProviderRetries < 0 {
		cfg.ProviderRetries = 0
	}
	return &RouteOptimizer{provider: provider, fallback: fallback, cfg: cfg}
}

// Optimize returns a visiting order for stops starting from start.
// Sequence numbers in the result are exactly 1..len(stops).
func (o *RouteOptimizer) Optimize(
	ctx context.Context,
	start domain.GeoPoint,
	stops []domain.RouteStop,
) (_ domain.OptimizedOrder, err error) {
	defer obs.Time(ctx, "optimizer.Optimize")(&err)

	if err := validateStops(start, stops); err != nil {
		return domain.OptimizedOrder{}, fmt.Errorf("optimize route: %w", err)
	}

	switch len(stops) {
	case 0:
		return domain.OptimizedOrder{Stops: []domain.OrderedStop{}}, nil
	case 1:
		return domain.OptimizedOrder{
			Stops: []domain.OrderedStop{{StopID: stops[0].ID, Sequence: 1}},
		}, nil
	}

	points := make([]domain.GeoPoint, 0, 1+len(stops))
	points = append(points, start)
	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		points = append(points, s.Point)
		ids = append(ids, s.ID)
	}

	m, degraded, err := o.matrix(ctx, points)
	if err != nil {
		return domain.OptimizedOrder{}, fmt.Errorf("optimize route: %w", err)
	}

	order := nearestNeighborOrder(m, ids)
	if o.cfg.TwoOptIterations > 0 {
		adjacentSwapImprove(m, order, o.cfg.TwoOptIterations)
	}

	meters, seconds := pathTotals(m, order)

	out := domain.OptimizedOrder{
		Stops:                make([]domain.OrderedStop, 0, len(order)),
		TotalDistanceMeters:  meters,
		TotalDurationSeconds: seconds,
		Degraded:             degraded,
	}
	for i, k := range order {
		out.Stops = append(out.Stops, domain.OrderedStop{StopID: ids[k], Sequence: i + 1})
	}

	return out, nil
}

// matrix asks the primary provider, retrying transient failures, and falls back
// to the secondary provider for the whole run when it stays unavailable.
func (o *RouteOptimizer) matrix(ctx context.Context, points []domain.GeoPoint) (ports.DistanceMatrix, bool, error) {
	if o.provider != nil {
		var lastErr error
		for attempt := 0; attempt <= o.cfg.ProviderRetries; attempt++ {
			m, err := o.callProvider(ctx, o.provider, points)
			if err == nil {
				return m, false, nil
			}
			if errors.Is(err, domain.ErrInvalidInput) {
				return nil, false, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, ctxErr
			}
			lastErr = err
		}

		slog.WarnContext(ctx, "distance provider unavailable, using straight-line fallback",
			"req_id", obs.RequestID(ctx), "attempts", o.cfg.ProviderRetries+1, "error", lastErr)
	}

	if o.fallback == nil {
		return nil, false, fmt.Errorf("%w: no fallback provider configured", domain.ErrProviderUnavailable)
	}

	m, err := o.callProvider(ctx, o.fallback, points)
	if err != nil {
		return nil, false, fmt.Errorf("fallback distances: %w", err)
	}
	return m, true, nil
}

func (o *RouteOptimizer) callProvider(
	ctx context.Context,
	p ports.DistanceProvider,
	points []domain.GeoPoint,
) (ports.DistanceMatrix, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	m, err := p.PairwiseDistances(callCtx, points)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	if err := checkMatrix(m, len(points)); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	return m, nil
}

func checkMatrix(m ports.DistanceMatrix, n int) error {
	if len(m) != n {
		return fmt.Errorf("matrix has %d rows, want %d", len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("matrix row %d has %d columns, want %d", i, len(row), n)
		}
		for j, r := range row {
			if math.IsNaN(r.DistanceMeters) || r.DistanceMeters < 0 || math.IsNaN(r.DurationSeconds) || r.DurationSeconds < 0 {
				return fmt.Errorf("matrix entry [%d][%d] is invalid", i, j)
			}
		}
	}
	return nil
}

func validateStops(start domain.GeoPoint, stops []domain.RouteStop) error {
	if err := start.Validate(); err != nil {
		return fmt.Errorf("start point: %w", err)
	}

	seen := make(map[string]struct{}, len(stops))
	for i, s := range stops {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: stop %d has an empty id", domain.ErrInvalidInput, i+1)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate stop id %q", domain.ErrInvalidInput, s.ID)
		}
		seen[s.ID] = struct{}{}

		if err := s.Point.Validate(); err != nil {
			return fmt.Errorf("stop %q: %w", s.ID, err)
		}
	}
	return nil
}
