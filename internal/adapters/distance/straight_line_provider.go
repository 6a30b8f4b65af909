package distance

import (
	"context"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/geo"
	"fleet-routing-service/internal/ports"
	"fmt"
)

// StraightLineProvider answers from great-circle distance and a fixed average speed.
// It is the degraded path when the road-network provider is unavailable.
type StraightLineProvider struct {
	metersPerSecond float64
}

func NewStraightLineProvider(speedKmh float64) *StraightLineProvider {
	if speedKmh <= 0 {
		speedKmh = 30
	}
	return &StraightLineProvider{metersPerSecond: speedKmh * 1000 / 3600}
}

func (s *StraightLineProvider) PairwiseDistances(_ context.Context, points []domain.GeoPoint) (ports.DistanceMatrix, error) {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("straight line distances: point %d: %w", i, err)
		}
	}

	m := zeroMatrix(len(points))
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			d := geo.DistanceMeters(points[i], points[j])
			r := ports.DistanceResult{DistanceMeters: d, DurationSeconds: d / s.metersPerSecond}
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m, nil
}
