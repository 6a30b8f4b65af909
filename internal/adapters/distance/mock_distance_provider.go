package distance

import (
	"context"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/ports"
	"fmt"
	"sync/atomic"
)

type MockPair struct {
	From, To domain.GeoPoint
	Meters   float64
	Seconds  float64
}

// MockDistanceProvider serves a fixed table of directed legs.
// A missing leg, or a non-nil Err, fails the whole call.
type MockDistanceProvider struct {
	m     map[string]ports.DistanceResult
	Err   error
	calls atomic.Int32
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[p.From.Key()+"|"+p.To.Key()] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m}
}

// Calls reports how many times PairwiseDistances was invoked.
func (p *MockDistanceProvider) Calls() int { return int(p.calls.Load()) }

func (p *MockDistanceProvider) PairwiseDistances(ctx context.Context, points []domain.GeoPoint) (ports.DistanceMatrix, error) {
	p.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	if p.Err != nil {
		return nil, p.Err
	}

	out := zeroMatrix(len(points))
	for i, from := range points {
		for j, to := range points {
			if i == j || from.Key() == to.Key() {
				continue
			}
			r, ok := p.m[from.Key()+"|"+to.Key()]
			if !ok {
				return nil, fmt.Errorf("%w: missing pair %s -> %s", domain.ErrProviderUnavailable, from.Key(), to.Key())
			}
			out[i][j] = r
		}
	}

	return out, nil
}
