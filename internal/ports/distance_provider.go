package ports

import (
	"context"
	"fleet-routing-service/internal/domain"
)

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// DistanceMatrix holds pairwise results; m[i][j] is the leg from point i to point j.
type DistanceMatrix [][]DistanceResult

// Contract for retrieving travel distance and duration between locations.
// Implementations backed by an external service must report every failure
// wrapped in domain.ErrProviderUnavailable and must never substitute
// straight-line distance on their own.
type DistanceProvider interface {
	// Return the full pairwise matrix for the given points, in input order.
	PairwiseDistances(ctx context.Context, points []domain.GeoPoint) (DistanceMatrix, error)
}
