package ports

import (
	"context"
	"fleet-routing-service/internal/domain"
)

// Boundary for the (tripId x stopId) -> ProximityState table.
// Callers serialize access per trip; implementations only need to be safe
// for concurrent use across different trips.
type ProximityStateStore interface {
	// Return all states recorded for a trip keyed by stop id.
	Load(ctx context.Context, tripID string) (map[string]domain.ProximityState, error)
	// Upsert the given states of one trip.
	Save(ctx context.Context, tripID string, states []domain.ProximityState) error
	// Drop every state of a finished trip.
	DeleteTrip(ctx context.Context, tripID string) error
}
