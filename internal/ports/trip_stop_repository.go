package ports

import (
	"context"
	"fleet-routing-service/internal/domain"
)

// Port: read access to the stops of the route a trip is running.
type TripStopRepository interface {
	// Return the trip's stops ordered by sequence.
	// Returns domain.ErrTripNotFound when the trip does not exist.
	ListTripStops(ctx context.Context, tripID string) ([]domain.RouteStop, error)
}
