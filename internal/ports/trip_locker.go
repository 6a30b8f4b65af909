package ports

import "context"

// Boundary for serializing work on one trip across processes that share a
// ProximityStateStore.
type TripLocker interface {
	// Block until the caller holds tripID or ctx ends; the returned func releases it.
	Lock(ctx context.Context, tripID string) (unlock func(), err error)
}
