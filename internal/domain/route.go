package domain

// StopKind tells whether passengers board or leave at a stop.
type StopKind string

const (
	StopKindPickup  StopKind = "pickup"
	StopKindDropoff StopKind = "dropoff"
)

// Represents a single pickup or drop-off point on a route.
// Sequence is 1-based and only ever assigned from a RouteOptimizer result.
type RouteStop struct {
	ID       string
	Point    GeoPoint
	Kind     StopKind
	Sequence int
}

// One entry of an optimized visiting order.
type OrderedStop struct {
	StopID   string
	Sequence int
}

// Represents the visiting order produced by a single optimization run.
// It is created fresh for every request and never mutated afterwards.
// Degraded is set when straight-line distance replaced the routing provider.
type OptimizedOrder struct {
	Stops                []OrderedStop
	TotalDistanceMeters  float64
	TotalDurationSeconds float64
	Degraded             bool
}
