package api

import (
	"fleet-routing-service/internal/adapters/distance"
	"fleet-routing-service/internal/adapters/state"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/ports"
	"fleet-routing-service/internal/services"
)

func newOptimizer(provider ports.DistanceProvider) *services.RouteOptimizer {
	return services.NewRouteOptimizer(provider, distance.NewStraightLineProvider(30), services.DefaultOptimizerConfig())
}

func newNotifications(trips ports.TripStopRepository) (*services.NotificationDecisionService, error) {
	return services.NewNotificationDecisionService(state.NewMemoryStore(), trips, nil, domain.DefaultProximityConfig())
}
