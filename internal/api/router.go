package api

import (
	"fleet-routing-service/internal/api/handlers"
	"fleet-routing-service/internal/ports"
	"fleet-routing-service/internal/services"
	"net/http"
	"net/netip"
	"time"
)

type Deps struct {
	Optimizer     *services.RouteOptimizer
	OptimizeCache ports.OptimizeCache
	Notifications *services.NotificationDecisionService

	RateLimitPerMinute int
	TrustedProxies     []netip.Prefix
	CORSOrigins        []string
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	optimizeHandler := &handlers.OptimizeHandler{
		Optimizer: d.Optimizer,
		Cache:     d.OptimizeCache,
	}
	positionHandler := &handlers.PositionHandler{Service: d.Notifications}
	tripHandler := &handlers.TripHandler{Service: d.Notifications}

	limiter := NewRateLimiter(d.RateLimitPerMinute, time.Minute, d.TrustedProxies)

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/routes/optimize", limiter.Middleware(http.HandlerFunc(optimizeHandler.Optimize)))
	mux.HandleFunc("/positions", positionHandler.Ingest)
	mux.HandleFunc("/trips/{tripId}/proximity", tripHandler.Proximity)

	return corsMiddleware(d.CORSOrigins)(requestIDMiddleware(loggingMiddleware(mux)))
}
