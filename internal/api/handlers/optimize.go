package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fleet-routing-service/internal/api/dto"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fleet-routing-service/internal/ports"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/twpayne/go-polyline"
)

type routeOptimizer interface {
	Optimize(ctx context.Context, start domain.GeoPoint, stops []domain.RouteStop) (domain.OptimizedOrder, error)
}

// OptimizeHandler serves POST /routes/optimize.
type OptimizeHandler struct {
	Optimizer routeOptimizer
	// Cache is optional; only non-degraded results are stored.
	Cache ports.OptimizeCache
}

func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req dto.OptimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start, stops, err := toDomainRoute(req)
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	ctx := r.Context()
	key := cacheKey(req.CompanyID, start, stops)

	if h.Cache != nil {
		order, ok, err := h.Cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "optimize cache read failed", "req_id", obs.RequestID(ctx), "error", err)
		}
		if ok {
			writeJSON(w, r, http.StatusOK, toOptimizeResponse(req.RouteID, start, stops, order))
			return
		}
	}

	order, err := h.Optimizer.Optimize(ctx, start, stops)
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	if h.Cache != nil && !order.Degraded {
		if err := h.Cache.Set(ctx, key, order); err != nil {
			slog.WarnContext(ctx, "optimize cache write failed", "req_id", obs.RequestID(ctx), "error", err)
		}
	}

	writeJSON(w, r, http.StatusOK, toOptimizeResponse(req.RouteID, start, stops, order))
}

// toDomainRoute defaults a missing start point to the first listed stop.
func toDomainRoute(req dto.OptimizeRequest) (domain.GeoPoint, []domain.RouteStop, error) {
	stops := make([]domain.RouteStop, 0, len(req.Stops))
	for _, s := range req.Stops {
		kind := domain.StopKind(s.Kind)
		switch kind {
		case "", domain.StopKindPickup, domain.StopKindDropoff:
		default:
			return domain.GeoPoint{}, nil, fmt.Errorf("%w: stop %q has unknown kind %q", domain.ErrInvalidInput, s.ID, s.Kind)
		}
		stops = append(stops, domain.RouteStop{
			ID:    s.ID,
			Point: domain.GeoPoint{Latitude: s.Latitude, Longitude: s.Longitude},
			Kind:  kind,
		})
	}

	var start domain.GeoPoint
	switch {
	case req.StartPoint != nil:
		start = domain.GeoPoint{Latitude: req.StartPoint.Latitude, Longitude: req.StartPoint.Longitude}
	case len(stops) > 0:
		start = stops[0].Point
	}

	return start, stops, nil
}

// cacheKey fingerprints everything that influences the result.
func cacheKey(companyID string, start domain.GeoPoint, stops []domain.RouteStop) string {
	type keyStop struct {
		ID  string `json:"id"`
		Key string `json:"p"`
	}
	payload := struct {
		CompanyID string    `json:"c"`
		Start     string    `json:"s"`
		Stops     []keyStop `json:"x"`
	}{CompanyID: companyID, Start: start.Key(), Stops: make([]keyStop, 0, len(stops))}
	for _, s := range stops {
		payload.Stops = append(payload.Stops, keyStop{ID: s.ID, Key: s.Point.Key()})
	}

	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func toOptimizeResponse(routeID string, start domain.GeoPoint, stops []domain.RouteStop, order domain.OptimizedOrder) dto.OptimizeResponse {
	res := dto.OptimizeResponse{
		RouteID:              routeID,
		OptimizedOrder:       make([]dto.OrderedStopResponse, 0, len(order.Stops)),
		Degraded:             order.Degraded,
		TotalDistanceMeters:  order.TotalDistanceMeters,
		TotalDurationSeconds: order.TotalDurationSeconds,
	}

	byID := make(map[string]domain.GeoPoint, len(stops))
	for _, s := range stops {
		byID[s.ID] = s.Point
	}

	coords := make([][]float64, 0, 1+len(order.Stops))
	coords = append(coords, []float64{start.Latitude, start.Longitude})
	for _, s := range order.Stops {
		res.OptimizedOrder = append(res.OptimizedOrder, dto.OrderedStopResponse{StopID: s.StopID, Sequence: s.Sequence})
		p := byID[s.StopID]
		coords = append(coords, []float64{p.Latitude, p.Longitude})
	}

	if len(order.Stops) > 0 {
		res.Polyline = string(polyline.EncodeCoords(coords))
	}
	return res
}
