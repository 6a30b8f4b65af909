package handlers

import (
	"context"
	"fleet-routing-service/internal/api/dto"
	"fleet-routing-service/internal/domain"
	"net/http"
)

type positionHandler interface {
	HandlePosition(ctx context.Context, sample domain.PositionSample) ([]string, error)
}

// PositionHandler serves POST /positions.
type PositionHandler struct {
	Service positionHandler
}

func (h *PositionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req dto.PositionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sample := domain.PositionSample{
		TripID:     req.TripID,
		VehicleID:  req.VehicleID,
		Point:      domain.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude},
		RecordedAt: req.RecordedAt,
	}

	notified, err := h.Service.HandlePosition(r.Context(), sample)
	if err != nil {
		writeServiceError(w, r, "ingest position", err)
		return
	}

	if notified == nil {
		notified = []string{}
	}
	writeJSON(w, r, http.StatusOK, dto.PositionResponse{NotifiedStopIDs: notified})
}
