package handlers

import (
	"context"
	"fleet-routing-service/internal/api/dto"
	"fleet-routing-service/internal/domain"
	"net/http"
)

type tripProximity interface {
	TripStates(ctx context.Context, tripID string) ([]domain.ProximityState, error)
	EndTrip(ctx context.Context, tripID string) error
}

// TripHandler serves /trips/{tripId}/proximity.
type TripHandler struct {
	Service tripProximity
}

func (h *TripHandler) Proximity(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}

	tripID := r.PathValue("tripId")

	if r.Method == http.MethodDelete {
		if err := h.Service.EndTrip(r.Context(), tripID); err != nil {
			writeServiceError(w, r, "end trip", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	states, err := h.Service.TripStates(r.Context(), tripID)
	if err != nil {
		writeServiceError(w, r, "trip states", err)
		return
	}

	res := dto.TripProximityResponse{
		TripID: tripID,
		States: make([]dto.ProximityStateResponse, 0, len(states)),
	}
	for _, st := range states {
		item := dto.ProximityStateResponse{
			StopID:             st.StopID,
			Phase:              string(st.Phase),
			LastDistanceMeters: st.LastDistanceMeters,
			LastSampleAt:       st.LastSampleAt,
		}
		if st.HasArrived() {
			at := st.ArrivedAt
			item.ArrivedAt = &at
		}
		if st.HasNotified() {
			at := st.NotifiedAt
			item.NotifiedAt = &at
		}
		res.States = append(res.States, item)
	}

	writeJSON(w, r, http.StatusOK, res)
}
