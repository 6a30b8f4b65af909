package services

import (
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/geo"
)

// EvaluateProximity advances one (trip, stop) state for a new position sample.
//
// The second result is true only on the APPROACHING -> NOTIFIED transition,
// which happens once per approach episode. A sample older than the state's
// last sample leaves the state untouched. Moving beyond the reset threshold
// returns any phase to FAR; otherwise transitions cascade within one sample,
// so a sparse feed that jumps from far away to the stop still notifies once.
func EvaluateProximity(
	state domain.ProximityState,
	sample domain.PositionSample,
	stop domain.RouteStop,
	cfg domain.ProximityConfig,
) (domain.ProximityState, bool) {
	if !state.LastSampleAt.IsZero() && sample.RecordedAt.Before(state.LastSampleAt) {
		return state, false
	}

	d := geo.DistanceMeters(sample.Point, stop.Point)

	next := state
	next.TripID = sample.TripID
	next.StopID = stop.ID
	next.LastDistanceMeters = d
	next.LastSampleAt = sample.RecordedAt
	if next.Phase == "" {
		next.Phase = domain.PhaseFar
	}

	if d > cfg.ResetThresholdMeters {
		next.Phase = domain.PhaseFar
		return next, false
	}

	notify := false

	if next.Phase == domain.PhaseFar && d <= cfg.ApproachThresholdMeters {
		next.Phase = domain.PhaseApproaching
	}
	if next.Phase == domain.PhaseApproaching && d <= cfg.NotifyThresholdMeters {
		next.Phase = domain.PhaseNotified
		next.NotifiedAt = sample.RecordedAt
		notify = true
	}
	if next.Phase == domain.PhaseNotified && d <= cfg.ArrivalThresholdMeters {
		next.Phase = domain.PhaseArrived
		if next.ArrivedAt.IsZero() {
			next.ArrivedAt = sample.RecordedAt
		}
	}
	if next.Phase == domain.PhaseArrived && d > cfg.NotifyThresholdMeters {
		next.Phase = domain.PhaseDeparted
	}

	return next, notify
}
