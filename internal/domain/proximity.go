package domain

import (
	"fmt"
	"time"
)

// Phase is the approach state of a vehicle relative to one stop.
type Phase string

const (
	PhaseFar         Phase = "FAR"
	PhaseApproaching Phase = "APPROACHING"
	PhaseNotified    Phase = "NOTIFIED"
	PhaseArrived     Phase = "ARRIVED"
	PhaseDeparted    Phase = "DEPARTED"
)

// ProximityState tracks one (trip, stop) pair.
// ArrivedAt is set the first time the vehicle reaches the stop and survives
// later resets, so an arrived stop leaves the evaluation window for good.
// NotifiedAt records the latest notification and also survives resets.
type ProximityState struct {
	TripID             string    `json:"tripId"`
	StopID             string    `json:"stopId"`
	Phase              Phase     `json:"phase"`
	LastDistanceMeters float64   `json:"lastDistanceMeters"`
	LastSampleAt       time.Time `json:"lastSampleAt"`
	ArrivedAt          time.Time `json:"arrivedAt,omitzero"`
	NotifiedAt         time.Time `json:"notifiedAt,omitzero"`
}

// NewProximityState returns the initial FAR state for a pair.
func NewProximityState(tripID, stopID string) ProximityState {
	return ProximityState{TripID: tripID, StopID: stopID, Phase: PhaseFar}
}

// HasArrived reports whether the vehicle ever reached the stop on this trip.
func (s ProximityState) HasArrived() bool { return !s.ArrivedAt.IsZero() }

// HasNotified reports whether a notification was ever issued for the stop.
func (s ProximityState) HasNotified() bool { return !s.NotifiedAt.IsZero() }

// Passed reports whether the vehicle is done with the stop: it arrived, or it
// was notified and has since moved beyond the reset threshold without a
// sample landing inside the arrival radius.
func (s ProximityState) Passed() bool {
	return s.HasArrived() || (s.HasNotified() && s.Phase == PhaseFar)
}

// PositionSample is a single vehicle position report. It is never persisted here.
type PositionSample struct {
	TripID     string
	VehicleID  string
	Point      GeoPoint
	RecordedAt time.Time
}

// Validate checks identifiers and coordinates.
func (s PositionSample) Validate() error {
	if s.TripID == "" {
		return fmt.Errorf("%w: tripId must be non-empty", ErrInvalidInput)
	}
	if s.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recordedAt must be set", ErrInvalidInput)
	}
	return s.Point.Validate()
}

// ProximityConfig holds the hysteresis thresholds used by the tracker.
type ProximityConfig struct {
	ApproachThresholdMeters float64
	NotifyThresholdMeters   float64
	ArrivalThresholdMeters  float64
	ResetThresholdMeters    float64
	LookaheadStopCount      int
}

func DefaultProximityConfig() ProximityConfig {
	return ProximityConfig{
		ApproachThresholdMeters: 800,
		NotifyThresholdMeters:   300,
		ArrivalThresholdMeters:  50,
		ResetThresholdMeters:    1000,
		LookaheadStopCount:      1,
	}
}

// Validate enforces arrival < notify < approach < reset.
func (c ProximityConfig) Validate() error {
	if c.ArrivalThresholdMeters <= 0 {
		return fmt.Errorf("%w: arrival threshold must be positive, got %v", ErrInvalidInput, c.ArrivalThresholdMeters)
	}
	if c.ArrivalThresholdMeters >= c.NotifyThresholdMeters {
		return fmt.Errorf("%w: arrival threshold (%v) must be < notify threshold (%v)",
			ErrInvalidInput, c.ArrivalThresholdMeters, c.NotifyThresholdMeters)
	}
	if c.NotifyThresholdMeters >= c.ApproachThresholdMeters {
		return fmt.Errorf("%w: notify threshold (%v) must be < approach threshold (%v)",
			ErrInvalidInput, c.NotifyThresholdMeters, c.ApproachThresholdMeters)
	}
	if c.ResetThresholdMeters <= c.ApproachThresholdMeters {
		return fmt.Errorf("%w: reset threshold (%v) must be > approach threshold (%v)",
			ErrInvalidInput, c.ResetThresholdMeters, c.ApproachThresholdMeters)
	}
	if c.LookaheadStopCount < 0 {
		return fmt.Errorf("%w: lookahead stop count must be >= 0, got %d", ErrInvalidInput, c.LookaheadStopCount)
	}
	return nil
}
