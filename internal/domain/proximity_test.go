package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDefaultProximityConfigIsValid(t *testing.T) {
	if err := DefaultProximityConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProximityConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ProximityConfig)
	}{
		{"notify equals approach", func(c *ProximityConfig) { c.NotifyThresholdMeters = c.ApproachThresholdMeters }},
		{"arrival above notify", func(c *ProximityConfig) { c.ArrivalThresholdMeters = 400 }},
		{"reset inside approach", func(c *ProximityConfig) { c.ResetThresholdMeters = 700 }},
		{"reset equals approach", func(c *ProximityConfig) { c.ResetThresholdMeters = c.ApproachThresholdMeters }},
		{"zero arrival", func(c *ProximityConfig) { c.ArrivalThresholdMeters = 0 }},
		{"negative lookahead", func(c *ProximityConfig) { c.LookaheadStopCount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultProximityConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Validate() = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestGeoPointValidate(t *testing.T) {
	valid := []GeoPoint{{}, {Latitude: 90, Longitude: 180}, {Latitude: -90, Longitude: -180}}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Errorf("%+v: unexpected error: %v", p, err)
		}
	}

	invalid := []GeoPoint{
		{Latitude: 90.0001}, {Latitude: -91}, {Longitude: 180.5}, {Longitude: -200},
		{Latitude: math.NaN()}, {Longitude: math.NaN()},
		{Latitude: math.Inf(1)}, {Longitude: math.Inf(-1)},
	}
	for _, p := range invalid {
		if err := p.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%+v: Validate() = %v, want ErrInvalidInput", p, err)
		}
	}
}

func TestPositionSampleValidate(t *testing.T) {
	ok := PositionSample{TripID: "t1", Point: GeoPoint{Latitude: 1, Longitude: 1}, RecordedAt: time.Unix(10, 0)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noTrip := ok
	noTrip.TripID = ""
	if err := noTrip.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing trip: got %v", err)
	}

	nanPoint := ok
	nanPoint.Point.Longitude = math.NaN()
	if err := nanPoint.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NaN longitude: got %v", err)
	}

	noTime := ok
	noTime.RecordedAt = time.Time{}
	if err := noTime.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing recordedAt: got %v", err)
	}
}

func TestProximityStateHasArrived(t *testing.T) {
	s := NewProximityState("t1", "s1")
	if s.Phase != PhaseFar || s.HasArrived() {
		t.Fatalf("new state = %+v, want FAR and not arrived", s)
	}

	s.ArrivedAt = time.Unix(100, 0)
	if !s.HasArrived() {
		t.Fatal("expected HasArrived after ArrivedAt is set")
	}
}
