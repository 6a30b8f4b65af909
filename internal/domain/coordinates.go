package domain

import (
	"fmt"
	"math"
)

// GeoPoint is an immutable WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Validate rejects coordinates outside the WGS84 range, NaN and infinities included.
func (p GeoPoint) Validate() error {
	if !isFinite(p.Latitude) || !isFinite(p.Longitude) {
		return fmt.Errorf("%w: coordinates must be finite, got (%v, %v)", ErrInvalidInput, p.Latitude, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidInput, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidInput, p.Longitude)
	}
	return nil
}

// Return coordinates as [lon, lat] for external API compatibility.
func (p GeoPoint) CoordsToList() []float64 { return []float64{p.Longitude, p.Latitude} }

// Key returns a stable cache key rounded to ~0.1m.
func (p GeoPoint) Key() string { return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude) }

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
