package geo

import (
	"fleet-routing-service/internal/domain"
	"math"
)

// Mean Earth radius in meters.
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle (haversine) distance between a and b.
// Inputs are expected to be validated upstream.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	if a == b {
		return 0
	}

	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h marginally above 1 for antipodal points.
	h = math.Min(1, h)

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathMeters sums the leg distances along points in order.
func PathMeters(points []domain.GeoPoint) float64 {
	total := 0.0
	for i := 0; i+1 < len(points); i++ {
		total += DistanceMeters(points[i], points[i+1])
	}
	return total
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
