package ports

import (
	"context"
	"time"
)

// ArrivalNotice is handed to the dispatch collaborator when a stop enters NOTIFIED.
type ArrivalNotice struct {
	TripID         string    `json:"tripId"`
	VehicleID      string    `json:"vehicleId"`
	StopID         string    `json:"stopId"`
	DistanceMeters float64   `json:"distanceMeters"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// Port: hands "your transport is arriving" decisions to whatever delivers them.
type ArrivalNotifier interface {
	NotifyArrival(ctx context.Context, notice ArrivalNotice) error
}
