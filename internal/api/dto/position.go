package dto

import "time"

type PositionRequest struct {
	TripID     string    `json:"tripId"`
	VehicleID  string    `json:"vehicleId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recordedAt"`
}

type PositionResponse struct {
	NotifiedStopIDs []string `json:"notifiedStopIds"`
}

type ProximityStateResponse struct {
	StopID             string     `json:"stopId"`
	Phase              string     `json:"phase"`
	LastDistanceMeters float64    `json:"lastDistanceMeters"`
	LastSampleAt       time.Time  `json:"lastSampleAt"`
	ArrivedAt          *time.Time `json:"arrivedAt"`
	NotifiedAt         *time.Time `json:"notifiedAt"`
}

type TripProximityResponse struct {
	TripID string                   `json:"tripId"`
	States []ProximityStateResponse `json:"states"`
}
