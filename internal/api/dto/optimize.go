package dto

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type StopRequest struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Kind      string  `json:"kind,omitempty"`
}

type OptimizeRequest struct {
	RouteID    string        `json:"routeId"`
	CompanyID  string        `json:"companyId,omitempty"`
	StartPoint *Point        `json:"startPoint,omitempty"`
	Stops      []StopRequest `json:"stops"`
}

type OrderedStopResponse struct {
	StopID   string `json:"stopId"`
	Sequence int    `json:"sequence"`
}

type OptimizeResponse struct {
	RouteID              string                `json:"routeId"`
	OptimizedOrder       []OrderedStopResponse `json:"optimizedOrder"`
	Degraded             bool                  `json:"degraded"`
	TotalDistanceMeters  float64               `json:"totalDistanceMeters"`
	TotalDurationSeconds float64               `json:"totalDurationSeconds"`
	Polyline             string                `json:"polyline"`
}
