package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/ports"
	"fmt"
	"net/http"
)

type matrixRequest struct {
	Locations [][]float64 `json:"locations"`
	Metrics   []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// fetchMatrix retrieves the full pairwise distance and duration matrix
// from the OpenRouteService matrix endpoint.
func (o *ORSDistanceProvider) fetchMatrix(
	ctx context.Context,
	points []domain.GeoPoint,
) (ports.DistanceMatrix, error) {
	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	locations := make([][]float64, 0, len(points))
	for _, p := range points {
		locations = append(locations, p.CoordsToList())
	}

	payload, err := json.Marshal(matrixRequest{
		Locations: locations,
		Metrics:   []string{"distance", "duration"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	n := len(points)
	if len(mr.Distances) != n || len(mr.Durations) != n {
		return nil, fmt.Errorf(
			"expected %d rows; got distances=%d durations=%d",
			n, len(mr.Distances), len(mr.Durations),
		)
	}

	out := make(ports.DistanceMatrix, n)
	for i := range n {
		if len(mr.Distances[i]) != n || len(mr.Durations[i]) != n {
			return nil, fmt.Errorf(
				"row %d length mismatch: distances=%d durations=%d expected=%d",
				i, len(mr.Distances[i]), len(mr.Durations[i]), n,
			)
		}

		out[i] = make([]ports.DistanceResult, n)
		for j := range n {
			meters, seconds := mr.Distances[i][j], mr.Durations[i][j]
			// ORS reports unroutable pairs as null.
			if meters == nil || seconds == nil {
				return nil, fmt.Errorf("matrix returned no route between points %d and %d", i, j)
			}
			out[i][j] = ports.DistanceResult{DistanceMeters: *meters, DurationSeconds: *seconds}
		}
	}

	return out, nil
}
