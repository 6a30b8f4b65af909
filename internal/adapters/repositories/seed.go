package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fleet-routing-service/internal/domain"
	"fmt"
	"os"
	"strings"
)

type StopSeed struct {
	StopID   string  `json:"stopId"`
	Kind     string  `json:"kind"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Sequence int     `json:"sequence"`
}

type RouteSeed struct {
	RouteID string     `json:"routeId"`
	Name    string     `json:"name"`
	Stops   []StopSeed `json:"stops"`
}

type TripSeed struct {
	TripID    string `json:"tripId"`
	RouteID   string `json:"routeId"`
	VehicleID string `json:"vehicleId"`
}

type Seed struct {
	Routes []RouteSeed `json:"routes"`
	Trips  []TripSeed  `json:"trips"`
}

// ParseSeed decodes and validates demo routes and trips.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("seed: parse json: %w", err)
	}

	routes := make(map[string]struct{}, len(s.Routes))
	for i, r := range s.Routes {
		if strings.TrimSpace(r.RouteID) == "" {
			return nil, fmt.Errorf("seed: route at index %d: routeId cannot be empty", i+1)
		}
		if _, dup := routes[r.RouteID]; dup {
			return nil, fmt.Errorf("seed: duplicate routeId %q", r.RouteID)
		}
		routes[r.RouteID] = struct{}{}

		seqs := make(map[int]struct{}, len(r.Stops))
		ids := make(map[string]struct{}, len(r.Stops))
		for j, st := range r.Stops {
			if strings.TrimSpace(st.StopID) == "" {
				return nil, fmt.Errorf("seed: route %q stop %d: stopId cannot be empty", r.RouteID, j+1)
			}
			if _, dup := ids[st.StopID]; dup {
				return nil, fmt.Errorf("seed: route %q: duplicate stopId %q", r.RouteID, st.StopID)
			}
			ids[st.StopID] = struct{}{}

			if k := domain.StopKind(st.Kind); k != domain.StopKindPickup && k != domain.StopKindDropoff {
				return nil, fmt.Errorf("seed: route %q stop %q: invalid kind %q", r.RouteID, st.StopID, st.Kind)
			}
			if err := (domain.GeoPoint{Latitude: st.Lat, Longitude: st.Lon}).Validate(); err != nil {
				return nil, fmt.Errorf("seed: route %q stop %q: %w", r.RouteID, st.StopID, err)
			}
			if _, dup := seqs[st.Sequence]; dup || st.Sequence <= 0 {
				return nil, fmt.Errorf("seed: route %q stop %q: invalid sequence %d", r.RouteID, st.StopID, st.Sequence)
			}
			seqs[st.Sequence] = struct{}{}
		}
	}

	for i, t := range s.Trips {
		if strings.TrimSpace(t.TripID) == "" {
			return nil, fmt.Errorf("seed: trip at index %d: tripId cannot be empty", i+1)
		}
		if _, ok := routes[t.RouteID]; !ok {
			return nil, fmt.Errorf("seed: trip %q: unknown routeId %q", t.TripID, t.RouteID)
		}
	}

	return &s, nil
}

// SeedFromJSON populates the database with demo routes and trips from a JSON file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	s, err := ParseSeed(data)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range s.Routes {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO routes (route_id, name) VALUES ($1, $2)
		ON CONFLICT (route_id) DO UPDATE SET name = EXCLUDED.name;
		`, r.RouteID, r.Name); err != nil {
			return fmt.Errorf("seed: insert route_id=%q: %w", r.RouteID, err)
		}

		// Replace the stop list wholesale so resequenced seeds do not collide.
		if _, err := tx.ExecContext(ctx, `DELETE FROM route_stops WHERE route_id = $1;`, r.RouteID); err != nil {
			return fmt.Errorf("seed: clear stops route_id=%q: %w", r.RouteID, err)
		}

		for _, st := range r.Stops {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO route_stops (route_id, stop_id, kind, lat, lon, sequence)
			VALUES ($1, $2, $3, $4, $5, $6);
			`, r.RouteID, st.StopID, st.Kind, st.Lat, st.Lon, st.Sequence); err != nil {
				return fmt.Errorf("seed: insert stop route_id=%q stop_id=%q: %w", r.RouteID, st.StopID, err)
			}
		}
	}

	for _, t := range s.Trips {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO trips (trip_id, route_id, vehicle_id) VALUES ($1, $2, $3)
		ON CONFLICT (trip_id) DO UPDATE
		SET route_id = EXCLUDED.route_id,
			vehicle_id = EXCLUDED.vehicle_id;
		`, t.TripID, t.RouteID, t.VehicleID); err != nil {
			return fmt.Errorf("seed: insert trip_id=%q: %w", t.TripID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
