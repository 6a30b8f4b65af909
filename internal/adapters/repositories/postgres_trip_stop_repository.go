package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fmt"
)

// Postgres-backed implementation of the TripStopRepository port.
type PostgresTripStopRepository struct{ DB *sql.DB }

func NewPostgresTripStopRepository(db *sql.DB) *PostgresTripStopRepository {
	return &PostgresTripStopRepository{DB: db}
}

// Return the stops of the route a trip runs, ordered by sequence.
func (p *PostgresTripStopRepository) ListTripStops(ctx context.Context, tripID string) (_ []domain.RouteStop, err error) {
	defer obs.Time(ctx, "trips.ListTripStops")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres trip stop repository: DB is nil")
	}

	var routeID string
	err = p.DB.QueryRowContext(ctx, `SELECT route_id FROM trips WHERE trip_id = $1;`, tripID).Scan(&routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list trip stops trip=%q: %w", tripID, domain.ErrTripNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list trip stops trip=%q: query trips table: %w", tripID, err)
	}

	query := `
	SELECT
		stop_id,
		kind,
		lat,
		lon,
		sequence
	FROM route_stops
	WHERE route_id = $1
	ORDER BY sequence;
	`
	rows, err := p.DB.QueryContext(ctx, query, routeID)
	if err != nil {
		return nil, fmt.Errorf("list trip stops trip=%q: query route_stops table: %w", tripID, err)
	}
	defer rows.Close()

	stops := make([]domain.RouteStop, 0, 16)
	for rows.Next() {
		var s domain.RouteStop
		var kind string
		if err := rows.Scan(&s.ID, &kind, &s.Point.Latitude, &s.Point.Longitude, &s.Sequence); err != nil {
			return nil, fmt.Errorf("list trip stops: scan row: %w", err)
		}
		s.Kind = domain.StopKind(kind)
		stops = append(stops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trip stops: row iteration: %w", err)
	}

	return stops, nil
}
