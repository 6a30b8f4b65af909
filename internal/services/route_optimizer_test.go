package services

import (
	"context"
	"errors"
	"fleet-routing-service/internal/adapters/distance"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/ports"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopIDs(order domain.OptimizedOrder) []string {
	ids := make([]string, 0, len(order.Stops))
	for _, s := range order.Stops {
		ids = append(ids, s.StopID)
	}
	return ids
}

func assertCompleteOrder(t *testing.T, stops []domain.RouteStop, order domain.OptimizedOrder) {
	t.Helper()
	require.Len(t, order.Stops, len(stops))

	want := make(map[string]bool, len(stops))
	for _, s := range stops {
		want[s.ID] = true
	}
	for i, s := range order.Stops {
		assert.Equal(t, i+1, s.Sequence)
		assert.True(t, want[s.StopID], "unexpected or repeated stop %q", s.StopID)
		delete(want, s.StopID)
	}
	assert.Empty(t, want)
}

func TestRouteOptimizerUsesProviderMatrix(t *testing.T) {
	hub := domain.GeoPoint{Latitude: 38.0675, Longitude: -120.5436}
	a := domain.GeoPoint{Latitude: 38.0880, Longitude: -120.4727}
	b := domain.GeoPoint{Latitude: 38.1391, Longitude: -120.4561}
	c := domain.GeoPoint{Latitude: 38.2555, Longitude: -120.3510}

	pairs := []distance.MockPair{
		{From: hub, To: a, Meters: 1000, Seconds: 300},
		{From: hub, To: b, Meters: 2000, Seconds: 600},
		{From: hub, To: c, Meters: 1500, Seconds: 450},
		{From: a, To: b, Meters: 800, Seconds: 240},
		{From: a, To: c, Meters: 700, Seconds: 210},
		{From: b, To: c, Meters: 900, Seconds: 270},
		{From: a, To: hub, Meters: 1000, Seconds: 300},
		{From: b, To: hub, Meters: 2000, Seconds: 600},
		{From: c, To: hub, Meters: 1500, Seconds: 450},
		{From: b, To: a, Meters: 800, Seconds: 240},
		{From: c, To: a, Meters: 700, Seconds: 210},
		{From: c, To: b, Meters: 900, Seconds: 270},
	}

	provider := distance.NewMockDistanceProvider(pairs)
	opt := NewRouteOptimizer(provider, distance.NewStraightLineProvider(30), DefaultOptimizerConfig())

	stops := []domain.RouteStop{
		{ID: "A", Point: a},
		{ID: "B", Point: b},
		{ID: "C", Point: c},
	}

	order, err := opt.Optimize(context.Background(), hub, stops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := stopIDs(order); fmt.Sprint(got) != "[A C B]" {
		t.Fatalf("order = %v, want [A C B]", got)
	}
	if order.Degraded {
		t.Fatalf("expected non-degraded result")
	}
	if order.TotalDurationSeconds != 780 {
		t.Fatalf("duration = %v, want 780", order.TotalDurationSeconds)
	}
	if order.TotalDistanceMeters != 2600 {
		t.Fatalf("distance = %v, want 2600", order.TotalDistanceMeters)
	}
}

func TestRouteOptimizerEquatorScenario(t *testing.T) {
	opt := NewRouteOptimizer(distance.NewStraightLineProvider(30), nil, DefaultOptimizerConfig())

	stops := []domain.RouteStop{
		{ID: "A", Point: domain.GeoPoint{Latitude: 0, Longitude: 1}},
		{ID: "B", Point: domain.GeoPoint{Latitude: 0, Longitude: 3}},
		{ID: "C", Point: domain.GeoPoint{Latitude: 0, Longitude: 2}},
	}

	order, err := opt.Optimize(context.Background(), domain.GeoPoint{}, stops)
	require.NoError(t, err)

	assert.Equal(t, []domain.OrderedStop{
		{StopID: "A", Sequence: 1},
		{StopID: "C", Sequence: 2},
		{StopID: "B", Sequence: 3},
	}, order.Stops)
	assert.False(t, order.Degraded)
	assert.InDelta(t, 3*111195, order.TotalDistanceMeters, 5)
}

func TestRouteOptimizerEmptyAndSingleStop(t *testing.T) {
	provider := distance.NewMockDistanceProvider(nil)
	opt := NewRouteOptimizer(provider, distance.NewStraightLineProvider(30), DefaultOptimizerConfig())

	empty, err := opt.Optimize(context.Background(), domain.GeoPoint{}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Stops)
	assert.NotNil(t, empty.Stops)
	assert.False(t, empty.Degraded)

	single, err := opt.Optimize(context.Background(), domain.GeoPoint{}, []domain.RouteStop{
		{ID: "only", Point: domain.GeoPoint{Latitude: 1, Longitude: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.OrderedStop{{StopID: "only", Sequence: 1}}, single.Stops)
	assert.False(t, single.Degraded)

	assert.Zero(t, provider.Calls(), "no distance lookup for fewer than two stops")
}

func TestRouteOptimizerTieBreaksOnStopID(t *testing.T) {
	opt := NewRouteOptimizer(distance.NewStraightLineProvider(30), nil, DefaultOptimizerConfig())

	// Both stops lie exactly one degree from the origin.
	stops := []domain.RouteStop{
		{ID: "north", Point: domain.GeoPoint{Latitude: 1, Longitude: 0}},
		{ID: "east", Point: domain.GeoPoint{Latitude: 0, Longitude: 1}},
	}

	first, err := opt.Optimize(context.Background(), domain.GeoPoint{}, stops)
	require.NoError(t, err)
	assert.Equal(t, []string{"east", "north"}, stopIDs(first))

	reversed := []domain.RouteStop{stops[1], stops[0]}
	second, err := opt.Optimize(context.Background(), domain.GeoPoint{}, reversed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRouteOptimizerFallsBackWhenProviderFails(t *testing.T) {
	provider := distance.NewMockDistanceProvider(nil)
	provider.Err = fmt.Errorf("%w: quota exceeded", domain.ErrProviderUnavailable)

	cfg := DefaultOptimizerConfig()
	cfg.ProviderRetries = 2
	opt := NewRouteOptimizer(provider, distance.NewStraightLineProvider(30), cfg)

	stops := []domain.RouteStop{
		{ID: "A", Point: domain.GeoPoint{Latitude: 0, Longitude: 1}},
		{ID: "B", Point: domain.GeoPoint{Latitude: 0, Longitude: 3}},
		{ID: "C", Point: domain.GeoPoint{Latitude: 0, Longitude: 2}},
	}

	order, err := opt.Optimize(context.Background(), domain.GeoPoint{}, stops)
	require.NoError(t, err)

	assert.True(t, order.Degraded)
	assertCompleteOrder(t, stops, order)
	assert.Equal(t, []string{"A", "C", "B"}, stopIDs(order))
	assert.Equal(t, 3, provider.Calls())
}

type blockingProvider struct{}

func (blockingProvider) PairwiseDistances(ctx context.Context, _ []domain.GeoPoint) (ports.DistanceMatrix, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRouteOptimizerTimeoutFallsBack(t *testing.T) {
	cfg := OptimizerConfig{ProviderTimeout: 20 * time.Millisecond, ProviderRetries: 0, TwoOptIterations: 50}
	opt := NewRouteOptimizer(blockingProvider{}, distance.NewStraightLineProvider(30), cfg)

	stops := []domain.RouteStop{
		{ID: "A", Point: domain.GeoPoint{Latitude: 0, Longitude: 1}},
		{ID: "B", Point: domain.GeoPoint{Latitude: 0, Longitude: 2}},
	}

	order, err := opt.Optimize(context.Background(), domain.GeoPoint{}, stops)
	require.NoError(t, err)
	assert.True(t, order.Degraded)
	assertCompleteOrder(t, stops, order)
}

type shortMatrixProvider struct{}

func (shortMatrixProvider) PairwiseDistances(context.Context, []domain.GeoPoint) (ports.DistanceMatrix, error) {
	return ports.DistanceMatrix{{}}, nil
}

func TestRouteOptimizerMalformedMatrixFallsBack(t *testing.T) {
	opt := NewRouteOptimizer(shortMatrixProvider{}, distance.NewStraightLineProvider(30), DefaultOptimizerConfig())

	stops := []domain.RouteStop{
		{ID: "A", Point: domain.GeoPoint{Latitude: 0, Longitude: 1}},
		{ID: "B", Point: domain.GeoPoint{Latitude: 0, Longitude: 2}},
	}

	order, err := opt.Optimize(context.Background(), domain.GeoPoint{}, stops)
	require.NoError(t, err)
	assert.True(t, order.Degraded)
}

func TestRouteOptimizerRejectsInvalidInput(t *testing.T) {
	provider := distance.NewMockDistanceProvider(nil)
	opt := NewRouteOptimizer(provider, distance.NewStraightLineProvider(30), DefaultOptimizerConfig())

	cases := map[string]struct {
		start domain.GeoPoint
		stops []domain.RouteStop
	}{
		"duplicate id": {stops: []domain.RouteStop{
			{ID: "A", Point: domain.GeoPoint{Latitude: 1}},
			{ID: "A", Point: domain.GeoPoint{Latitude: 2}},
		}},
		"empty id": {stops: []domain.RouteStop{
			{ID: "", Point: domain.GeoPoint{Latitude: 1}},
			{ID: "B", Point: domain.GeoPoint{Latitude: 2}},
		}},
		"latitude out of range": {stops: []domain.RouteStop{
			{ID: "A", Point: domain.GeoPoint{Latitude: 91}},
			{ID: "B", Point: domain.GeoPoint{Latitude: 2}},
		}},
		"NaN stop": {stops: []domain.RouteStop{
			{ID: "A", Point: domain.GeoPoint{Latitude: math.NaN()}},
			{ID: "B", Point: domain.GeoPoint{Latitude: 2}},
		}},
		"single NaN stop": {stops: []domain.RouteStop{
			{ID: "A", Point: domain.GeoPoint{Longitude: math.NaN()}},
		}},
		"bad start": {
			start: domain.GeoPoint{Longitude: 200},
			stops: []domain.RouteStop{{ID: "A"}, {ID: "B"}},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := opt.Optimize(context.Background(), tc.start, tc.stops)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
	assert.Zero(t, provider.Calls())
}

func TestRouteOptimizerSwapPass(t *testing.T) {
	start := domain.GeoPoint{Latitude: 10, Longitude: 10}
	x := domain.GeoPoint{Latitude: 10, Longitude: 11}
	y := domain.GeoPoint{Latitude: 10, Longitude: 12}

	// Greedy takes x first, but x -> y is far more expensive than y -> x.
	provider := distance.NewMockDistanceProvider([]distance.MockPair{
		{From: start, To: x, Meters: 10, Seconds: 1},
		{From: start, To: y, Meters: 11, Seconds: 1},
		{From: x, To: y, Meters: 100, Seconds: 10},
		{From: y, To: x, Meters: 5, Seconds: 1},
		{From: x, To: start, Meters: 10, Seconds: 1},
		{From: y, To: start, Meters: 11, Seconds: 1},
	})
	stops := []domain.RouteStop{{ID: "x", Point: x}, {ID: "y", Point: y}}

	improved, err := NewRouteOptimizer(provider, nil, DefaultOptimizerConfig()).Optimize(context.Background(), start, stops)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, stopIDs(improved))
	assert.Equal(t, 16.0, improved.TotalDistanceMeters)

	cfg := DefaultOptimizerConfig()
	cfg.TwoOptIterations = 0
	greedy, err := NewRouteOptimizer(provider, nil, cfg).Optimize(context.Background(), start, stops)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, stopIDs(greedy))
	assert.Equal(t, 110.0, greedy.TotalDistanceMeters)
}

func TestRouteOptimizerCompletenessAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	failing := distance.NewMockDistanceProvider(nil)
	failing.Err = domain.ErrProviderUnavailable

	healthy := NewRouteOptimizer(distance.NewStraightLineProvider(30), nil, DefaultOptimizerConfig())
	degraded := NewRouteOptimizer(failing, distance.NewStraightLineProvider(30), DefaultOptimizerConfig())

	for n := 2; n <= 30; n++ {
		stops := make([]domain.RouteStop, n)
		for i := range stops {
			stops[i] = domain.RouteStop{
				ID: fmt.Sprintf("s%02d", i),
				Point: domain.GeoPoint{
					Latitude:  38 + rng.Float64()/10,
					Longitude: -120.5 + rng.Float64()/10,
				},
			}
		}
		start := domain.GeoPoint{Latitude: 38.05, Longitude: -120.45}

		first, err := healthy.Optimize(context.Background(), start, stops)
		require.NoError(t, err)
		assertCompleteOrder(t, stops, first)

		second, err := healthy.Optimize(context.Background(), start, stops)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		fallback, err := degraded.Optimize(context.Background(), start, stops)
		require.NoError(t, err)
		assert.True(t, fallback.Degraded)
		assertCompleteOrder(t, stops, fallback)
		assert.Equal(t, stopIDs(first), stopIDs(fallback), "fallback uses the same straight-line metric")
	}
}
