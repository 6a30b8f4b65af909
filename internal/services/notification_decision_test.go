package services

import (
	"context"
	"errors"
	"fleet-routing-service/internal/adapters/state"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/geo"
	"fleet-routing-service/internal/ports"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three stops 2 km apart along a meridian.
var tripStops = []domain.RouteStop{
	{ID: "C", Point: pointSouthOf(testStop.Point, -4000), Sequence: 3},
	{ID: "A", Point: testStop.Point, Sequence: 1},
	{ID: "B", Point: pointSouthOf(testStop.Point, -2000), Sequence: 2},
}

func sampleNear(stop domain.RouteStop, meters float64, i int) domain.PositionSample {
	return domain.PositionSample{
		TripID:     "trip-1",
		VehicleID:  "van-12",
		Point:      pointSouthOf(stop.Point, meters),
		RecordedAt: testStart.Add(time.Duration(i) * time.Second),
	}
}

func newDecisionService(t *testing.T, trips ports.TripStopRepository, notifier ports.ArrivalNotifier) (*NotificationDecisionService, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	svc, err := NewNotificationDecisionService(store, trips, notifier, domain.DefaultProximityConfig())
	require.NoError(t, err)
	return svc, store
}

func TestProcessPositionSampleNotifiesNextStopOnce(t *testing.T) {
	svc, _ := newDecisionService(t, nil, nil)
	ctx := context.Background()

	got, err := svc.ProcessPositionSample(ctx, sampleNear(tripStops[1], 700, 0), tripStops)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.ProcessPositionSample(ctx, sampleNear(tripStops[1], 250, 1), tripStops)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)

	// Same position again, including a duplicate timestamp.
	for i := 1; i <= 3; i++ {
		got, err = svc.ProcessPositionSample(ctx, sampleNear(tripStops[1], 240, i), tripStops)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestProcessPositionSampleWindowSkipsArrivedStops(t *testing.T) {
	svc, store := newDecisionService(t, nil, nil)
	ctx := context.Background()
	a, b := tripStops[1], tripStops[2]

	_, err := svc.ProcessPositionSample(ctx, sampleNear(a, 10, 0), tripStops)
	require.NoError(t, err)

	states, err := store.Load(ctx, "trip-1")
	require.NoError(t, err)
	require.True(t, states["A"].HasArrived())
	_, hasC := states["C"]
	assert.False(t, hasC, "C is beyond the lookahead window")

	got, err := svc.ProcessPositionSample(ctx, sampleNear(b, 200, 1), tripStops)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got)

	// A stays arrived and out of the window even after the vehicle moves away.
	states, err = store.Load(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseArrived, states["A"].Phase)
}

func TestProcessPositionSampleLookaheadToleratesSkippedStop(t *testing.T) {
	svc, _ := newDecisionService(t, nil, nil)
	ctx := context.Background()

	// The vehicle heads straight for B without passing A.
	got, err := svc.ProcessPositionSample(ctx, sampleNear(tripStops[2], 150, 0), tripStops)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got)
}

// pointEastOf returns a point the given distance due east of p.
func pointEastOf(p domain.GeoPoint, meters float64) domain.GeoPoint {
	deg := meters / (geo.EarthRadiusMeters * math.Cos(p.Latitude*math.Pi/180)) * 180 / math.Pi
	return domain.GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude + deg}
}

func TestProcessPositionSampleWindowAdvancesPastOffsetStops(t *testing.T) {
	svc, store := newDecisionService(t, nil, nil)
	ctx := context.Background()

	base := testStop.Point
	stops := []domain.RouteStop{
		{ID: "A", Point: base, Sequence: 1},
		{ID: "B", Point: pointSouthOf(base, -2000), Sequence: 2},
		{ID: "C", Point: pointSouthOf(base, -4000), Sequence: 3},
		{ID: "D", Point: pointSouthOf(base, -6000), Sequence: 4},
	}

	// The road runs 100 m east of every stop, so no sample is ever inside
	// the arrival radius.
	fired := make(map[string]int)
	i := 0
	for north := -1500.0; north <= 7500; north += 150 {
		sample := domain.PositionSample{
			TripID:     "trip-1",
			VehicleID:  "van-12",
			Point:      pointEastOf(pointSouthOf(base, -north), 100),
			RecordedAt: testStart.Add(time.Duration(i) * 10 * time.Second),
		}
		i++

		got, err := svc.ProcessPositionSample(ctx, sample, stops)
		require.NoError(t, err)
		for _, id := range got {
			fired[id]++
		}
	}

	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 1}, fired)

	states, err := store.Load(ctx, "trip-1")
	require.NoError(t, err)
	for _, id := range []string{"A", "B", "C", "D"} {
		assert.False(t, states[id].HasArrived(), "stop %s", id)
		assert.True(t, states[id].Passed(), "stop %s", id)
	}
}

func TestProcessPositionSampleArrivalAtLaterStopSkipsEarlierOnes(t *testing.T) {
	svc, store := newDecisionService(t, nil, nil)
	ctx := context.Background()

	stops := append(slices.Clone(tripStops), domain.RouteStop{ID: "D", Point: pointSouthOf(testStop.Point, -6000), Sequence: 4})
	b, c := tripStops[2], tripStops[0]

	// A is never approached; the vehicle reaches B directly.
	got, err := svc.ProcessPositionSample(ctx, sampleNear(b, 20, 0), stops)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got)

	got, err = svc.ProcessPositionSample(ctx, sampleNear(c, 250, 1), stops)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, got)

	states, err := store.Load(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFar, states["A"].Phase)
	assert.False(t, states["A"].HasNotified())
}

func TestProcessPositionSampleRejectsNaNStop(t *testing.T) {
	svc, _ := newDecisionService(t, nil, nil)

	stops := slices.Clone(tripStops)
	stops[0].Point.Latitude = math.NaN()
	_, err := svc.ProcessPositionSample(context.Background(), sampleNear(tripStops[1], 100, 0), stops)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestProcessPositionSampleRejectsInvalidSample(t *testing.T) {
	svc, _ := newDecisionService(t, nil, nil)

	bad := sampleNear(tripStops[1], 100, 0)
	bad.TripID = ""
	_, err := svc.ProcessPositionSample(context.Background(), bad, tripStops)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	bad = sampleNear(tripStops[1], 100, 0)
	bad.Point.Latitude = 100
	_, err = svc.ProcessPositionSample(context.Background(), bad, tripStops)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestProcessPositionSampleSerializesSameTrip(t *testing.T) {
	svc, _ := newDecisionService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessPositionSample(ctx, sampleNear(tripStops[1], 700, 0), tripStops)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		fired int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.ProcessPositionSample(ctx, sampleNear(tripStops[1], 200, i), tripStops)
			assert.NoError(t, err)
			mu.Lock()
			fired += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fired)
	assert.Zero(t, svc.locks.active())
}

func TestProcessPositionSampleSerializesSameTripAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newInstance := func() *NotificationDecisionService {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		svc, err := NewNotificationDecisionService(
			state.NewRedisStore(client, time.Hour),
			nil,
			nil,
			domain.DefaultProximityConfig(),
			WithTripLocker(state.NewRedisTripLocker(client, 5*time.Second)),
		)
		require.NoError(t, err)
		return svc
	}
	instances := []*NotificationDecisionService{newInstance(), newInstance()}
	ctx := context.Background()

	_, err := instances[0].ProcessPositionSample(ctx, sampleNear(tripStops[1], 700, 0), tripStops)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		fired int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := instances[i%2].ProcessPositionSample(ctx, sampleNear(tripStops[1], 200, i), tripStops)
			assert.NoError(t, err)
			mu.Lock()
			fired += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fired)
	assert.False(t, mr.Exists("proximity:lock:trip-1"), "lock is released")
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis unavailable")
}

func TestProcessPositionSampleLockFailure(t *testing.T) {
	svc, err := NewNotificationDecisionService(state.NewMemoryStore(), nil, nil,
		domain.DefaultProximityConfig(), WithTripLocker(failingLocker{}))
	require.NoError(t, err)

	_, err = svc.ProcessPositionSample(context.Background(), sampleNear(tripStops[1], 100, 0), tripStops)
	require.Error(t, err)
	assert.Zero(t, svc.locks.active())
}

func TestTripStatesAndEndTrip(t *testing.T) {
	svc, _ := newDecisionService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessPositionSample(ctx, sampleNear(tripStops[1], 500, 0), tripStops)
	require.NoError(t, err)

	states, err := svc.TripStates(ctx, "trip-1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "A", states[0].StopID)
	assert.Equal(t, "B", states[1].StopID)

	require.NoError(t, svc.EndTrip(ctx, "trip-1"))

	states, err = svc.TripStates(ctx, "trip-1")
	require.NoError(t, err)
	assert.Empty(t, states)

	assert.True(t, errors.Is(svc.EndTrip(ctx, ""), domain.ErrInvalidInput))
}

func TestNewNotificationDecisionServiceRejectsBadConfig(t *testing.T) {
	cfg := domain.DefaultProximityConfig()
	cfg.NotifyThresholdMeters = cfg.ApproachThresholdMeters

	_, err := NewNotificationDecisionService(state.NewMemoryStore(), nil, nil, cfg)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

type fakeTripRepo map[string][]domain.RouteStop

func (f fakeTripRepo) ListTripStops(_ context.Context, tripID string) ([]domain.RouteStop, error) {
	stops, ok := f[tripID]
	if !ok {
		return nil, fmt.Errorf("trip %q: %w", tripID, domain.ErrTripNotFound)
	}
	return stops, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []ports.ArrivalNotice
	err     error
}

func (r *recordingNotifier) NotifyArrival(_ context.Context, n ports.ArrivalNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

func TestHandlePositionPublishesNotices(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newDecisionService(t, fakeTripRepo{"trip-1": tripStops}, notifier)
	ctx := context.Background()

	_, err := svc.HandlePosition(ctx, sampleNear(tripStops[1], 600, 0))
	require.NoError(t, err)

	got, err := svc.HandlePosition(ctx, sampleNear(tripStops[1], 250, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)

	require.Len(t, notifier.notices, 1)
	n := notifier.notices[0]
	assert.Equal(t, "trip-1", n.TripID)
	assert.Equal(t, "van-12", n.VehicleID)
	assert.Equal(t, "A", n.StopID)
	assert.InDelta(t, 250, n.DistanceMeters, 0.01)
}

func TestHandlePositionNotifierFailureIsNotReturned(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	svc, _ := newDecisionService(t, fakeTripRepo{"trip-1": tripStops}, notifier)

	got, err := svc.HandlePosition(context.Background(), sampleNear(tripStops[1], 100, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)

	// The decision was persisted, so it does not fire again.
	got, err = svc.HandlePosition(context.Background(), sampleNear(tripStops[1], 90, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, notifier.notices, 1)
}

func TestHandlePositionUnknownTrip(t *testing.T) {
	svc, _ := newDecisionService(t, fakeTripRepo{}, &recordingNotifier{})

	_, err := svc.HandlePosition(context.Background(), sampleNear(tripStops[1], 100, 0))
	assert.True(t, errors.Is(err, domain.ErrTripNotFound))
}
