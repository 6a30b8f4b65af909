package services

import (
	"context"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fleet-routing-service/internal/ports"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// NotificationDecisionService turns vehicle position samples into
// "your transport is arriving" decisions.
//
// Samples for the same trip are serialized by a per-trip lock; different
// trips proceed in parallel. With a TripLocker the serialization also holds
// across processes.
type NotificationDecisionService struct {
	store      ports.ProximityStateStore
	trips      ports.TripStopRepository
	notifier   ports.ArrivalNotifier
	cfg        domain.ProximityConfig
	locks      *tripLocks
	tripLocker ports.TripLocker
}

// Option configures a NotificationDecisionService.
type Option func(*NotificationDecisionService)

// WithTripLocker adds a shared per-trip lock, taken after the in-process one.
func WithTripLocker(l ports.TripLocker) Option {
	return func(s *NotificationDecisionService) { s.tripLocker = l }
}

// NewNotificationDecisionService validates cfg. trips and notifier are only
// needed by HandlePosition and may be nil otherwise.
func NewNotificationDecisionService(
	store ports.ProximityStateStore,
	trips ports.TripStopRepository,
	notifier ports.ArrivalNotifier,
	cfg domain.ProximityConfig,
	opts ...Option,
) (*NotificationDecisionService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: proximity state store is required", domain.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new notification decision service: %w", err)
	}

	s := &NotificationDecisionService{
		store:    store,
		trips:    trips,
		notifier: notifier,
		cfg:      cfg,
		locks:    newTripLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// lockTrip serializes callers on tripID within this process and, when a
// TripLocker is configured, across processes.
func (s *NotificationDecisionService) lockTrip(ctx context.Context, tripID string) (func(), error) {
	unlock := s.locks.lock(tripID)
	if s.tripLocker == nil {
		return unlock, nil
	}

	release, err := s.tripLocker.Lock(ctx, tripID)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

// ProcessPositionSample evaluates the sample against the trip's current stop
// window, persists changed states, and returns the ids of stops that just
// became NOTIFIED, in route order.
func (s *NotificationDecisionService) ProcessPositionSample(
	ctx context.Context,
	sample domain.PositionSample,
	tripStops []domain.RouteStop,
) ([]string, error) {
	notified, err := s.process(ctx, sample, tripStops)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(notified))
	for _, st := range notified {
		ids = append(ids, st.StopID)
	}
	return ids, nil
}

func (s *NotificationDecisionService) process(
	ctx context.Context,
	sample domain.PositionSample,
	tripStops []domain.RouteStop,
) (_ []domain.ProximityState, err error) {
	defer obs.Time(ctx, "notifications.ProcessPositionSample")(&err)

	if err := sample.Validate(); err != nil {
		return nil, fmt.Errorf("process position sample: %w", err)
	}
	for _, st := range tripStops {
		if strings.TrimSpace(st.ID) == "" {
			return nil, fmt.Errorf("process position sample: %w: stop with empty id", domain.ErrInvalidInput)
		}
		if err := st.Point.Validate(); err != nil {
			return nil, fmt.Errorf("process position sample stop=%q: %w", st.ID, err)
		}
	}

	unlock, err := s.lockTrip(ctx, sample.TripID)
	if err != nil {
		return nil, fmt.Errorf("process position sample trip=%q: %w", sample.TripID, err)
	}
	defer unlock()

	states, err := s.store.Load(ctx, sample.TripID)
	if err != nil {
		return nil, fmt.Errorf("process position sample trip=%q: %w", sample.TripID, err)
	}

	window := stopWindow(tripStops, states, s.cfg.LookaheadStopCount)

	changed := make([]domain.ProximityState, 0, len(window))
	notified := make([]domain.ProximityState, 0, 1)
	for _, stop := range window {
		prev, ok := states[stop.ID]
		if !ok {
			prev = domain.NewProximityState(sample.TripID, stop.ID)
		}

		if !prev.LastSampleAt.IsZero() && sample.RecordedAt.Before(prev.LastSampleAt) {
			slog.DebugContext(ctx, "stale position sample ignored",
				"req_id", obs.RequestID(ctx),
				"trip_id", sample.TripID,
				"stop_id", stop.ID,
				"recorded_at", sample.RecordedAt,
				"last_sample_at", prev.LastSampleAt,
			)
			continue
		}

		next, notify := EvaluateProximity(prev, sample, stop, s.cfg)
		changed = append(changed, next)
		if notify {
			notified = append(notified, next)
		}
	}

	if err := s.store.Save(ctx, sample.TripID, changed); err != nil {
		return nil, fmt.Errorf("process position sample trip=%q: %w", sample.TripID, err)
	}

	return notified, nil
}

// HandlePosition resolves the trip's stops, processes the sample and hands
// every new decision to the notifier. Notifier failures are logged only:
// the decision is already persisted and must not fire twice.
func (s *NotificationDecisionService) HandlePosition(ctx context.Context, sample domain.PositionSample) ([]string, error) {
	if s.trips == nil {
		return nil, fmt.Errorf("handle position: trip stop repository is not configured")
	}
	if err := sample.Validate(); err != nil {
		return nil, fmt.Errorf("handle position: %w", err)
	}

	stops, err := s.trips.ListTripStops(ctx, sample.TripID)
	if err != nil {
		return nil, fmt.Errorf("handle position: %w", err)
	}

	notified, err := s.process(ctx, sample, stops)
	if err != nil {
		return nil, fmt.Errorf("handle position: %w", err)
	}

	ids := make([]string, 0, len(notified))
	for _, st := range notified {
		ids = append(ids, st.StopID)
		if s.notifier == nil {
			continue
		}

		notice := ports.ArrivalNotice{
			TripID:         sample.TripID,
			VehicleID:      sample.VehicleID,
			StopID:         st.StopID,
			DistanceMeters: st.LastDistanceMeters,
			RecordedAt:     sample.RecordedAt,
		}
		if err := s.notifier.NotifyArrival(ctx, notice); err != nil {
			slog.ErrorContext(ctx, "arrival notice delivery failed",
				"req_id", obs.RequestID(ctx), "trip_id", sample.TripID, "stop_id", st.StopID, "error", err)
		}
	}

	return ids, nil
}

// TripStates returns the trip's states ordered by stop id.
func (s *NotificationDecisionService) TripStates(ctx context.Context, tripID string) ([]domain.ProximityState, error) {
	if strings.TrimSpace(tripID) == "" {
		return nil, fmt.Errorf("trip states: %w: tripId must be non-empty", domain.ErrInvalidInput)
	}

	states, err := s.store.Load(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("trip states trip=%q: %w", tripID, err)
	}

	out := make([]domain.ProximityState, 0, len(states))
	for _, st := range states {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.ProximityState) int { return strings.Compare(a.StopID, b.StopID) })
	return out, nil
}

// EndTrip discards every proximity state of a finished trip.
func (s *NotificationDecisionService) EndTrip(ctx context.Context, tripID string) error {
	if strings.TrimSpace(tripID) == "" {
		return fmt.Errorf("end trip: %w: tripId must be non-empty", domain.ErrInvalidInput)
	}

	unlock, err := s.lockTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("end trip %q: %w", tripID, err)
	}
	defer unlock()

	if err := s.store.DeleteTrip(ctx, tripID); err != nil {
		return fmt.Errorf("end trip %q: %w", tripID, err)
	}
	slog.InfoContext(ctx, "trip proximity state cleared", "req_id", obs.RequestID(ctx), "trip_id", tripID)
	return nil
}

// stopWindow returns the stops worth evaluating for the next sample, in
// sequence order. Stops before the last one the vehicle reached are behind it,
// as are passed stops. Notified stops stay in the window until they are passed
// but do not use up its budget: the next unannounced stop plus up to lookahead
// further ones.
func stopWindow(stops []domain.RouteStop, states map[string]domain.ProximityState, lookahead int) []domain.RouteStop {
	ordered := slices.Clone(stops)
	slices.SortStableFunc(ordered, func(a, b domain.RouteStop) int { return a.Sequence - b.Sequence })

	head := 0
	for i, st := range ordered {
		if states[st.ID].HasArrived() {
			head = i + 1
		}
	}

	window := make([]domain.RouteStop, 0, 1+lookahead)
	pending := 0
	for _, st := range ordered[head:] {
		state := states[st.ID]
		if state.Passed() {
			continue
		}
		window = append(window, st)
		if state.HasNotified() {
			continue
		}
		pending++
		if pending == 1+lookahead {
			break
		}
	}
	return window
}
