package state

import (
	"context"
	"fleet-routing-service/internal/domain"
	"sync"
)

// MemoryStore keeps proximity states in process memory.
// States are lost on restart; use RedisStore with a RedisTripLocker when
// several instances share a feed.
type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string]map[string]domain.ProximityState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string]map[string]domain.ProximityState)}
}

func (s *MemoryStore) Load(_ context.Context, tripID string) (map[string]domain.ProximityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stops := s.trips[tripID]
	out := make(map[string]domain.ProximityState, len(stops))
	for id, st := range stops {
		out[id] = st
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, tripID string, states []domain.ProximityState) error {
	if len(states) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stops, ok := s.trips[tripID]
	if !ok {
		stops = make(map[string]domain.ProximityState, len(states))
		s.trips[tripID] = stops
	}
	for _, st := range states {
		stops[st.StopID] = st
	}
	return nil
}

func (s *MemoryStore) DeleteTrip(_ context.Context, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.trips, tripID)
	return nil
}
