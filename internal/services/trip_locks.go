package services

import "sync"

// tripLocks hands out one mutex per trip id. Entries are dropped once no
// goroutine holds or waits for them, so the map tracks only active trips.
type tripLocks struct {
	mu    sync.Mutex
	locks map[string]*tripLock
}

type tripLock struct {
	mu   sync.Mutex
	refs int
}

func newTripLocks() *tripLocks {
	return &tripLocks{locks: make(map[string]*tripLock)}
}

// lock blocks until the caller owns tripID and returns the matching unlock.
func (t *tripLocks) lock(tripID string) func() {
	t.mu.Lock()
	l, ok := t.locks[tripID]
	if !ok {
		l = &tripLock{}
		t.locks[tripID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, tripID)
		}
		t.mu.Unlock()
	}
}

func (t *tripLocks) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
