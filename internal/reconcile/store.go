package reconcile

import (
	"sync"

	"MarketDeck/internal/domain/models"
)

// Store owns the last-accepted snapshot, the mutable baseline and the last
// published derived state. Polling goroutines and HTTP handlers share it, so
// access is serialized here rather than in the pure reducer.
type Store struct {
	mu       sync.RWMutex
	baseline Baseline
	derived  models.Derived
	snapshot *models.MarketSnapshot
}

// NewStore returns an empty store with a neutral baseline.
func NewStore() *Store {
	return &Store{}
}

// Apply reconciles snap against the stored baseline, retains it as the
// current snapshot and returns the dashboard state for this cycle.
func (s *Store) Apply(snap *models.MarketSnapshot) models.DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.derived = Reconcile(&s.baseline, s.derived, snap)
	s.snapshot = snap
	return models.DashboardState{Snapshot: *snap, Derived: s.derived}
}

// State returns the last accepted dashboard state. ok is false before the
// first successful poll.
func (s *Store) State() (models.DashboardState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return models.DashboardState{}, false
	}
	return models.DashboardState{Snapshot: *s.snapshot, Derived: s.derived}, true
}

// Baseline returns a copy of the current comparison values.
func (s *Store) Baseline() Baseline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseline
}

// Reset clears all state, used when the session is torn down.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = Baseline{}
	s.derived = models.Derived{}
	s.snapshot = nil
}
