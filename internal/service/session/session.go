package session

import (
	"sync"

	"MarketDeck/internal/domain/models"
)

// Manager holds the current bot session in memory. There is at most one
// active session per process; establishing a new one replaces the old.
// Subscribers are notified on establish and invalidate so polling can be
// armed and torn down.
type Manager struct {
	mu    sync.RWMutex
	token string
	user  models.User
	subs  []func(active bool)
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{}
}

// Token returns the current bearer token, empty when unauthenticated.
// Shaped to plug directly into the HTTP client's token source.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns the session owner and whether a session exists.
func (m *Manager) User() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.token != ""
}

// Active reports whether a session is established.
func (m *Manager) Active() bool {
	return m.Token() != ""
}

// Establish stores a fresh session and notifies subscribers.
func (m *Manager) Establish(auth *models.AuthResult) {
	m.mu.Lock()
	m.token = auth.Token
	m.user = auth.User
	subs := append([]func(bool){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(true)
	}
}

// Invalidate drops the session. Safe to call when none exists; subscribers
// are only notified on an actual transition.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	had := m.token != ""
	m.token = ""
	m.user = models.User{}
	subs := append([]func(bool){}, m.subs...)
	m.mu.Unlock()

	if !had {
		return
	}
	for _, fn := range subs {
		fn(false)
	}
}

// Subscribe registers a transition callback. Callbacks run synchronously on
// the goroutine that changed the session.
func (m *Manager) Subscribe(fn func(active bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
