package session

import (
	"context"
	"sync"

	"geoattend/internal/notify"
	"geoattend/internal/store"
)

// Manager opens sessions lazily and caches one per user for the lifetime
// of the process.
type Manager struct {
	store    store.Store
	notifier notify.Notifier

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(st store.Store, notifier notify.Notifier) *Manager {
	return &Manager{store: st, notifier: notifier, sessions: make(map[string]*Session)}
}

// Get returns the user's session, opening it on first use.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Open outside the lock; store reads can be slow.
	s, err := Open(ctx, userID, m.store, m.notifier)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		s.Close()
		return existing, nil
	}
	m.sessions[userID] = s
	return s, nil
}

// Close stops every open session's subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
	m.sessions = make(map[string]*Session)
}
