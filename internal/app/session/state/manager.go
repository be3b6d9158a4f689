package state

import (
	"sync"
	"time"

	"github.com/osa030/melody/internal/domain/results"
	"github.com/osa030/melody/internal/domain/track"
)

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	sessionID string
	startedAt time.Time
	phase     Phase

	// Last search; play <n> indexes into it
	results *results.Results
}

// New creates a new state manager.
func New(sessionID string) *Manager {
	return &Manager{
		sessionID: sessionID,
		startedAt: time.Now(),
		phase:     PhaseActive,
	}
}

// SessionID returns the session ID.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// StartedAt returns when the session started.
func (m *Manager) StartedAt() time.Time {
	return m.startedAt
}

// GetPhase returns the current session phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// SetPhase sets the session phase. Phases never go backwards.
func (m *Manager) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p > m.phase {
		m.phase = p
	}
}

// SetResults replaces the search index.
func (m *Manager) SetResults(r *results.Results) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = r
}

// Results returns the current search index, nil before the first search.
func (m *Manager) Results() *results.Results {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results
}

// Result returns the n-th (1-based) track of the last search.
func (m *Manager) Result(n int) (track.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results.Get(n)
}
