package combat

import (
	"context"
	"sync"

	"github.com/mnehmos/questforge/pkg/models"
)

// Manager caches live engines keyed by sessionID:encounterID. Entries
// are reconstructible from persistent state, so eviction is always
// safe.
type Manager struct {
	mu      sync.Mutex
	engines map[string]*Engine
	deps    Deps
}

// NewManager creates an empty manager.
func NewManager(deps Deps) *Manager {
	return &Manager{engines: make(map[string]*Engine), deps: deps}
}

func key(sessionID, encounterID string) string { return sessionID + ":" + encounterID }

// Create starts a new encounter and caches its engine for the session.
func (m *Manager) Create(ctx context.Context, sessionID string, participants []Participant, seed string, terrain *models.Terrain) (*Engine, error) {
	e, err := New(ctx, m.deps, participants, seed, terrain)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.engines[key(sessionID, e.Snapshot().ID)] = e
	m.mu.Unlock()
	return e, nil
}

// Get returns the cached engine for an encounter, loading and caching
// from the store on a miss.
func (m *Manager) Get(ctx context.Context, sessionID, encounterID string) (*Engine, error) {
	m.mu.Lock()
	if e, ok := m.engines[key(sessionID, encounterID)]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	enc, err := m.deps.Store.Encounters.FindByID(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	e := Restore(m.deps, enc)
	m.mu.Lock()
	m.engines[key(sessionID, encounterID)] = e
	m.mu.Unlock()
	return e, nil
}

// Evict drops the cached engine for an encounter.
func (m *Manager) Evict(sessionID, encounterID string) {
	m.mu.Lock()
	delete(m.engines, key(sessionID, encounterID))
	m.mu.Unlock()
}
