package session

import (
	"sync"

	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/store"
	"github.com/rs/zerolog"
)

// Manager owns the in-memory session controllers, one per candidate. A
// candidate reconnecting is re-attached to their existing controller rather
// than starting a second session.
type Manager struct {
	mu           sync.Mutex
	log          zerolog.Logger
	cfg          Config
	assessmentID string
	bank         *model.Bank
	st           store.Store
	sessions     map[int]*Controller
}

// NewManager creates an empty session manager.
func NewManager(log zerolog.Logger, cfg Config, assessmentID string, bank *model.Bank, st store.Store) *Manager {
	return &Manager{
		log:          log.With().Str("component", "session_manager").Logger(),
		cfg:          cfg,
		assessmentID: assessmentID,
		bank:         bank,
		st:           st,
		sessions:     make(map[int]*Controller),
	}
}

// Attach returns the candidate's controller, creating it (with artifacts
// restored from the store) on first attach and rebinding the device and
// sink on reconnect.
func (m *Manager) Attach(cand model.Candidate, dev Device, sink Sink) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[cand.ID]; ok {
		c.Rebind(dev, sink)
		return c
	}

	c := New(m.log, m.cfg, m.assessmentID, cand, m.bank, m.st, dev, sink)
	m.sessions[cand.ID] = c
	m.log.Info().Int("candidate_id", cand.ID).Msg("Session created")
	return c
}

// Get returns the candidate's controller if one exists.
func (m *Manager) Get(candidateID int) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[candidateID]
	return c, ok
}

// Detach drops the client bindings but keeps the session alive; periodic
// liveness checking will pause it if the camera feed goes stale.
func (m *Manager) Detach(candidateID int) {
	m.mu.Lock()
	c, ok := m.sessions[candidateID]
	m.mu.Unlock()
	if ok {
		c.Rebind(nil, NopSink{})
	}
}

// Shutdown tears down every session, cancelling all periodic work.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.sessions {
		c.Teardown()
	}
}
