package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Manager tracks live keypad sessions by id and evicts abandoned ones.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	res     resolver
	timeout time.Duration
	ttl     time.Duration
	lastGC  time.Time
}

func NewManager(res resolver, checkTimeout, ttl time.Duration) *Manager {
	return &Manager{
		entries: map[string]*entry{},
		res:     res,
		timeout: checkTimeout,
		ttl:     ttl,
		lastGC:  time.Now().UTC(),
	}
}

// Open creates a keypad session for the target zone and returns its id.
func (m *Manager) Open(zoneID string) (string, *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gcLocked()
	id := uuid.NewString()
	ctrl := NewController(m.res, zoneID, m.timeout)
	m.entries[id] = &entry{ctrl: ctrl, lastSeen: time.Now().UTC()}
	return id, ctrl
}

func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gcLocked()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now().UTC()
	return e.ctrl, true
}

func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

func (m *Manager) gcLocked() {
	now := time.Now().UTC()
	if now.Sub(m.lastGC) < time.Minute {
		return
	}
	for id, e := range m.entries {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.entries, id)
		}
	}
	m.lastGC = now
}
