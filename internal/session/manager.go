package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager keeps the live sessions keyed by id: one per web visitor,
// telegram chat or MCP caller. Sessions live in memory only.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	systemPrompt string
}

func NewManager(systemPrompt string) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		systemPrompt: systemPrompt,
	}
}

// GetOrCreate returns the session for id, creating it on first use. An
// empty id gets a fresh UUID so every visitor starts a distinct
// adventure.
func (m *Manager) GetOrCreate(id string) (string, *Session) {
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = New(m.systemPrompt)
		m.sessions[id] = s
	}
	return id, s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Reset restores the session to its initial state. It reports whether the
// id was known.
func (m *Manager) Reset(id string) bool {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	s.Reset()
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Info is a point-in-time view of one live session, for the admin
// listing.
type Info struct {
	ID         string
	Turns      int
	CreatedAt  time.Time
	LastActive time.Time
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, Info{
			ID:         id,
			Turns:      s.TurnCount(),
			CreatedAt:  s.CreatedAt(),
			LastActive: s.LastActiveAt(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
