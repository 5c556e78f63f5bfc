package resynth

import (
	"sync"
	"time"

	"github.com/rawblock/resynth-engine/internal/config"
)

// Session Manager
//
// Tracks in-flight and completed resynthesis runs so the API layer has
// something to poll and the websocket hub has something to key
// broadcasts on: plain CRUD over a mutex-guarded map.
//
// Session lifecycle:
//   queued    → accepted, driver not yet started
//   running   → RunPass in progress
//   completed → pass finished, Stats populated
//   failed    → pass aborted with an error
//   cancelled → caller asked to stop before completion

// Session is a single resynthesis run.
type Session struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"` // "queued"/"running"/"completed"/"failed"/"cancelled"
	Config    config.Config `json:"config"`
	Stats     Stats        `json:"stats"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// SessionManager handles CRUD for resynthesis sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session tracker.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// CreateSession registers a new queued session under id.
func (m *SessionManager) CreateSession(id string, cfg config.Config) *Session {
	now := time.Now()
	s := &Session{ID: id, Status: "queued", Config: cfg, CreatedAt: now, UpdatedAt: now}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// GetSession retrieves a session by ID, or nil if unknown.
func (m *SessionManager) GetSession(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// ListSessions returns every tracked session.
func (m *SessionManager) ListSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// MarkRunning transitions a session to "running".
func (m *SessionManager) MarkRunning(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = "running"
		s.UpdatedAt = time.Now()
	}
}

// MarkCompleted records a finished pass's stats.
func (m *SessionManager) MarkCompleted(id string, stats Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = "completed"
		s.Stats = stats
		s.UpdatedAt = time.Now()
	}
}

// MarkFailed records why a session's pass aborted.
func (m *SessionManager) MarkFailed(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = "failed"
		s.Error = err.Error()
		s.UpdatedAt = time.Now()
	}
}

// MarkCancelled records that the caller stopped the session before it
// completed.
func (m *SessionManager) MarkCancelled(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = "cancelled"
		s.UpdatedAt = time.Now()
	}
}
