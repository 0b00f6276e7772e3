package store

import (
	"context"
	"sync"
	"time"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/session"
)

// MemoryStore is an in-memory SessionStore for tests and ephemeral use.
// It hands out deep copies so callers never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session.Session)}
}

// Create inserts a new session record.
func (m *MemoryStore) Create(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return ctxerrors.ErrDuplicateSession
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Get returns a copy of the session, or nil if absent.
func (m *MemoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// Save upserts the full record and refreshes UpdatedAt.
func (m *MemoryStore) Save(_ context.Context, s *session.Session) error {
	s.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes the record. Absent ids are a no-op.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// List returns copies of all sessions in unspecified order.
func (m *MemoryStore) List(_ context.Context) ([]*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
