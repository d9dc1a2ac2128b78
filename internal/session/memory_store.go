package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps sessions in a map guarded by an RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	if s == nil || s.UserID == "" {
		return fmt.Errorf("session: user id required")
	}
	if !s.Step.Valid() {
		return fmt.Errorf("session: invalid step %d", int(s.Step))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}
