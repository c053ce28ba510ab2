package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory for the lifetime of the process.
// It does not survive restarts and does not scale across instances; use
// RedisStore for that.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}}
}

func (m *MemoryStore) Get(ctx context.Context, callID string) (Session, error) {
	if callID == "" {
		return Session{}, ErrInvalidCallID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		s = New(callID)
		m.sessions[callID] = s
	}
	return s, nil
}

func (m *MemoryStore) Update(ctx context.Context, callID string, p Patch) (Session, error) {
	if callID == "" {
		return Session{}, ErrInvalidCallID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		s = New(callID)
	}
	s = p.Apply(s)
	m.sessions[callID] = s
	return s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, callID)
	return nil
}

func (m *MemoryStore) Lookup(ctx context.Context, callID string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	return s, ok, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
