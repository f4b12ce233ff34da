package member

import (
	"context"
	"sync"
	"time"
)

// SessionStore keeps each user's ListState between requests so that the
// one-record-at-a-time edit rule holds across calls.
type SessionStore interface {
	// Load returns nil, nil when the user has no stored state.
	Load(ctx context.Context, userID string) (*ListState, error)
	Save(ctx context.Context, userID string, s ListState) error
	Clear(ctx context.Context, userID string) error
}

type memorySession struct {
	state     ListState
	expiresAt time.Time
}

// MemorySessionStore is a SessionStore for single-instance deployments and
// tests. Entries expire after ttl of inactivity.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
	nowFn    func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
		nowFn:    time.Now,
	}
}

func (m *MemorySessionStore) Load(_ context.Context, userID string) (*ListState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && !m.nowFn().Before(s.expiresAt) {
		delete(m.sessions, userID)
		return nil, nil
	}
	state := s.state
	if state.EditingID != nil {
		id := *state.EditingID
		state.EditingID = &id
	}
	return &state, nil
}

func (m *MemorySessionStore) Save(_ context.Context, userID string, s ListState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.EditingID != nil {
		id := *s.EditingID
		s.EditingID = &id
	}
	m.sessions[userID] = memorySession{state: s, expiresAt: m.nowFn().Add(m.ttl)}
	return nil
}

func (m *MemorySessionStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
