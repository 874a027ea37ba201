package memory

import (
	"context"
	"sync"

	"lead-gate-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore, keyed by
// normalized phone. Useful as the test fake and for single-instance demos.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.GatedSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.GatedSession),
	}
}

func (s *SessionStore) Load(_ context.Context, phone string) (domain.GatedSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[phone]
	return session, ok, nil
}

func (s *SessionStore) Save(_ context.Context, session domain.GatedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Identity.Phone] = session
	return nil
}

func (s *SessionStore) Clear(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
	return nil
}
