package memory

import (
	"context"
	"sync"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Values
// are deep-copied on the way in and out so callers never share slices with
// the stored record.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

var _ app.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

func (s *SessionStore) Find(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}
