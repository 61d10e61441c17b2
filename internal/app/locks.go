package app

import "sync"

// sessionLocks serializes load-mutate-save cycles per session id so that
// operations on the same session cannot lose concurrent updates, while
// different sessions proceed independently.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the session id and returns it for unlocking.
// Locks live for the process lifetime; sessions are few and small.
func (l *sessionLocks) acquire(sessionID string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m
}
