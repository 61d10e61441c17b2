package app

import (
	"sync"
	"time"
)

// TimerManager owns one cancellable deadline per open question. Firing and
// cancellation can still race at the edges; the close operation's idempotence
// is the backstop, not perfect cancellation here.
type TimerManager struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerManager() *TimerManager {
	return &TimerManager{timers: make(map[string]*time.Timer)}
}

// Schedule arms a deadline for the question, replacing any existing one.
func (m *TimerManager) Schedule(questionID string, d time.Duration, fire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[questionID]; ok {
		t.Stop()
	}
	m.timers[questionID] = time.AfterFunc(d, func() {
		m.forget(questionID)
		fire()
	})
}

// Cancel stops and discards the question's timer, no-op if none exists.
func (m *TimerManager) Cancel(questionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[questionID]; ok {
		t.Stop()
		delete(m.timers, questionID)
	}
}

// Pending reports whether a timer is currently armed for the question.
func (m *TimerManager) Pending(questionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[questionID]
	return ok
}

func (m *TimerManager) forget(questionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, questionID)
}
