package memory

import (
	"context"
	"sync"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
)

// ChatStore keeps chat history in memory, capped per session. A limit of
// zero keeps everything.
type ChatStore struct {
	limit    int
	mu       sync.RWMutex
	messages map[string][]domain.ChatMessage
}

var _ app.ChatStore = (*ChatStore)(nil)

func NewChatStore(limit int) *ChatStore {
	return &ChatStore{
		limit:    limit,
		messages: make(map[string][]domain.ChatMessage),
	}
}

func (s *ChatStore) Append(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[msg.SessionID], msg)
	if s.limit > 0 && len(msgs) > s.limit {
		msgs = msgs[len(msgs)-s.limit:]
	}
	s.messages[msg.SessionID] = msgs
	return nil
}

func (s *ChatStore) History(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), s.messages[sessionID]...), nil
}
