package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
)

// ChatStore keeps chat history as a Redis list per session, trimmed to the
// configured limit. A limit of zero keeps everything.
type ChatStore struct {
	client *redis.Client
	ttl    time.Duration
	limit  int
}

var _ app.ChatStore = (*ChatStore)(nil)

func NewChatStore(client *redis.Client, ttl time.Duration, limit int) *ChatStore {
	return &ChatStore{client: client, ttl: ttl, limit: limit}
}

func (s *ChatStore) Append(ctx context.Context, msg domain.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	key := s.key(msg.SessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, raw)
	if s.limit > 0 {
		pipe.LTrim(ctx, key, int64(-s.limit), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *ChatStore) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	raws, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	msgs := make([]domain.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal chat message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *ChatStore) key(sessionID string) string {
	return "livepoll:chat:" + sessionID
}
