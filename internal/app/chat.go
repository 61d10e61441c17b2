package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"livepoll-service/internal/domain"
)

// ChatRelay is the append-and-broadcast side-channel. It shares the session
// id and registry with the question state machine but nothing else.
type ChatRelay struct {
	chat     ChatStore
	registry *Registry
	fanout   Broadcaster
	now      func() time.Time
	newID    func() string
}

func NewChatRelay(chat ChatStore, registry *Registry, fanout Broadcaster) *ChatRelay {
	return &ChatRelay{
		chat:     chat,
		registry: registry,
		fanout:   fanout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// PostMessage resolves the sender from the registry, persists the message,
// and broadcasts it to the room. Unregistered connections are dropped.
func (c *ChatRelay) PostMessage(ctx context.Context, connID, text string) error {
	entry, ok := c.registry.Get(connID)
	if !ok {
		return domain.ErrUnauthorized
	}
	msg := domain.ChatMessage{
		ID:        c.newID(),
		SessionID: entry.SessionID,
		Sender:    entry.Name,
		Role:      entry.Role,
		Text:      text,
		SentAt:    c.now(),
	}
	if err := c.chat.Append(ctx, msg); err != nil {
		return err
	}
	c.fanout.ToRoom(entry.SessionID, EventChatMessage, msg)
	return nil
}
