package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"livepoll-service/internal/domain"
)

func TestChatStoreAppendAndTrim(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewChatStore(newClient(mr), time.Minute, 3)

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, domain.ChatMessage{
			ID:        fmt.Sprintf("m%d", i),
			SessionID: "s1",
			Sender:    "Alice",
			Role:      domain.RoleParticipant,
			Text:      fmt.Sprintf("msg %d", i),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected trimmed history of 3, got %d", len(history))
	}
	if history[0].ID != "m2" || history[2].ID != "m4" {
		t.Fatalf("expected oldest dropped, got %+v", history)
	}
	if history[0].Role != domain.RoleParticipant {
		t.Fatalf("role did not survive the round trip")
	}
}
