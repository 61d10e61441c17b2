package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livepoll-service/internal/app"
	"livepoll-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewSessionStore()
	chatStore := memory.NewChatStore(50)
	hub := NewHub()
	registry := app.NewRegistry()
	timers := app.NewTimerManager()
	service := app.NewSessionService(store, chatStore, nil, registry, timers, hub)
	relay := app.NewChatRelay(chatStore, registry, hub)
	history := app.NewHistoryService(store, nil)

	wsHandler := NewWSHandler(hub, service, relay, history)
	historyHandler := NewHistoryHandler(history)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /api/sessions/{id}/history", historyHandler.ServeHistory)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// waitFor reads until a message of the wanted type arrives, skipping others.
func waitFor(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
}

func TestSessionRoundOverWebSocket(t *testing.T) {
	server := newTestServer(t)

	moderator := dial(t, server)
	send(t, moderator, "create-session", map[string]any{"sessionId": "sess-1", "moderatorName": "Ms. Reed"})
	waitFor(t, moderator, "session-created")

	alice := dial(t, server)
	send(t, alice, "join-session", map[string]any{"sessionId": "sess-1", "displayName": "Alice"})
	joined := waitFor(t, alice, "joined-session")
	if joined["status"] != "waiting" {
		t.Fatalf("expected waiting status, got %v", joined["status"])
	}
	waitFor(t, moderator, "participant-joined")

	send(t, moderator, "open-question", map[string]any{
		"prompt": "What is 2 + 2?",
		"options": []map[string]any{
			{"id": 1, "text": "3"},
			{"id": 2, "text": "4", "isCorrect": true},
		},
		"timeLimitSeconds": 30,
	})
	opened := waitFor(t, alice, "question-opened")
	if opened["prompt"] != "What is 2 + 2?" {
		t.Fatalf("unexpected question broadcast %v", opened)
	}

	send(t, alice, "submit-answer", map[string]any{"optionId": 2})
	tally := waitFor(t, moderator, "answer-tally")
	if tally["answeredCount"].(float64) != 1 {
		t.Fatalf("unexpected tally %v", tally)
	}

	// Single active participant answered, so the round closes early.
	closed := waitFor(t, alice, "question-closed")
	results := closed["results"].(map[string]any)
	if results["answered"].(float64) != 1 {
		t.Fatalf("unexpected results %v", results)
	}

	send(t, moderator, "request-history", map[string]any{})
	waitFor(t, moderator, "session-history")
}

func TestJoinNameConflictOverWebSocket(t *testing.T) {
	server := newTestServer(t)

	moderator := dial(t, server)
	send(t, moderator, "create-session", map[string]any{"sessionId": "sess-1", "moderatorName": "Ms. Reed"})
	waitFor(t, moderator, "session-created")

	first := dial(t, server)
	send(t, first, "join-session", map[string]any{"sessionId": "sess-1", "displayName": "Alice"})
	waitFor(t, first, "joined-session")

	second := dial(t, server)
	send(t, second, "join-session", map[string]any{"sessionId": "sess-1", "displayName": "Alice"})
	errPayload := waitFor(t, second, "session-error")
	if errPayload["kind"] != "name-conflict" {
		t.Fatalf("expected name-conflict, got %v", errPayload)
	}
}

func TestChatFlowsToRoom(t *testing.T) {
	server := newTestServer(t)

	moderator := dial(t, server)
	send(t, moderator, "create-session", map[string]any{"sessionId": "sess-1", "moderatorName": "Ms. Reed"})
	waitFor(t, moderator, "session-created")

	alice := dial(t, server)
	send(t, alice, "join-session", map[string]any{"sessionId": "sess-1", "displayName": "Alice"})
	waitFor(t, alice, "joined-session")

	send(t, alice, "post-message", map[string]any{"text": "hello"})
	msg := waitFor(t, moderator, "chat-message")
	if msg["sender"] != "Alice" || msg["text"] != "hello" {
		t.Fatalf("unexpected chat message %v", msg)
	}

	// A later joiner receives the message in the replayed history.
	bob := dial(t, server)
	send(t, bob, "join-session", map[string]any{"sessionId": "sess-1", "displayName": "Bob"})
	waitFor(t, bob, "joined-session")
	send(t, bob, "post-message", map[string]any{"text": "hi"})
	waitFor(t, alice, "chat-message")
}

func TestHistoryEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/sessions/unknown/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	moderator := dial(t, server)
	send(t, moderator, "create-session", map[string]any{"sessionId": "sess-1", "moderatorName": "Ms. Reed"})
	waitFor(t, moderator, "session-created")

	resp2, err := http.Get(server.URL + "/api/sessions/sess-1/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp2.StatusCode)
	}
}

func TestMalformedFrameKeepsConnectionAlive(t *testing.T) {
	server := newTestServer(t)

	moderator := dial(t, server)
	send(t, moderator, "create-session", map[string]any{"sessionId": "sess-1", "moderatorName": "Ms. Reed"})
	waitFor(t, moderator, "session-created")

	if err := moderator.WriteMessage(websocket.TextMessage, []byte("{ not json")); err != nil {
		t.Fatalf("write garbage frame: %v", err)
	}
	errPayload := waitFor(t, moderator, "session-error")
	if errPayload["kind"] != "invalid-payload" {
		t.Fatalf("expected invalid-payload, got %v", errPayload)
	}

	// The same connection keeps dispatching events afterwards.
	send(t, moderator, "open-question", map[string]any{
		"prompt":           "Still here?",
		"options":          []map[string]any{{"id": 1, "text": "Yes"}},
		"timeLimitSeconds": 30,
	})
	opened := waitFor(t, moderator, "question-opened")
	if opened["prompt"] != "Still here?" {
		t.Fatalf("unexpected question broadcast %v", opened)
	}
}

func TestRemovedParticipantGetsNotice(t *testing.T) {
	server := newTestServer(t)

	moderator := dial(t, server)
	send(t, moderator, "create-session", map[string]any{"sessionId": "sess-1", "moderatorName": "Ms. Reed"})
	waitFor(t, moderator, "session-created")

	alice := dial(t, server)
	send(t, alice, "join-session", map[string]any{"sessionId": "sess-1", "displayName": "Alice"})
	waitFor(t, alice, "joined-session")
	joinedEvent := waitFor(t, moderator, "participant-joined")
	aliceID, _ := joinedEvent["connId"].(string)
	if joinedEvent["displayName"] != "Alice" || aliceID == "" {
		t.Fatalf("unexpected join broadcast %v", joinedEvent)
	}

	send(t, moderator, "remove-participant", map[string]any{"targetId": aliceID})
	waitFor(t, alice, "removed-notice")
	removed := waitFor(t, moderator, "participant-removed")
	if removed["displayName"] != "Alice" || removed["activeCount"].(float64) != 0 {
		t.Fatalf("unexpected removal broadcast %v", removed)
	}
}
