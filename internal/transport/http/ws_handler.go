package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
)

// WSHandler upgrades connections and dispatches the wire events into the
// session state machine, chat relay, and history projection.
type WSHandler struct {
	hub      *Hub
	service  *app.SessionService
	chat     *app.ChatRelay
	history  *app.HistoryService
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, service *app.SessionService, chat *app.ChatRelay, history *app.HistoryService) *WSHandler {
	return &WSHandler{
		hub:     hub,
		service: service,
		chat:    chat,
		history: history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createSessionPayload struct {
	SessionID     string `json:"sessionId"`
	ModeratorName string `json:"moderatorName"`
}

type reconnectModeratorPayload struct {
	SessionID string `json:"sessionId"`
}

type joinSessionPayload struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type openQuestionPayload struct {
	Prompt           string          `json:"prompt"`
	Options          []domain.Option `json:"options"`
	TimeLimitSeconds int             `json:"timeLimitSeconds"`
}

type submitAnswerPayload struct {
	OptionID int `json:"optionId"`
}

type postMessagePayload struct {
	Text string `json:"text"`
}

type removeParticipantPayload struct {
	TargetID string `json:"targetId"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ServeWS runs one connection: register with the hub, loop over inbound
// events, and reconcile state on disconnect.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := h.hub.Register(conn)
	defer h.hub.Unregister(connID)
	defer h.service.HandleDisconnect(context.Background(), connID)

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read from %s: %v", connID, err)
			}
			return
		}
		// A malformed frame is the sender's problem, not the connection's.
		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			h.hub.ToConn(connID, "session-error", errorPayload{Kind: "invalid-payload", Message: "malformed payload"})
			continue
		}
		h.dispatch(ctx, connID, inbound)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, inbound inboundMessage) {
	switch inbound.Type {
	case "create-session":
		var p createSessionPayload
		if !h.decode(connID, inbound.Payload, &p) || p.SessionID == "" || p.ModeratorName == "" {
			return
		}
		h.report(connID, h.service.CreateOrAttachModerator(ctx, p.SessionID, p.ModeratorName, connID))
	case "reconnect-moderator":
		var p reconnectModeratorPayload
		if !h.decode(connID, inbound.Payload, &p) || p.SessionID == "" {
			return
		}
		h.report(connID, h.service.ReattachModerator(ctx, p.SessionID, connID))
	case "join-session":
		var p joinSessionPayload
		if !h.decode(connID, inbound.Payload, &p) || p.SessionID == "" || p.DisplayName == "" {
			return
		}
		h.report(connID, h.service.JoinAsParticipant(ctx, p.SessionID, connID, p.DisplayName))
	case "open-question":
		var p openQuestionPayload
		if !h.decode(connID, inbound.Payload, &p) {
			return
		}
		h.report(connID, h.service.OpenQuestion(ctx, connID, p.Prompt, p.Options, p.TimeLimitSeconds))
	case "submit-answer":
		var p submitAnswerPayload
		if !h.decode(connID, inbound.Payload, &p) {
			return
		}
		h.report(connID, h.service.SubmitAnswer(ctx, connID, p.OptionID))
	case "post-message":
		var p postMessagePayload
		if !h.decode(connID, inbound.Payload, &p) || p.Text == "" {
			return
		}
		h.report(connID, h.chat.PostMessage(ctx, connID, p.Text))
	case "remove-participant":
		var p removeParticipantPayload
		if !h.decode(connID, inbound.Payload, &p) || p.TargetID == "" {
			return
		}
		h.report(connID, h.service.RemoveParticipant(ctx, connID, p.TargetID))
	case "request-history":
		history, err := h.history.ForConnection(ctx, h.service.Registry(), connID)
		if err != nil {
			h.report(connID, err)
			return
		}
		h.hub.ToConn(connID, app.EventSessionHistory, history)
	default:
		h.hub.ToConn(connID, "session-error", errorPayload{Kind: "unsupported", Message: "unsupported message type"})
	}
}

func (h *WSHandler) decode(connID string, raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		h.hub.ToConn(connID, "session-error", errorPayload{Kind: "invalid-payload", Message: "malformed payload"})
		return false
	}
	return true
}

// report maps service errors onto the wire. Authorization and duplicate
// failures are dropped on purpose so callers cannot probe for state.
func (h *WSHandler) report(connID string, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		h.hub.ToConn(connID, "session-error", errorPayload{Kind: "not-found", Message: "session not found"})
	case errors.Is(err, domain.ErrNameTaken):
		h.hub.ToConn(connID, "session-error", errorPayload{Kind: "name-conflict", Message: "name already taken in this session"})
	case errors.Is(err, domain.ErrQuestionOpen):
		h.hub.ToConn(connID, "session-error", errorPayload{Kind: "already-open", Message: "a question is already open"})
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrNoOpenQuestion),
		errors.Is(err, domain.ErrQuestionClosed),
		errors.Is(err, domain.ErrParticipantNotFound):
		// fail closed, no leak of existence
	default:
		log.Printf("event from %s failed: %v", connID, err)
	}
}
