package http

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livepoll-service/internal/app"
)

// Hub is the fan-out channel over live websocket connections. Each
// connection gets a buffered send channel drained by a single writer
// goroutine; a connection belongs to at most one room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

var _ app.Broadcaster = (*Hub)(nil)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	room string
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register tracks a new connection, assigns it an id, and starts its writer.
func (h *Hub) Register(conn *websocket.Conn) string {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 32),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writePump()
	return c.id
}

// Unregister forgets a connection and stops its writer.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
}

func (h *Hub) JoinRoom(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		c.room = room
	}
}

func (h *Hub) LeaveRoom(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok && c.room == room {
		c.room = ""
	}
}

// ToRoom sends an event to every connection in the room. Slow clients lose
// the message rather than blocking the room.
func (h *Hub) ToRoom(room, event string, payload any) {
	data, err := json.Marshal(envelope{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s event: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.room != room {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("client %s send buffer full, dropping %s", c.id, event)
		}
	}
}

// ToConn sends an event to a single connection, no-op if it is gone. The
// lock is held across the send: Unregister closes the channel only after
// deleting the client under the write lock, so a looked-up channel cannot be
// closed mid-send.
func (h *Hub) ToConn(connID, event string, payload any) {
	data, err := json.Marshal(envelope{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s event: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("client %s send buffer full, dropping %s", c.id, event)
	}
}

func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("ws write to %s: %v", c.id, err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
