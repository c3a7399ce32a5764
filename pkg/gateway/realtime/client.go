package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const sendBuffer = 16

// clientMessage is what connected clients may send: room membership only.
type clientMessage struct {
	Type           string `json:"type"` // "join" | "leave"
	ConversationID string `json:"conversationId"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// trySend queues a payload without blocking; full buffers drop the event.
// send is never closed, so a concurrent drop cannot panic the notifier:
// payloads queued for a dead client are simply never drained.
func (c *client) trySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// Handler upgrades /ws connections and serves room membership.
type Handler struct {
	Hub            *Hub
	Logger         *slog.Logger
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins map[string]struct{}
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return h.originAllowed(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		hub:  h.Hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go h.writePump(c)
	h.readPump(c)
}

func (h Handler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.AllowedOrigins) == 0 {
		return true
	}
	_, ok := h.AllowedOrigins[origin]
	return ok
}

func (h Handler) readPump(c *client) {
	defer func() {
		h.Hub.dropClient(c)
		close(c.done)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4 << 10)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ConversationID == "" {
			continue
		}
		switch msg.Type {
		case "join":
			h.Hub.join(msg.ConversationID, c)
		case "leave":
			h.Hub.leave(msg.ConversationID, c)
		}
	}
}

func (h Handler) writePump(c *client) {
	pingInterval := h.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := h.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
