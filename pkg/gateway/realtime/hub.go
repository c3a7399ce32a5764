// Package realtime fans turn results out to connected clients over
// WebSocket. Clients join per-conversation rooms; delivery is best-effort
// and never blocks the turn pipeline.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is the wire shape pushed to room members.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Payload        any    `json:"payload,omitempty"`
}

// Hub tracks rooms and their member connections.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*client]struct{}),
	}
}

// Notify pushes an event to every member of the conversation's room.
// Slow consumers are skipped; nothing is retried.
func (h *Hub) Notify(conversationID string, event any) {
	payload, err := json.Marshal(Event{
		Type:           "turn",
		ConversationID: conversationID,
		Payload:        event,
	})
	if err != nil {
		h.logger.Warn("drop realtime event", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	members := make([]*client, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		c.trySend(payload)
	}
}

// RoomSize reports the member count of one room.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) join(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[conversationID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leave(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

func (h *Hub) dropClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
}
