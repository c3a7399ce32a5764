package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/serenova-ai/serenova/pkg/core"
	"github.com/serenova-ai/serenova/pkg/core/turn"
	"github.com/serenova-ai/serenova/pkg/core/types"
	"github.com/serenova-ai/serenova/pkg/gateway/metrics"
	"github.com/serenova-ai/serenova/pkg/gateway/mw"
)

// messageRequest is the body of chat-creating and message-sending calls.
type messageRequest struct {
	Message string `json:"message"`
}

// ChatsHandler serves the typed chat surface under /api/chats.
type ChatsHandler struct {
	Turns   *turn.Orchestrator
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Create handles POST /api/chats: the first message starts a new chat.
func (h ChatsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req messageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeErr(w, reqID, core.NewValidationErrorWithParam("message must not be empty", "message"))
		return
	}

	result, err := h.Turns.ProcessTurn(r.Context(), p.UserID, types.TurnRequest{
		Kind:      types.KindChat,
		Utterance: req.Message,
	})
	if err != nil {
		h.recordTurn("error", false)
		writeErr(w, reqID, err)
		return
	}
	h.recordTurn("ok", result.Degraded)
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /api/chats.
func (h ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	convs, err := h.Turns.List(r.Context(), p.UserID, types.KindChat)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// Get handles GET /api/chats/{id}.
func (h ChatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	conv, err := h.Turns.Get(r.Context(), p.UserID, r.PathValue("id"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/chats/{id}.
func (h ChatsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	if err := h.Turns.Delete(r.Context(), p.UserID, r.PathValue("id")); err != nil {
		writeErr(w, reqID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Message handles POST /api/chats/{id}/messages: one text turn on an
// existing chat.
func (h ChatsHandler) Message(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req messageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}

	result, err := h.Turns.ProcessTurn(r.Context(), p.UserID, types.TurnRequest{
		ConversationID: r.PathValue("id"),
		Utterance:      req.Message,
	})
	if err != nil {
		h.recordTurn("error", false)
		writeErr(w, reqID, err)
		return
	}
	h.recordTurn("ok", result.Degraded)
	writeJSON(w, http.StatusOK, result)
}

func (h ChatsHandler) recordTurn(status string, degraded bool) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.RecordTurn(string(types.KindChat), status)
	if degraded {
		h.Metrics.RecordDegraded()
	}
}
