package handlers

import (
	"log/slog"
	"net/http"

	"github.com/serenova-ai/serenova/pkg/core/turn"
	"github.com/serenova-ai/serenova/pkg/core/types"
	"github.com/serenova-ai/serenova/pkg/gateway/metrics"
	"github.com/serenova-ai/serenova/pkg/gateway/mw"
)

// CallsHandler serves the voice call surface under /api/calls.
type CallsHandler struct {
	Turns   *turn.Orchestrator
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Start handles POST /api/calls: creates an empty active call.
func (h CallsHandler) Start(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	conv, err := h.Turns.StartCall(r.Context(), p.UserID)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/calls.
func (h CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	convs, err := h.Turns.List(r.Context(), p.UserID, types.KindCall)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// Get handles GET /api/calls/{id}.
func (h CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// Message handles POST /api/calls/{id}/messages: one voice turn with the
// transcribed utterance.
func (h CallsHandler) Message(w http.ResponseWriter, r *http.Request) {
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
		IsVoice:        true,
	})
	if err != nil {
		h.recordTurn("error", false)
		writeErr(w, reqID, err)
		return
	}
	h.recordTurn("ok", result.Degraded)
	writeJSON(w, http.StatusOK, result)
}

// End handles POST /api/calls/{id}/end.
func (h CallsHandler) End(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	conv, err := h.Turns.EndCall(r.Context(), p.UserID, r.PathValue("id"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/calls/{id}.
func (h CallsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h CallsHandler) recordTurn(status string, degraded bool) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.RecordTurn(string(types.KindCall), status)
	if degraded {
		h.Metrics.RecordDegraded()
	}
}
