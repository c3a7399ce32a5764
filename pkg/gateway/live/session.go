// Package live serves WebSocket call sessions. Each connection owns one
// capture state machine; finalized utterances run through the turn
// orchestrator and results stream back to the caller.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/serenova-ai/serenova/pkg/core/capture"
	"github.com/serenova-ai/serenova/pkg/core/types"
	"github.com/serenova-ai/serenova/pkg/gateway/auth"
	"github.com/serenova-ai/serenova/pkg/gateway/lifecycle"
	"github.com/serenova-ai/serenova/pkg/gateway/metrics"
	"github.com/serenova-ai/serenova/pkg/gateway/mw"
	"github.com/serenova-ai/serenova/pkg/gateway/realtime"
)

// TurnRunner is the slice of the orchestrator a live session needs.
type TurnRunner interface {
	ProcessTurn(ctx context.Context, ownerID string, req types.TurnRequest) (*types.TurnResult, error)
	Get(ctx context.Context, ownerID, id string) (*types.Conversation, error)
}

// clientMessage is one inbound frame from the call client.
type clientMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// serverMessage is one outbound frame to the call client.
type serverMessage struct {
	Type    string            `json:"type"`
	From    string            `json:"from,omitempty"`
	To      string            `json:"to,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Result  *types.TurnResult `json:"result,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Handler serves GET /ws/call/{id}.
type Handler struct {
	Turns          TurnRunner
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Tracker        *realtime.Tracker
	Lifecycle      *lifecycle.Lifecycle
	CaptureConfig  capture.Config
	TurnTimeout    time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins map[string]struct{}
}

type session struct {
	h       Handler
	conn    *websocket.Conn
	writeMu sync.Mutex
	machine *capture.Machine
	ownerID string
	callID  string
	cancel  context.CancelFunc
	ctx     context.Context
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		http.Error(w, "gateway is draining", http.StatusServiceUnavailable)
		return
	}
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	callID := r.PathValue("id")
	conv, err := h.Turns.Get(r.Context(), principal.UserID, callID)
	if err != nil {
		reqID, _ := mw.RequestIDFrom(r.Context())
		h.logger().Warn("live session rejected",
			slog.String("request_id", reqID),
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	if conv.Kind != types.KindCall || conv.Status == types.StatusEnded {
		http.Error(w, "conversation is not an active call", http.StatusConflict)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return h.originAllowed(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.serve(conn, principal.UserID, callID)
}

func (h Handler) serve(conn *websocket.Conn, ownerID, callID string) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		h:       h,
		conn:    conn,
		ownerID: ownerID,
		callID:  callID,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.machine = capture.New(h.CaptureConfig, capture.Callbacks{
		OnFinalize:    s.finalize,
		OnPhaseChange: s.phaseChanged,
	})

	var unregister func()
	if h.Tracker != nil {
		unregister = h.Tracker.Register("live_"+uuid.NewString(), realtime.Handle{Cancel: cancel})
	}
	if h.Metrics != nil {
		h.Metrics.RecordLiveSessionStart()
	}

	defer func() {
		s.machine.Stop()
		cancel()
		conn.Close()
		if unregister != nil {
			unregister()
		}
		if h.Metrics != nil {
			h.Metrics.RecordLiveSessionEnd("closed")
		}
	}()

	// Cancellation (shutdown, write failure) must unblock the read loop.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go s.pingLoop()
	s.machine.Start()
	s.readLoop()
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(64 << 10)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(serverMessage{Type: "error", Message: "invalid frame"})
			continue
		}
		switch msg.Type {
		case "transcript":
			s.machine.Fragment(msg.Text, msg.Final)
		case "mute":
			s.machine.SetMuted(msg.Muted)
		case "speaker":
			s.machine.SetSpeakerEnabled(msg.Enabled)
		case "playback_ended":
			s.machine.PlaybackEnded()
		case "playback_error":
			s.machine.PlaybackError()
		case "capture_error":
			s.machine.CaptureError(msg.Reason)
		default:
			s.send(serverMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

// finalize runs the finalized utterance through the orchestrator and
// reports the outcome back to both the client and the capture machine.
func (s *session) finalize(transcript string) {
	timeout := s.h.TurnTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	result, err := s.h.Turns.ProcessTurn(ctx, s.ownerID, types.TurnRequest{
		ConversationID: s.callID,
		Utterance:      transcript,
		IsVoice:        true,
	})
	if err != nil {
		s.h.logger().Warn("live turn failed",
			slog.String("call_id", s.callID),
			slog.String("error", err.Error()))
		if s.h.Metrics != nil {
			s.h.Metrics.RecordTurn(string(types.KindCall), "error")
		}
		s.send(serverMessage{Type: "error", Message: "turn failed"})
		s.machine.TurnFailed(err.Error())
		return
	}
	if s.h.Metrics != nil {
		s.h.Metrics.RecordTurn(string(types.KindCall), "ok")
	}
	s.send(serverMessage{Type: "turn", Result: result})
	s.machine.TurnComplete(result.AIMessage.AudioURL != "")
}

func (s *session) phaseChanged(from, to capture.Phase, reason string) {
	s.send(serverMessage{Type: "phase", From: string(from), To: string(to), Reason: reason})
}

func (s *session) send(msg serverMessage) {
	writeTimeout := s.h.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.cancel()
	}
}

func (s *session) pingLoop() {
	pingInterval := s.h.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				s.cancel()
				return
			}
		}
	}
}

func (h Handler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.AllowedOrigins) == 0 {
		return true
	}
	_, ok := h.AllowedOrigins[origin]
	return ok
}

func (h Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
