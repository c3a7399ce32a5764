package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/serenova-ai/serenova/pkg/core/capture"
	"github.com/serenova-ai/serenova/pkg/core/types"
	"github.com/serenova-ai/serenova/pkg/gateway/auth"
	"github.com/serenova-ai/serenova/pkg/gateway/lifecycle"
	"github.com/serenova-ai/serenova/pkg/gateway/realtime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	conv     *types.Conversation
	audioURL string
	turns    chan string
}

func (f *fakeRunner) Get(ctx context.Context, ownerID, id string) (*types.Conversation, error) {
	return f.conv, nil
}

func (f *fakeRunner) ProcessTurn(ctx context.Context, ownerID string, req types.TurnRequest) (*types.TurnResult, error) {
	if f.turns != nil {
		f.turns <- req.Utterance
	}
	return &types.TurnResult{
		Conversation: f.conv,
		UserMessage:  types.Message{Content: req.Utterance, Sender: types.SenderUser, IsVoice: true},
		AIMessage:    types.Message{Content: "gentle reply", Sender: types.SenderAI, IsVoice: true, AudioURL: f.audioURL},
	}, nil
}

func withPrincipal(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithPrincipal(r.Context(), &auth.Principal{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func dialSession(t *testing.T, runner *fakeRunner, lc *lifecycle.Lifecycle) *websocket.Conn {
	t.Helper()
	h := Handler{
		Turns:     runner,
		Logger:    discardLogger(),
		Tracker:   realtime.NewTracker(),
		Lifecycle: lc,
		CaptureConfig: capture.Config{
			QuietPeriod:   20 * time.Millisecond,
			MinTranscript: 11,
			RearmDelay:    20 * time.Millisecond,
		},
		TurnTimeout: 2 * time.Second,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws/call/{id}", withPrincipal("user-1", h))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/call/" + runner.conv.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func activeCall() *types.Conversation {
	return &types.Conversation{
		ID:      "call-1",
		OwnerID: "user-1",
		Title:   "Voice Call",
		Kind:    types.KindCall,
		Status:  types.StatusActive,
	}
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) serverMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", wantType, err)
		}
		var msg serverMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if msg.Type == wantType {
			return msg
		}
	}
}

func TestSessionRunsTurnOnFinalizedTranscript(t *testing.T) {
	runner := &fakeRunner{conv: activeCall(), turns: make(chan string, 1)}
	conn := dialSession(t, runner, nil)

	if err := conn.WriteJSON(clientMessage{Type: "transcript", Text: "I feel anxious tonight", Final: true}); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	select {
	case got := <-runner.turns:
		if got != "I feel anxious tonight" {
			t.Fatalf("utterance = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator never invoked")
	}

	msg := readUntil(t, conn, "turn")
	if msg.Result == nil || msg.Result.AIMessage.Content != "gentle reply" {
		t.Fatalf("turn result = %+v", msg.Result)
	}
}

func TestSessionEntersSpeakingWhenAudioPresent(t *testing.T) {
	runner := &fakeRunner{conv: activeCall(), audioURL: "data:audio/mpeg;base64,bXAz"}
	conn := dialSession(t, runner, nil)

	if err := conn.WriteJSON(clientMessage{Type: "transcript", Text: "please say this back aloud", Final: true}); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	for {
		msg := readUntil(t, conn, "phase")
		if msg.To == string(capture.PhaseSpeaking) {
			break
		}
		if msg.To == string(capture.PhaseListening) && msg.From == string(capture.PhaseFinalizing) {
			t.Fatal("machine resumed listening instead of speaking")
		}
	}

	// Playback end resumes listening.
	if err := conn.WriteJSON(clientMessage{Type: "playback_ended"}); err != nil {
		t.Fatalf("write playback_ended: %v", err)
	}
	for {
		msg := readUntil(t, conn, "phase")
		if msg.From == string(capture.PhaseSpeaking) && msg.To == string(capture.PhaseListening) {
			return
		}
	}
}

func TestSessionShortTranscriptNeverReachesOrchestrator(t *testing.T) {
	runner := &fakeRunner{conv: activeCall(), turns: make(chan string, 1)}
	conn := dialSession(t, runner, nil)

	if err := conn.WriteJSON(clientMessage{Type: "transcript", Text: "yeah", Final: true}); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	select {
	case got := <-runner.turns:
		t.Fatalf("short transcript %q reached the orchestrator", got)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSessionMuteGoesIdle(t *testing.T) {
	runner := &fakeRunner{conv: activeCall()}
	conn := dialSession(t, runner, nil)

	if err := conn.WriteJSON(clientMessage{Type: "mute", Muted: true}); err != nil {
		t.Fatalf("write mute: %v", err)
	}
	for {
		msg := readUntil(t, conn, "phase")
		if msg.To == string(capture.PhaseIdle) {
			return
		}
	}
}

func TestSessionRefusedWhileDraining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	runner := &fakeRunner{conv: activeCall()}

	h := Handler{Turns: runner, Logger: discardLogger(), Lifecycle: lc}
	mux := http.NewServeMux()
	mux.Handle("GET /ws/call/{id}", withPrincipal("user-1", h))
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/call/call-1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail while draining")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSessionRejectsEndedCall(t *testing.T) {
	conv := activeCall()
	conv.Status = types.StatusEnded
	runner := &fakeRunner{conv: conv}

	h := Handler{Turns: runner, Logger: discardLogger()}
	mux := http.NewServeMux()
	mux.Handle("GET /ws/call/{id}", withPrincipal("user-1", h))
	server := httptest.NewServer(mux)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/call/call-1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for an ended call")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("resp = %+v", resp)
	}
}
