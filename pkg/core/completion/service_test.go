package completion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/serenova-ai/serenova/pkg/core/types"
)

type fakeProvider struct {
	reply    string
	err      error
	lastMsgs []types.ChatMessage
	lastOpts Options
	calls    int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, msgs []types.ChatMessage, opts Options) (string, error) {
	p.calls++
	p.lastMsgs = msgs
	p.lastOpts = opts
	return p.reply, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReplyPrependsSystemPromptPerChannel(t *testing.T) {
	p := &fakeProvider{reply: "take a slow breath"}
	s := NewService(p, discardLogger())

	history := []types.ChatMessage{{Role: types.RoleUser, Content: "I feel anxious"}}

	got := s.Reply(context.Background(), ChannelVoice, history)
	if got.Degraded {
		t.Fatalf("Degraded=true, want ok")
	}
	if got.Text != "take a slow breath" {
		t.Fatalf("Text=%q", got.Text)
	}
	if p.lastMsgs[0].Role != types.RoleSystem || !strings.Contains(p.lastMsgs[0].Content, "1-3 sentences") {
		t.Fatalf("voice system prompt missing: %q", p.lastMsgs[0].Content)
	}
	if p.lastOpts.MaxTokens != voiceMaxTokens {
		t.Fatalf("MaxTokens=%d, want %d", p.lastOpts.MaxTokens, voiceMaxTokens)
	}

	s.Reply(context.Background(), ChannelText, history)
	if !strings.Contains(p.lastMsgs[0].Content, "FORMATTING INSTRUCTIONS") {
		t.Fatalf("text system prompt missing formatting block")
	}
	if p.lastOpts.MaxTokens != textMaxTokens {
		t.Fatalf("MaxTokens=%d, want %d", p.lastOpts.MaxTokens, textMaxTokens)
	}
}

func TestReplyDegradeLawNeverErrors(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	s := NewService(p, discardLogger())

	got := s.Reply(context.Background(), ChannelText, []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}})
	if !got.Degraded {
		t.Fatalf("expected degraded reply")
	}
	if got.Text == "" {
		t.Fatalf("degraded reply must be non-empty")
	}
	if !strings.Contains(got.Text, "having trouble processing") {
		t.Fatalf("Text=%q, want apology", got.Text)
	}
	if got.Reason == "" {
		t.Fatalf("Reason empty")
	}
}

func TestReplyWithoutCredentialsSkipsNetwork(t *testing.T) {
	s := NewService(nil, discardLogger())
	got := s.Reply(context.Background(), ChannelText, nil)
	if !got.Degraded {
		t.Fatalf("expected degraded reply")
	}
	if !strings.Contains(got.Text, "currently unavailable") {
		t.Fatalf("Text=%q", got.Text)
	}
}

func TestTitleStripsQuotes(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"Coping With Anxiety"`, "Coping With Anxiety"},
		{`'Morning Check In'`, "Morning Check In"},
		{`Sleep Troubles`, "Sleep Troubles"},
		{`  "Managing Stress"  `, "Managing Stress"},
		{`"Mixed Quote Styles'`, "Mixed Quote Styles"},
		{`'Another Mixed Pair"`, "Another Mixed Pair"},
	}
	for _, tc := range cases {
		p := &fakeProvider{reply: tc.raw}
		s := NewService(p, discardLogger())
		if got := s.Title(context.Background(), "first message"); got != tc.want {
			t.Fatalf("Title(%q)=%q, want %q", tc.raw, got, tc.want)
		}
		if p.lastOpts.MaxTokens != titleMaxTokens {
			t.Fatalf("MaxTokens=%d, want %d", p.lastOpts.MaxTokens, titleMaxTokens)
		}
	}
}

func TestTitleFallsBack(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	s := NewService(p, discardLogger())
	if got := s.Title(context.Background(), "hello"); got != DefaultTitle {
		t.Fatalf("Title=%q, want %q", got, DefaultTitle)
	}

	s = NewService(nil, discardLogger())
	if got := s.Title(context.Background(), "hello"); got != DefaultTitle {
		t.Fatalf("Title without provider=%q, want %q", got, DefaultTitle)
	}
}
