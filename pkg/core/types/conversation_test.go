package types

import (
	"errors"
	"testing"
	"time"

	"github.com/serenova-ai/serenova/pkg/core"
)

func TestHistoryMapsSendersToRoles(t *testing.T) {
	msgs := []Message{
		{Content: "hello", Sender: SenderUser},
		{Content: "hi there", Sender: SenderAI},
		{Content: "how are you", Sender: SenderUser},
	}

	hist := History(msgs)
	if len(hist) != 3 {
		t.Fatalf("len(hist)=%d, want 3", len(hist))
	}
	want := []Role{RoleUser, RoleAssistant, RoleUser}
	for i, h := range hist {
		if h.Role != want[i] {
			t.Fatalf("hist[%d].Role=%q, want %q", i, h.Role, want[i])
		}
		if h.Content != msgs[i].Content {
			t.Fatalf("hist[%d].Content=%q, want %q", i, h.Content, msgs[i].Content)
		}
	}
}

func TestTurnRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     TurnRequest
		wantErr bool
	}{
		{"ok existing", TurnRequest{ConversationID: "c1", Utterance: "hi"}, false},
		{"ok new chat", TurnRequest{Kind: KindChat, Utterance: "hi"}, false},
		{"empty", TurnRequest{ConversationID: "c1", Utterance: ""}, true},
		{"whitespace", TurnRequest{ConversationID: "c1", Utterance: "   \t\n"}, true},
		{"new without kind", TurnRequest{Utterance: "hi"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				var coreErr *core.Error
				if !errors.As(err, &coreErr) || coreErr.Type != core.ErrValidation {
					t.Fatalf("err=%v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err=%v, want nil", err)
			}
		})
	}
}

func TestConversationCloneIsDeep(t *testing.T) {
	orig := &Conversation{
		ID:       "c1",
		OwnerID:  "u1",
		Kind:     KindChat,
		Messages: []Message{{Content: "hello", Sender: SenderUser, Timestamp: time.Now()}},
	}
	cp := orig.Clone()
	cp.Messages[0].Content = "mutated"
	cp.Messages = append(cp.Messages, Message{Content: "extra", Sender: SenderAI})

	if orig.Messages[0].Content != "hello" {
		t.Fatalf("clone mutation leaked into original: %q", orig.Messages[0].Content)
	}
	if len(orig.Messages) != 1 {
		t.Fatalf("len(orig.Messages)=%d, want 1", len(orig.Messages))
	}
}
