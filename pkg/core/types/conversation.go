// Package types defines the companion domain model: conversations, messages,
// and the transient shapes exchanged with the turn orchestrator.
package types

import (
	"strings"
	"time"
)

// Kind distinguishes typed chat conversations from voice calls.
type Kind string

const (
	KindChat Kind = "chat"
	KindCall Kind = "call"
)

// Valid reports whether k is a known conversation kind.
func (k Kind) Valid() bool {
	return k == KindChat || k == KindCall
}

// Status is the lifecycle state of a call conversation. Chats are always
// active.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Message is a single utterance in a conversation. Messages are immutable
// once appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsVoice   bool      `json:"isVoice"`
	AudioURL  string    `json:"audioUrl,omitempty"`
}

// Conversation is a titled, ordered message sequence owned by one user.
// Mutated append-only by the turn orchestrator.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
}

// Clone returns a deep copy so store snapshots cannot be mutated by callers.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}

// Role is a role tag in the history sent to the completion oracle.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged entry of a completion request.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History maps stored messages to role-tagged completion input, in stored
// order.
func History(msgs []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Sender == SenderAI {
			role = RoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: m.Content})
	}
	return out
}

// TurnRequest is the transient input to one orchestrated turn. A missing
// ConversationID means "create a new conversation".
type TurnRequest struct {
	ConversationID string
	Kind           Kind
	Utterance      string
	IsVoice        bool
}

// Validate rejects empty utterances before any side effect takes place.
func (r TurnRequest) Validate() error {
	if strings.TrimSpace(r.Utterance) == "" {
		return errEmptyUtterance
	}
	if r.ConversationID == "" && !r.Kind.Valid() {
		return errBadKind
	}
	return nil
}

// TurnResult is what the orchestrator hands back after a successful turn.
// Degraded marks turns answered with fallback text; it is operational
// detail and stays off the wire.
type TurnResult struct {
	Conversation *Conversation `json:"conversation"`
	UserMessage  Message       `json:"userMessage"`
	AIMessage    Message       `json:"aiMessage"`
	Degraded     bool          `json:"-"`
}
