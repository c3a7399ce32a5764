// Package turn orchestrates one conversation turn end to end: validate the
// utterance, resolve or create the conversation, ask the completion service
// for a reply, synthesize voice audio for calls, and persist both messages
// atomically.
package turn

import (
	"context"
	"log/slog"
	"sync"

	"github.com/serenova-ai/serenova/pkg/core"
	"github.com/serenova-ai/serenova/pkg/core/completion"
	"github.com/serenova-ai/serenova/pkg/core/tts"
	"github.com/serenova-ai/serenova/pkg/core/types"
	"github.com/serenova-ai/serenova/pkg/store"
)

// DefaultHistoryLimit bounds the context window sent to the completion
// oracle to the most recent messages.
const DefaultHistoryLimit = 40

// CallTitle is the fixed title given to voice call conversations.
const CallTitle = "Voice Call"

// Completer produces reply and title text. It never fails: degraded
// completions carry fallback text.
type Completer interface {
	Reply(ctx context.Context, channel completion.Channel, history []types.ChatMessage) completion.Reply
	Title(ctx context.Context, firstMessage string) string
}

// Synthesizer converts reply text to audio. Nil audio with nil error means
// no provider could serve the request.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.Audio, error)
}

// Notifier fans a turn result out to connected realtime clients. Delivery
// is best-effort and must never block.
type Notifier interface {
	Notify(conversationID string, event any)
}

// Orchestrator runs turns against a store, a completion service, and an
// optional speech chain.
type Orchestrator struct {
	store        store.Store
	completions  Completer
	speech       Synthesizer
	notifier     Notifier
	logger       *slog.Logger
	historyLimit int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSpeech attaches a speech synthesizer used for voice turns.
func WithSpeech(s Synthesizer) Option {
	return func(o *Orchestrator) { o.speech = s }
}

// WithNotifier attaches a realtime notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithHistoryLimit caps the completion context window. Zero or negative
// keeps the default.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// New creates a turn orchestrator.
func New(st store.Store, completions Completer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:        st,
		completions:  completions,
		logger:       logger,
		historyLimit: DefaultHistoryLimit,
		inFlight:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn runs one turn for the owner. Only validation, ownership, and
// store failures surface as errors; provider failures degrade into fallback
// reply text or absent audio.
func (o *Orchestrator) ProcessTurn(ctx context.Context, ownerID string, req types.TurnRequest) (*types.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	conv, err := o.resolve(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}

	if err := o.acquire(conv.ID); err != nil {
		return nil, err
	}
	defer o.release(conv.ID)

	history := types.History(o.window(conv.Messages))
	history = append(history, types.ChatMessage{Role: types.RoleUser, Content: req.Utterance})

	channel := completion.ChannelText
	if conv.Kind == types.KindCall {
		channel = completion.ChannelVoice
	}
	reply := o.completions.Reply(ctx, channel, history)
	if reply.Degraded {
		o.logger.Warn("turn degraded to fallback reply",
			slog.String("conversation_id", conv.ID),
			slog.String("reason", reply.Reason))
	}

	userMsg := types.Message{Content: req.Utterance, Sender: types.SenderUser, IsVoice: req.IsVoice}
	aiMsg := types.Message{Content: reply.Text, Sender: types.SenderAI, IsVoice: conv.Kind == types.KindCall}

	if conv.Kind == types.KindCall && o.speech != nil {
		audio, err := o.speech.Synthesize(ctx, reply.Text)
		if err == nil && audio != nil {
			aiMsg.AudioURL = audio.DataURL()
		}
	}

	updated, err := o.store.AppendMessages(ctx, conv.ID, []types.Message{userMsg, aiMsg})
	if err != nil {
		return nil, err
	}

	n := len(updated.Messages)
	result := &types.TurnResult{
		Conversation: updated,
		UserMessage:  updated.Messages[n-2],
		AIMessage:    updated.Messages[n-1],
		Degraded:     reply.Degraded,
	}
	if o.notifier != nil {
		o.notifier.Notify(conv.ID, result)
	}
	return result, nil
}

// StartCall creates an empty, active call conversation for the owner.
func (o *Orchestrator) StartCall(ctx context.Context, ownerID string) (*types.Conversation, error) {
	return o.store.Create(ctx, ownerID, types.KindCall, CallTitle, nil)
}

// EndCall marks the call ended and records endedAt.
func (o *Orchestrator) EndCall(ctx context.Context, ownerID, id string) (*types.Conversation, error) {
	if _, err := o.owned(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return o.store.SetStatus(ctx, id, types.StatusEnded)
}

// Get returns the owner's conversation by ID.
func (o *Orchestrator) Get(ctx context.Context, ownerID, id string) (*types.Conversation, error) {
	return o.owned(ctx, ownerID, id)
}

// List returns the owner's conversations of the given kind, newest first.
func (o *Orchestrator) List(ctx context.Context, ownerID string, kind types.Kind) ([]*types.Conversation, error) {
	return o.store.ListByOwner(ctx, ownerID, kind)
}

// Delete removes the owner's conversation.
func (o *Orchestrator) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := o.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return o.store.DeleteByID(ctx, id)
}

// resolve loads the target conversation, or creates one with a generated
// title when no ID was given.
func (o *Orchestrator) resolve(ctx context.Context, ownerID string, req types.TurnRequest) (*types.Conversation, error) {
	if req.ConversationID != "" {
		return o.owned(ctx, ownerID, req.ConversationID)
	}
	title := o.completions.Title(ctx, req.Utterance)
	if req.Kind == types.KindCall {
		title = CallTitle
	}
	return o.store.Create(ctx, ownerID, req.Kind, title, nil)
}

// owned fetches a conversation and hides other owners' conversations behind
// a not-found error.
func (o *Orchestrator) owned(ctx context.Context, ownerID, id string) (*types.Conversation, error) {
	conv, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

// window returns the most recent historyLimit messages.
func (o *Orchestrator) window(msgs []types.Message) []types.Message {
	if len(msgs) <= o.historyLimit {
		return msgs
	}
	return msgs[len(msgs)-o.historyLimit:]
}

func (o *Orchestrator) acquire(conversationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[conversationID]; busy {
		return core.NewConflictError("a turn is already in progress on this conversation")
	}
	o.inFlight[conversationID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, conversationID)
}
