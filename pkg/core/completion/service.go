package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serenova-ai/serenova/pkg/core/types"
)

// Channel selects which persona prompt and reply length apply.
type Channel string

const (
	// ChannelText is the typed chat surface.
	ChannelText Channel = "text"
	// ChannelVoice is the spoken call surface.
	ChannelVoice Channel = "voice"
)

const (
	textMaxTokens  = 500
	voiceMaxTokens = 150
	titleMaxTokens = 20

	defaultTemperature = 0.7
	defaultTimeout     = 30 * time.Second
)

// Reply is the outcome of one completion call. Text is always non-empty;
// Degraded marks the fallback path so callers and tests can distinguish it
// without log inspection.
type Reply struct {
	Text     string
	Degraded bool
	Reason   string
}

// Service wraps a Provider with the persona prompts and the degrade-not-fail
// policy: it never returns an error, only a Reply.
type Service struct {
	provider Provider
	logger   *slog.Logger
	timeout  time.Duration
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithTimeout bounds each oracle call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service. A nil provider means no credential was
// configured: every call short-circuits to the unavailable reply without
// network I/O.
func NewService(provider Provider, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		provider: provider,
		logger:   logger,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether a provider is wired.
func (s *Service) Configured() bool {
	return s.provider != nil
}

// Reply asks the oracle for the next assistant turn given the role-tagged
// history. The channel's system prompt is prepended; history must already
// end with the latest user message.
func (s *Service) Reply(ctx context.Context, channel Channel, history []types.ChatMessage) Reply {
	if s.provider == nil {
		return Reply{Text: unavailableReply, Degraded: true, Reason: "no credentials configured"}
	}

	system := chatSystemPrompt
	maxTokens := textMaxTokens
	if channel == ChannelVoice {
		system = voiceSystemPrompt
		maxTokens = voiceMaxTokens
	}

	msgs := make([]types.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, types.ChatMessage{Role: types.RoleSystem, Content: system})
	msgs = append(msgs, history...)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.provider.Complete(callCtx, msgs, Options{
		MaxTokens:   maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		s.logger.Warn("completion degraded",
			"provider", s.provider.Name(),
			"channel", string(channel),
			"error", err,
		)
		return Reply{Text: apologyReply, Degraded: true, Reason: err.Error()}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: apologyReply, Degraded: true, Reason: "empty oracle reply"}
	}
	return Reply{Text: text}
}

// Title generates a 3-5 word conversation title from the first user message.
// Falls back to DefaultTitle on any failure or missing credential.
func (s *Service) Title(ctx context.Context, firstMessage string) string {
	if s.provider == nil {
		return DefaultTitle
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.provider.Complete(callCtx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: titleSystemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf("Generate a short title for a chat that starts with: %q", firstMessage)},
	}, Options{
		MaxTokens:   titleMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		s.logger.Warn("title generation degraded", "provider", s.provider.Name(), "error", err)
		return DefaultTitle
	}

	title := stripQuotes(strings.TrimSpace(text))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// stripQuotes removes one leading and one trailing quote character. The
// pair does not need to match; oracles mix quote styles.
func stripQuotes(s string) string {
	if len(s) >= 2 && isQuote(s[0]) && isQuote(s[len(s)-1]) {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}
