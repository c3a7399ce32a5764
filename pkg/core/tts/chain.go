package tts

import (
	"context"
	"log/slog"
)

// Chain tries each provider in order and returns the first audio produced.
// Voice output is best-effort: when every provider fails (or none are
// configured) the chain returns (nil, nil) so the caller can deliver a
// text-only reply instead of failing the turn.
type Chain struct {
	logger    *slog.Logger
	providers []Provider
	record    func(provider, outcome string)
}

// NewChain builds a synthesis chain. Nil providers are skipped.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{logger: logger, providers: kept}
}

// SetRecorder registers an observer called once per provider attempt with
// outcome "ok", "error", or "miss". Typically a metrics counter.
func (c *Chain) SetRecorder(record func(provider, outcome string)) {
	c.record = record
}

func (c *Chain) observe(provider, outcome string) {
	if c.record != nil {
		c.record(provider, outcome)
	}
}

// Synthesize produces audio for the text, or nil when no provider can.
func (c *Chain) Synthesize(ctx context.Context, text string) (*Audio, error) {
	for _, p := range c.providers {
		audio, err := p.Synthesize(ctx, text)
		if err != nil {
			c.observe(p.Name(), "error")
			c.logger.Warn("speech synthesis failed",
				slog.String("provider", p.Name()),
				slog.String("error", err.Error()))
			continue
		}
		if audio != nil {
			c.observe(p.Name(), "ok")
			return audio, nil
		}
		c.observe(p.Name(), "miss")
	}
	return nil, nil
}
