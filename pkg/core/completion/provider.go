// Package completion talks to the remote text-completion oracle. Providers
// implement the raw transport; Service layers the persona prompts and the
// degrade-not-fail policy on top.
package completion

import (
	"context"

	"github.com/serenova-ai/serenova/pkg/core/types"
)

// Options bound a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Provider is the raw transport to one completion backend. Implementations
// may fail; absorbing failures is the Service's job.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Complete sends the role-tagged messages and returns the assistant
	// reply text.
	Complete(ctx context.Context, msgs []types.ChatMessage, opts Options) (string, error)
}
