// Package store persists conversations. Two implementations are provided:
// Postgres for deployments and an in-memory store for dev mode and tests.
package store

import (
	"context"

	"github.com/serenova-ai/serenova/pkg/core"
	"github.com/serenova-ai/serenova/pkg/core/types"
)

// ErrNotFound is returned for unknown conversation IDs.
var ErrNotFound = core.NewNotFoundError("conversation not found")

// Store is the conversation persistence contract. Appends within one call
// are atomic: a whole turn becomes visible together or not at all.
type Store interface {
	// Create persists a new conversation and returns it with IDs and
	// timestamps assigned.
	Create(ctx context.Context, ownerID string, kind types.Kind, title string, msgs []types.Message) (*types.Conversation, error)

	// AppendMessages appends msgs in the given order and refreshes
	// updatedAt. Fails with ErrNotFound if the conversation is absent.
	AppendMessages(ctx context.Context, id string, msgs []types.Message) (*types.Conversation, error)

	// ListByOwner returns the owner's conversations of the given kind,
	// newest updatedAt first. An owner with none gets an empty slice,
	// never an error.
	ListByOwner(ctx context.Context, ownerID string, kind types.Kind) ([]*types.Conversation, error)

	// GetByID fails with ErrNotFound for unknown IDs.
	GetByID(ctx context.Context, id string) (*types.Conversation, error)

	// SetStatus updates a call's lifecycle status. Setting StatusEnded also
	// records endedAt.
	SetStatus(ctx context.Context, id string, status types.Status) (*types.Conversation, error)

	// DeleteByID removes the conversation. A second delete of the same ID
	// fails with ErrNotFound.
	DeleteByID(ctx context.Context, id string) error
}
