package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serenova-ai/serenova/pkg/core/types"
)

// Memory is an in-memory Store. Safe for concurrent use.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*types.Conversation
	now           func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*types.Conversation),
		now:           time.Now,
	}
}

// WithClock overrides the store clock. Test hook.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Create(ctx context.Context, ownerID string, kind types.Kind, title string, msgs []types.Message) (*types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	conv := &types.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Kind:      kind,
		Status:    types.StatusActive,
		Messages:  make([]types.Message, 0, len(msgs)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, msg := range msgs {
		conv.Messages = append(conv.Messages, stamp(msg, now))
	}
	m.conversations[conv.ID] = conv
	return conv.Clone(), nil
}

func (m *Memory) AppendMessages(ctx context.Context, id string, msgs []types.Message) (*types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now().UTC()
	for _, msg := range msgs {
		conv.Messages = append(conv.Messages, stamp(msg, now))
	}
	conv.UpdatedAt = now
	return conv.Clone(), nil
}

func (m *Memory) ListByOwner(ctx context.Context, ownerID string, kind types.Kind) ([]*types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*types.Conversation, 0)
	for _, conv := range m.conversations {
		if conv.OwnerID != ownerID || conv.Kind != kind {
			continue
		}
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (*types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

func (m *Memory) SetStatus(ctx context.Context, id string, status types.Status) (*types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now().UTC()
	conv.Status = status
	conv.UpdatedAt = now
	if status == types.StatusEnded {
		conv.EndedAt = now
	}
	return conv.Clone(), nil
}

func (m *Memory) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	return nil
}

func stamp(msg types.Message, now time.Time) types.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	return msg
}
