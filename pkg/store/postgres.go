package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serenova-ai/serenova/pkg/core/types"
)

// Postgres persists conversations in a single table with the message
// sequence held as a jsonb array. Appending a turn is a single UPDATE, so
// both messages of a turn become visible together or not at all.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

const conversationColumns = `id, owner_id, title, kind, status, messages, created_at, updated_at, ended_at`

func (p *Postgres) Create(ctx context.Context, ownerID string, kind types.Kind, title string, msgs []types.Message) (*types.Conversation, error) {
	now := time.Now().UTC()
	stamped := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		stamped = append(stamped, stamp(msg, now))
	}
	payload, err := json.Marshal(stamped)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, owner_id, title, kind, status, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+conversationColumns,
		uuid.NewString(), ownerID, title, string(kind), string(types.StatusActive), payload, now,
	)
	return scanConversation(row)
}

func (p *Postgres) AppendMessages(ctx context.Context, id string, msgs []types.Message) (*types.Conversation, error) {
	now := time.Now().UTC()
	stamped := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		stamped = append(stamped, stamp(msg, now))
	}
	payload, err := json.Marshal(stamped)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	row := p.pool.QueryRow(ctx, `
		UPDATE conversations
		SET messages = messages || $2::jsonb, updated_at = $3
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, payload, now,
	)
	return scanConversation(row)
}

func (p *Postgres) ListByOwner(ctx context.Context, ownerID string, kind types.Kind) ([]*types.Conversation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE owner_id = $1 AND kind = $2
		ORDER BY updated_at DESC`,
		ownerID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*types.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (p *Postgres) GetByID(ctx context.Context, id string) (*types.Conversation, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1`,
		id,
	)
	return scanConversation(row)
}

func (p *Postgres) SetStatus(ctx context.Context, id string, status types.Status) (*types.Conversation, error) {
	now := time.Now().UTC()
	row := p.pool.QueryRow(ctx, `
		UPDATE conversations
		SET status = $2,
		    updated_at = $3,
		    ended_at = CASE WHEN $2 = 'ended' THEN $3 ELSE ended_at END
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, string(status), now,
	)
	return scanConversation(row)
}

func (p *Postgres) DeleteByID(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (*types.Conversation, error) {
	var (
		conv    types.Conversation
		kind    string
		status  string
		endedAt *time.Time
	)
	err := row.Scan(
		&conv.ID, &conv.OwnerID, &conv.Title, &kind, &status,
		&conv.Messages, &conv.CreatedAt, &conv.UpdatedAt, &endedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.Kind = types.Kind(kind)
	conv.Status = types.Status(status)
	if endedAt != nil {
		conv.EndedAt = *endedAt
	}
	if conv.Messages == nil {
		conv.Messages = []types.Message{}
	}
	return &conv, nil
}
