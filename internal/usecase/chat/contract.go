package chat

import (
	"context"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// SessionStore is the session subset the chat service needs.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (string, error)
	Append(ctx context.Context, id string, msgs ...domain.Message) error
	History(ctx context.Context, id string) ([]domain.Message, error)
}

// ContextSource produces the grounding block for a user message.
type ContextSource interface {
	Context(ctx context.Context, query string) (string, error)
}
