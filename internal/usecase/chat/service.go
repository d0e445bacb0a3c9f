package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/domain/stream"
	"github.com/kailas-cloud/askfolio/internal/logger"
)

// Reply is the outcome of one chat turn.
type Reply struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// Service runs chat turns: resolve session, ground, generate, record.
// A failed turn leaves the session history untouched.
type Service struct {
	sessions     SessionStore
	source       ContextSource
	gen          *Generator
	systemPrompt string
}

// NewService creates a chat service.
func NewService(sessions SessionStore, source ContextSource, gen *Generator, systemPrompt string) *Service {
	return &Service{sessions: sessions, source: source, gen: gen, systemPrompt: systemPrompt}
}

// ValidateMessage rejects blank user messages.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	return nil
}

// Chat answers message in the given session, creating one when needed.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (Reply, error) {
	if err := ValidateMessage(message); err != nil {
		return Reply{}, err
	}

	id, msgs, err := s.prepare(ctx, sessionID, message)
	if err != nil {
		return Reply{SessionID: id}, err
	}

	answer, err := s.gen.Generate(ctx, msgs)
	if err != nil {
		return Reply{SessionID: id}, err
	}

	if err := s.record(ctx, id, message, answer); err != nil {
		return Reply{SessionID: id}, err
	}
	return Reply{Response: answer, SessionID: id}, nil
}

// ChatStream answers message as a stream of events written to w. Validation
// errors are returned before any event is written. Once the session event is
// out, every failure ends the stream with an error event and is also returned.
func (s *Service) ChatStream(ctx context.Context, sessionID, message string, w *stream.Writer) error {
	if err := ValidateMessage(message); err != nil {
		return err
	}

	id, err := s.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	if err := w.Session(id); err != nil {
		return fmt.Errorf("write session event: %w", err)
	}

	msgs, err := s.messages(ctx, id, message)
	if err != nil {
		return s.fail(ctx, w, err)
	}

	answer, err := s.gen.Stream(ctx, msgs, w.Content)
	if err != nil {
		return s.fail(ctx, w, err)
	}

	if err := s.record(ctx, id, message, answer); err != nil {
		return s.fail(ctx, w, err)
	}
	if err := w.Done(); err != nil {
		return fmt.Errorf("write done event: %w", err)
	}
	return nil
}

func (s *Service) prepare(ctx context.Context, sessionID, message string) (string, []domain.Message, error) {
	id, err := s.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("resolve session: %w", err)
	}
	msgs, err := s.messages(ctx, id, message)
	return id, msgs, err
}

func (s *Service) messages(ctx context.Context, id, message string) ([]domain.Message, error) {
	history, err := s.sessions.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	block, err := s.source.Context(ctx, message)
	if err != nil {
		return nil, err
	}
	return BuildMessages(s.systemPrompt, block, history, message), nil
}

func (s *Service) record(ctx context.Context, id, message, answer string) error {
	err := s.sessions.Append(ctx, id,
		domain.Message{Role: domain.RoleUser, Content: message},
		domain.Message{Role: domain.RoleAssistant, Content: answer},
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, w *stream.Writer, cause error) error {
	log := logger.FromContext(ctx)
	if errors.Is(cause, context.Canceled) {
		log.Info("Chat stream cancelled by client")
	} else {
		log.Error("Chat stream failed", zap.Error(cause))
	}
	if err := w.Fail(publicMessage(cause)); err != nil {
		log.Debug("Failed to write error event", zap.Error(err))
	}
	return cause
}

// publicMessage keeps upstream detail out of the stream.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "The assistant is temporarily unavailable. Please try again."
	case errors.Is(err, domain.ErrInvalidRequest):
		return "The request could not be processed."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled."
	default:
		return "Internal error."
	}
}
