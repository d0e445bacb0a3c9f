// Package chat answers user messages grounded in retrieved context and keeps
// the conversation history in a session store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// GeneratorConfig holds the completion parameters.
type GeneratorConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Validate checks the parameters; failures wrap domain.ErrConfig.
func (c GeneratorConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: completion model is required", domain.ErrConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0, 2], got %v", domain.ErrConfig, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", domain.ErrConfig, c.MaxTokens)
	}
	return nil
}

// Generator turns a message list into an answer. It never retries.
type Generator struct {
	completer domain.StreamCompleter
	cfg       GeneratorConfig
}

// NewGenerator validates cfg and wraps completer.
func NewGenerator(completer domain.StreamCompleter, cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{completer: completer, cfg: cfg}, nil
}

// BuildMessages lays out one system message carrying the prompt and context,
// then the history in order, then the user message.
func BuildMessages(systemPrompt, contextBlock string, history []domain.Message, userMessage string) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{
		Role:    domain.RoleSystem,
		Content: systemPrompt + "\n\n--- CONTEXT ---\n" + contextBlock + "\n--- END ---",
	})
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: userMessage})
	return msgs
}

// Generate returns the complete answer.
func (g *Generator) Generate(ctx context.Context, msgs []domain.Message) (string, error) {
	answer, err := g.completer.Complete(ctx, g.request(msgs))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// Stream relays fragments to emit in arrival order and returns the full text.
// It stops on ctx cancellation or an emit error; the upstream stream is
// always closed.
func (g *Generator) Stream(ctx context.Context, msgs []domain.Message, emit func(fragment string) error) (string, error) {
	st, err := g.completer.CompleteStream(ctx, g.request(msgs))
	if err != nil {
		return "", fmt.Errorf("open answer stream: %w", err)
	}
	defer func() { _ = st.Close() }()

	var sb strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return sb.String(), fmt.Errorf("answer stream: %w", err)
		}
		frag, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), fmt.Errorf("answer stream: %w", err)
		}
		sb.WriteString(frag)
		if err := emit(frag); err != nil {
			return sb.String(), fmt.Errorf("emit fragment: %w", err)
		}
	}
}

func (g *Generator) request(msgs []domain.Message) domain.CompletionRequest {
	return domain.CompletionRequest{
		Messages:    msgs,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}
}
