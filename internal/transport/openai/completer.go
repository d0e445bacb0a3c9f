package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/metrics"
)

var _ domain.StreamCompleter = (*Completer)(nil)

// CompleterConfig holds the chat completion provider settings.
type CompleterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // per call, including the whole stream
	Limiter *rate.Limiter // optional outbound limiter
	Logger  *zap.Logger
}

// Completer runs chat completions against an OpenAI-compatible API.
type Completer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCompleter creates an OpenAI-compatible chat completer.
func NewCompleter(cfg *CompleterConfig) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:  newClient(cfg.APIKey, cfg.BaseURL),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: cfg.Limiter,
		logger:  logger,
	}
}

// Model returns the completion model name.
func (c *Completer) Model() string { return c.model }

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	metrics.CompletionRequestDuration.WithLabelValues(c.model, "sync").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "sync", "error").Inc()
		return "", classifyError("create chat completion", err)
	}
	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "sync", "error").Inc()
		return "", fmt.Errorf("create chat completion: no choices: %w", domain.ErrUpstreamUnavailable)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "sync", "success").Inc()
	c.logger.Debug("Chat completion finished",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream implements domain.StreamCompleter. The per-call timeout
// spans the whole stream and is released by Close.
func (c *Completer) CompleteStream(ctx context.Context, req domain.CompletionRequest) (domain.CompletionStream, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		cancel()
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "stream", "error").Inc()
		return nil, classifyError("create chat completion stream", err)
	}
	return &completionStream{
		stream: stream,
		cancel: cancel,
		model:  c.model,
		start:  time.Now(),
	}, nil
}

func (c *Completer) buildRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (c *Completer) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("completion rate limit: %w", err)
	}
	return nil
}

func (c *Completer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// completionStream adapts go-openai's stream to domain.CompletionStream.
type completionStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
	model  string
	start  time.Time
	failed bool
	closed bool
}

// Recv returns the next non-empty content delta, or io.EOF when the stream ends.
func (s *completionStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			s.failed = true
			return "", classifyError("recv chat completion stream", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		metrics.StreamFragmentsTotal.WithLabelValues(s.model).Inc()
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *completionStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.cancel()

	status := "success"
	if s.failed {
		status = "error"
	}
	metrics.CompletionRequestsTotal.WithLabelValues(s.model, "stream", status).Inc()
	metrics.CompletionRequestDuration.WithLabelValues(s.model, "stream").Observe(time.Since(s.start).Seconds())

	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close chat completion stream: %w", err)
	}
	return nil
}
