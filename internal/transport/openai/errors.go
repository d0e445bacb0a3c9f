package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

const codeContextLengthExceeded = "context_length_exceeded"

// classifyError maps a go-openai failure onto the domain taxonomy:
// timeouts, 429 and 5xx are ErrUpstreamUnavailable; 400/413/422 and
// context_length_exceeded are ErrInvalidRequest; anything else is wrapped as-is.
func classifyError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout: %w", op, domain.ErrUpstreamUnavailable)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == codeContextLengthExceeded {
			return fmt.Errorf("%s: %s: %w", op, apiErr.Message, domain.ErrInvalidRequest)
		}
		return wrapStatus(op, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return wrapStatus(op, reqErr.HTTPStatusCode, detail, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrUpstreamUnavailable)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func wrapStatus(op string, status int, detail string, err error) error {
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("%s: API error %d: %s: %w", op, status, detail, domain.ErrUpstreamUnavailable)
	case status == http.StatusBadRequest ||
		status == http.StatusRequestEntityTooLarge ||
		status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: API error %d: %s: %w", op, status, detail, domain.ErrInvalidRequest)
	default:
		return fmt.Errorf("%s: API error %d: %s: %w", op, status, detail, err)
	}
}

// extractDetail extracts the "detail" field from a JSON error body (OpenAI-compatible proxies).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

// newClient builds a go-openai client. An empty baseURL keeps the public API.
func newClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
