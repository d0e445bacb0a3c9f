package domain

import "context"

// RoleSystem is the system message role, used only on the wire.
const RoleSystem Role = "system"

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Completer runs a non-streaming chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionStream yields completion fragments until io.EOF.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// StreamCompleter opens a streaming chat completion.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, req CompletionRequest) (CompletionStream, error)
}
