package chat

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/askfolio/internal/usecase/retrieval"
)

// RAGSource retrieves live context for every message.
type RAGSource struct {
	retriever *retrieval.Retriever
	topK      int
	maxChars  int
}

// NewRAGSource creates a retrieval-backed context source.
func NewRAGSource(r *retrieval.Retriever, topK, maxChars int) *RAGSource {
	return &RAGSource{retriever: r, topK: topK, maxChars: maxChars}
}

// Context implements ContextSource.
func (s *RAGSource) Context(ctx context.Context, query string) (string, error) {
	res, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	return retrieval.AssembleWithin(res, s.maxChars), nil
}

// StaticSource serves a fixed block, such as a precomputed profile summary.
type StaticSource struct {
	text string
}

// NewStaticSource creates a source that always returns text.
func NewStaticSource(text string) *StaticSource {
	if text == "" {
		text = retrieval.NoContext
	}
	return &StaticSource{text: text}
}

// Context implements ContextSource.
func (s *StaticSource) Context(context.Context, string) (string, error) {
	return s.text, nil
}
