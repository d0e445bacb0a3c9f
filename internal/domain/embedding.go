package domain

import (
	"context"
	"fmt"
)

// Embedder turns one text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is implemented by embedders that vectorize many texts per request.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by providers that can be probed cheaply.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is a vector and the tokens billed for it. Cache hits bill zero.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// add appends one result and accumulates its usage.
func (b *BatchEmbeddingResult) add(vec []float32, prompt, total int) {
	b.Embeddings = append(b.Embeddings, vec)
	b.PromptTokens += prompt
	b.TotalTokens += total
}

// Merge appends other after b.
func (b *BatchEmbeddingResult) Merge(other BatchEmbeddingResult) {
	b.Embeddings = append(b.Embeddings, other.Embeddings...)
	b.PromptTokens += other.PromptTokens
	b.TotalTokens += other.TotalTokens
}

// EmbedEach embeds texts one request at a time.
func EmbedEach(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d: %w", i, err)
		}
		out.add(res.Embedding, res.PromptTokens, res.TotalTokens)
	}
	return out, nil
}

// EmbedBatch uses e's native batching when it has one and EmbedEach otherwise.
// A reply with the wrong number of vectors is an error.
func EmbedBatch(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	var (
		res BatchEmbeddingResult
		err error
	)
	if be, ok := e.(BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = EmbedEach(ctx, e, texts)
	}
	if err != nil {
		return BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(texts) {
		return BatchEmbeddingResult{}, fmt.Errorf("embedder returned %d vectors for %d texts", len(res.Embeddings), len(texts))
	}
	return res, nil
}
