package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

var (
	_ domain.Embedder      = (*RateLimitedEmbedder)(nil)
	_ domain.BatchEmbedder = (*RateLimitedEmbedder)(nil)
)

// RateLimitedEmbedder holds every outbound provider call behind a token bucket.
// One batch call consumes one token.
type RateLimitedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder limits inner to rps requests per second with a burst of one.
// rps <= 0 returns inner unchanged.
func NewRateLimitedEmbedder(inner domain.Embedder, rps float64) domain.Embedder {
	if rps <= 0 {
		return inner
	}
	return &RateLimitedEmbedder{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Embed waits for a token, then delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embedding rate limit: %w", err)
	}
	return r.inner.Embed(ctx, text) //nolint:wrapcheck // transparent decorator
}

// BatchEmbed waits for a token, then delegates as one batch when inner supports it.
func (r *RateLimitedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := r.inner.(domain.BatchEmbedder)
	if !ok {
		return domain.EmbedEach(ctx, r, texts)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding rate limit: %w", err)
	}
	return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // transparent decorator
}
