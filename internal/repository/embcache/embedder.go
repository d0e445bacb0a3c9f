// Package embcache is an embedding decorator that memoizes vectors in Redis,
// keyed by model and text, so re-ingesting unchanged documents costs nothing.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/db"
	"github.com/kailas-cloud/askfolio/internal/domain"
)

const keyPrefix = "askfolio:emb_cache:"

var (
	_ domain.Embedder      = (*CachedEmbedder)(nil)
	_ domain.BatchEmbedder = (*CachedEmbedder)(nil)
)

// CachedEmbedder serves repeated texts from a blob store. Store failures are
// logged and treated as misses; they never fail an embedding.
type CachedEmbedder struct {
	inner   domain.Embedder
	blobs   db.Blobs
	model   string
	ttl     time.Duration
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New wraps inner. model namespaces the keys so a model switch never serves
// stale vectors. lookups, when set, is a counter vec labelled "result"
// (hit or miss).
func New(
	inner domain.Embedder,
	blobs db.Blobs,
	model string,
	ttl time.Duration,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		blobs:   blobs,
		model:   model,
		ttl:     ttl,
		lookups: lookups,
		logger:  logger,
	}
}

// Embed returns the cached vector with zero token usage, or the inner result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.recall(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.remember(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed resolves hits from the cache and embeds the distinct misses in
// one inner call. Usage reflects the misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}

	pending := make(map[string][]int) // miss text -> positions in texts
	var misses []string
	for i, text := range texts {
		if pos, seen := pending[text]; seen {
			pending[text] = append(pos, i)
			continue
		}
		if vec, ok := c.recall(ctx, c.cacheKey(text)); ok {
			out.Embeddings[i] = vec
			continue
		}
		pending[text] = []int{i}
		misses = append(misses, text)
	}
	if len(misses) == 0 {
		return out, nil
	}

	res, err := domain.EmbedBatch(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed %d misses: %w", len(misses), err)
	}
	for j, text := range misses {
		for _, i := range pending[text] {
			out.Embeddings[i] = res.Embeddings[j]
		}
		c.remember(ctx, c.cacheKey(text), res.Embeddings[j])
	}
	out.PromptTokens, out.TotalTokens = res.PromptTokens, res.TotalTokens
	return out, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// recall reads key and counts the lookup. Unreadable entries are misses.
func (c *CachedEmbedder) recall(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.read(ctx, key)
	switch {
	case err == nil && len(vec) > 0:
		c.count("hit")
		return vec, true
	case err != nil && !errors.Is(err, db.ErrKeyNotFound):
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}
	c.count("miss")
	return nil, false
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	data, err := c.blobs.GetBlob(ctx, key)
	if err != nil {
		return nil, err //nolint:wrapcheck // classified by recall
	}
	return db.ParseFloat32Blob(data) //nolint:wrapcheck // classified by recall
}

func (c *CachedEmbedder) remember(ctx context.Context, key string, vec []float32) {
	if err := c.blobs.PutBlob(ctx, key, []byte(db.Float32Blob(vec)), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
