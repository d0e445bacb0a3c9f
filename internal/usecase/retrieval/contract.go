package retrieval

import (
	"context"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Searcher is the read side of a collection index.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.Hit, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
