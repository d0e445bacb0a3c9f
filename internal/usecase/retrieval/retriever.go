// Package retrieval embeds a query once, searches every collection and
// assembles the labelled context block for the generator.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/logger"
)

// Section is the hits of one collection.
type Section struct {
	Collection string
	Header     string
	Hits       []domain.Hit
}

// Result holds one section per configured collection, in configured order.
// Sections of unavailable or failed collections are present and empty.
type Result struct {
	Sections []Section
}

// Empty reports whether no collection contributed any hit.
func (r Result) Empty() bool {
	for _, s := range r.Sections {
		if len(s.Hits) > 0 {
			return false
		}
	}
	return true
}

// Retriever searches the registry's collections for a query.
type Retriever struct {
	embedder      Embedder
	registry      *Registry
	searchTimeout time.Duration
	errorsTotal   *prometheus.CounterVec
}

// NewRetriever creates a Retriever. errorsTotal (optional) is labelled by "collection".
func NewRetriever(
	embedder Embedder, registry *Registry,
	searchTimeout time.Duration, errorsTotal *prometheus.CounterVec,
) *Retriever {
	return &Retriever{
		embedder:      embedder,
		registry:      registry,
		searchTimeout: searchTimeout,
		errorsTotal:   errorsTotal,
	}
}

// Retrieve embeds query once and returns up to k hits per collection.
// Only an embedding failure is returned; collection failures are logged and
// leave that section empty.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Result, error) {
	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	log := logger.FromContext(ctx)
	cols := r.registry.Collections()
	res := Result{Sections: make([]Section, len(cols))}

	for i, c := range cols {
		res.Sections[i] = Section{Collection: c.Name, Header: c.Header}
		if !c.Available || c.Index == nil {
			continue
		}

		hits, err := r.search(ctx, c.Index, emb.Embedding, k)
		if err != nil {
			log.Warn("Collection search failed",
				zap.String("collection", c.Name),
				zap.Error(err),
			)
			if r.errorsTotal != nil {
				r.errorsTotal.WithLabelValues(c.Name).Inc()
			}
			continue
		}
		res.Sections[i].Hits = hits
	}

	return res, nil
}

func (r *Retriever) search(ctx context.Context, idx Searcher, vec []float32, k int) ([]domain.Hit, error) {
	if r.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.searchTimeout)
		defer cancel()
	}
	hits, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}
