package retrieval

import (
	"context"
	"errors"
	"sync"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

type mockEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

// mockIndex satisfies domain.VectorIndex; only Search is exercised.
type mockIndex struct {
	hits     []domain.Hit
	err      error
	block    bool
	searched int
	gotK     int
}

func (m *mockIndex) Search(ctx context.Context, _ []float32, k int) ([]domain.Hit, error) {
	m.searched++
	m.gotK = k
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.hits, m.err
}

func (m *mockIndex) Build(context.Context, []domain.IndexEntry) error { return errors.New("read only") }
func (m *mockIndex) Add(context.Context, []domain.IndexEntry) error   { return errors.New("read only") }
func (m *mockIndex) SourceIDs(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (m *mockIndex) Len(context.Context) (int, error) { return len(m.hits), nil }
func (m *mockIndex) Metric() domain.Metric            { return domain.MetricL2 }

func hit(id, text string, dist float64) domain.Hit {
	return domain.Hit{ID: id, Text: text, Distance: dist}
}
