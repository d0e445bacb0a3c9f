// Package flat is an exact, brute-force in-memory vector index.
package flat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

var _ domain.VectorIndex = (*Index)(nil)

// Index keeps entries in insertion order. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	metric  domain.Metric
	dim     int
	entries []domain.IndexEntry
	ids     map[string]struct{}
}

// New creates an empty index. The dimension is fixed by the first write.
func New(metric domain.Metric) *Index {
	return &Index{metric: metric, ids: make(map[string]struct{})}
}

// Metric returns the distance function of the index.
func (x *Index) Metric() domain.Metric { return x.metric }

// Dimensions returns the vector length, 0 while empty.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Build replaces the index contents. Nothing changes on error.
func (x *Index) Build(_ context.Context, entries []domain.IndexEntry) error {
	dim, err := domain.CheckDimensions(entries, 0)
	if err != nil {
		return err
	}
	ids, err := uniqueIDs(entries, nil)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.dim = dim
	x.entries = cloneEntries(entries)
	x.ids = ids
	return nil
}

// Add appends entries. Any id collision or dimension mismatch rejects the whole batch.
func (x *Index) Add(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := domain.CheckDimensions(entries, x.dim)
	if err != nil {
		return err
	}
	ids, err := uniqueIDs(entries, x.ids)
	if err != nil {
		return err
	}
	x.dim = dim
	x.entries = append(x.entries, cloneEntries(entries)...)
	x.ids = ids
	return nil
}

// Search returns the k nearest entries, nearest first. Equal distances keep
// insertion order. k above the index size returns every entry.
func (x *Index) Search(_ context.Context, vector []float32, k int) ([]domain.Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.entries) == 0 {
		return []domain.Hit{}, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), x.dim)
	}

	hits := make([]domain.Hit, len(x.entries))
	for i := range x.entries {
		e := &x.entries[i]
		hits[i] = domain.Hit{ID: e.ID, Text: e.Text, Meta: e.Meta, Distance: distance(x.metric, vector, e.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// SourceIDs returns the distinct source ids present in the index.
func (x *Index) SourceIDs(_ context.Context) (map[string]struct{}, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]struct{})
	for i := range x.entries {
		out[x.entries[i].Meta.SourceID] = struct{}{}
	}
	return out, nil
}

// Len returns the number of entries.
func (x *Index) Len(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

// Entries returns a copy of all entries in insertion order.
func (x *Index) Entries() []domain.IndexEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return cloneEntries(x.entries)
}

func uniqueIDs(entries []domain.IndexEntry, existing map[string]struct{}) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(existing)+len(entries))
	for id := range existing {
		ids[id] = struct{}{}
	}
	for i := range entries {
		id := entries[i].ID
		if _, dup := ids[id]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateID, id)
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func cloneEntries(in []domain.IndexEntry) []domain.IndexEntry {
	out := make([]domain.IndexEntry, len(in))
	for i, e := range in {
		out[i] = e
		out[i].Vector = append([]float32(nil), e.Vector...)
	}
	return out
}

func distance(m domain.Metric, a, b []float32) float64 {
	if m == domain.MetricCosine {
		return cosineDistance(a, b)
	}
	return l2(a, b)
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cos(a, b); a zero vector is at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
