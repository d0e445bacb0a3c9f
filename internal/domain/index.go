package domain

import (
	"context"
	"fmt"
)

// Metric is the distance function of a vector index.
type Metric string

// Supported metrics. Cosine distance is 1 - cosine similarity.
const (
	MetricL2     Metric = "l2"
	MetricCosine Metric = "cosine"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricL2, MetricCosine:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", ErrConfig, s)
	}
}

// ChunkMeta is the metadata stored next to each vector.
type ChunkMeta struct {
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
}

// IndexEntry is a single vector with its chunk text.
type IndexEntry struct {
	ID     string
	Vector []float32
	Text   string
	Meta   ChunkMeta
}

// NewIndexEntry pairs a chunk with its embedding.
func NewIndexEntry(c Chunk, vec []float32) IndexEntry {
	return IndexEntry{
		ID:     c.ID(),
		Vector: vec,
		Text:   c.Text,
		Meta:   ChunkMeta{SourceID: c.SourceID, SequenceIndex: c.SequenceIndex},
	}
}

// Hit is one search result, nearest first.
type Hit struct {
	ID       string
	Text     string
	Meta     ChunkMeta
	Distance float64
}

// VectorIndex is the contract shared by the in-memory and Redis collections.
type VectorIndex interface {
	Build(ctx context.Context, entries []IndexEntry) error
	Add(ctx context.Context, entries []IndexEntry) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	SourceIDs(ctx context.Context) (map[string]struct{}, error)
	Len(ctx context.Context) (int, error)
	Metric() Metric
}

// CheckDimensions returns the shared dimension of entries, or ErrDimensionMismatch.
// want <= 0 means the first entry fixes the dimension.
func CheckDimensions(entries []IndexEntry, want int) (int, error) {
	dim := want
	for i := range entries {
		n := len(entries[i].Vector)
		if n == 0 {
			return 0, fmt.Errorf("%w: entry %s has an empty vector", ErrDimensionMismatch, entries[i].ID)
		}
		if dim <= 0 {
			dim = n
			continue
		}
		if n != dim {
			return 0, fmt.Errorf("%w: entry %s has %d, want %d", ErrDimensionMismatch, entries[i].ID, n, dim)
		}
	}
	return dim, nil
}
