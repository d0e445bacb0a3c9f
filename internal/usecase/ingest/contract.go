package ingest

import (
	"context"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Splitter cuts documents into chunks.
type Splitter interface {
	ChunkDocument(doc domain.Document) ([]domain.Chunk, error)
}

// Embedder vectorizes one document's chunks in a single call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Target is the collection a run writes to. Save, when set, persists the
// index after a run that changed it.
type Target struct {
	Name  string
	Index domain.VectorIndex
	Save  func(ctx context.Context) error
}
