package domain

import "strconv"

// Document is a raw text source handed to ingestion.
type Document struct {
	SourceID string
	Text     string
}

// Chunk is a bounded substring of a document, the unit of embedding and retrieval.
type Chunk struct {
	Text          string
	SourceID      string
	SequenceIndex int
}

// ID returns the index entry id for the chunk: {source_id}_{sequence_index}.
func (c Chunk) ID() string {
	return c.SourceID + "_" + strconv.Itoa(c.SequenceIndex)
}
