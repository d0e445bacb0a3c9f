// Package db declares the storage contracts behind vector collections and the
// embedding cache. internal/db/redis implements them over rueidis.
package db

import (
	"context"
	"time"
)

// Store is the full facade handed out by the composition root. Consumers
// declare the narrow subset they use.
type Store interface {
	Pinger
	Hashes
	Blobs
	VectorSearch
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Hash is one hash write: every field in Fields is set on Key.
type Hash struct {
	Key    string
	Fields map[string]string
}

// Hashes stores chunk records and their bookkeeping keys.
type Hashes interface {
	// WriteHashes sets all hashes in one round trip.
	WriteHashes(ctx context.Context, hashes ...Hash) error
	// ReadHash returns every field of key; a missing key is an empty map.
	ReadHash(ctx context.Context, key string) (map[string]string, error)
	// CountKeys returns how many of keys exist.
	CountKeys(ctx context.Context, keys ...string) (int, error)
	DeleteKeys(ctx context.Context, keys ...string) error
	// Reserve advances counter by n and returns the first of the n reserved values.
	Reserve(ctx context.Context, counter string, n int64) (int64, error)
}

// Blobs is a binary key-value cache.
type Blobs interface {
	// GetBlob returns ErrKeyNotFound for a missing key.
	GetBlob(ctx context.Context, key string) ([]byte, error)
	// PutBlob stores value; ttl <= 0 keeps it forever.
	PutBlob(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// VectorSearch manages FT indexes and queries them.
type VectorSearch interface {
	CreateIndex(ctx context.Context, schema *Schema) error
	// DropIndex removes the index; withDocs also deletes the indexed hashes.
	DropIndex(ctx context.Context, name string, withDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	KNN(ctx context.Context, q *KNNQuery) (*KNNResult, error)
	CountDocs(ctx context.Context, index string) (int, error)
}
