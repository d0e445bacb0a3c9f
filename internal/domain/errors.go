package domain

import "errors"

var (
	// ErrConfig signals invalid or missing configuration. Fatal at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrUpstreamUnavailable signals a transient embedding or completion failure
	// (timeout, rate limit, 5xx). Callers may retry with backoff.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidRequest signals input the upstream rejected (empty, too long).
	// Not retryable without changing the input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyDocument signals a document with no text.
	ErrEmptyDocument = errors.New("empty document")
	// ErrDimensionMismatch signals vectors of different lengths in one index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDuplicateID signals an entry id that already exists in the index.
	ErrDuplicateID = errors.New("duplicate entry id")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")

	// ErrIndexIncomplete signals a persisted index with one of its two files missing.
	ErrIndexIncomplete = errors.New("persisted index incomplete")
	// ErrIndexUnavailable signals a collection that was not loaded at startup.
	ErrIndexUnavailable = errors.New("index unavailable")
)
