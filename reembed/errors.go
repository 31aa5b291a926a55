package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrSliceRepositoryRequired is returned when a slice repository is not provided.
	ErrSliceRepositoryRequired = errors.New("slice repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingMismatch is returned when the embedder answers with a
	// different number of vectors than texts.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
