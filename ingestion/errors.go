package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrPageRepositoryRequired is returned when a page repository is not provided.
	ErrPageRepositoryRequired = errors.New("page repository required")

	// ErrSliceRepositoryRequired is returned when a slice repository is not provided.
	ErrSliceRepositoryRequired = errors.New("slice repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrAlreadyRunning is returned by Start while a run is in progress.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrInvalidConcurrency is returned for a stage concurrency below one.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
)

// Per-item failure kinds. Match with errors.Is.
var (
	ErrContentTooSmall    = errors.New("content too small")
	ErrNoContent          = errors.New("no content to chunk")
	ErrTextTooShort       = errors.New("text too short")
	ErrSegmentation       = errors.New("segmentation failed")
	ErrEmbeddingFailed    = errors.New("embedding failed")
	ErrEmbeddingMismatch  = errors.New("embedding count mismatch")
	ErrProcessorPanicked  = errors.New("processor panicked")
	ErrRequestTimedOut    = errors.New("request timed out")
	ErrUnsuccessfulStatus = errors.New("unsuccessful HTTP status")
)

// FetchError describes why a document could not be retrieved.
type FetchError struct {
	URL        string
	Status     int
	StatusText string
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
	}
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "fetch failed"
}

func (e *FetchError) Unwrap() error {
	if e.Status != 0 {
		return ErrUnsuccessfulStatus
	}
	return e.Err
}

// ChunkError describes why a fetched document could not be chunked and embedded.
// Kind is one of the per-item sentinels above.
type ChunkError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *ChunkError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChunkError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
