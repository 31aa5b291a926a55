package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ID is a compact identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Page is the durable record of a source document.
// The pipeline stores one Page per URL and updates it after every stage attempt.
type Page struct {
	URL        string    `cbor:"1,keyasint"`
	Title      string    `cbor:"2,keyasint,omitempty"`
	Processed  bool      `cbor:"3,keyasint,omitempty"`
	IndexedAt  time.Time `cbor:"4,keyasint,omitempty"` // Last attempt, successful or not
	Error      string    `cbor:"5,keyasint,omitempty"` // Last failure message, cleared on success
	Attempts   int       `cbor:"6,keyasint,omitempty"`
	InsertedAt time.Time `cbor:"7,keyasint,omitempty"`
	UpdatedAt  time.Time `cbor:"8,keyasint,omitempty"`
}

// Failed reports whether the last attempt for this page ended in an error.
func (p *Page) Failed() bool {
	return p.Error != ""
}

// Slice is the persisted form of a Chunk. Retrieval operates on slices.
type Slice struct {
	ID         string    `cbor:"1,keyasint"`
	URL        string    `cbor:"2,keyasint"`
	Title      string    `cbor:"3,keyasint,omitempty"`
	Text       string    `cbor:"4,keyasint"`
	Position   int       `cbor:"5,keyasint"`
	Embedding  []float32 `cbor:"6,keyasint,omitempty"`
	InsertedAt time.Time `cbor:"7,keyasint,omitempty"`
}

// SliceID returns the identifier of the slice at position within url.
func SliceID(url string, position int) string {
	return url + "#" + strconv.Itoa(position)
}

// NewSlice builds the persisted slice for a chunk of the given document.
func NewSlice(url, title string, chunk Chunk) *Slice {
	return &Slice{
		ID:        SliceID(url, chunk.Position),
		URL:       url,
		Title:     title,
		Text:      chunk.Text,
		Position:  chunk.Position,
		Embedding: chunk.Embedding,
	}
}

// ScoredSlice pairs a slice with a relevance score.
type ScoredSlice struct {
	Slice *Slice
	Score float64
}

// QueueRecord is the durable snapshot of a QueueItem.
// It carries no payload: content and chunks are never persisted through the queue.
type QueueRecord struct {
	URL         string      `cbor:"1,keyasint"`
	Title       string      `cbor:"2,keyasint,omitempty"`
	Stage       Stage       `cbor:"3,keyasint"`
	QueueStatus QueueStatus `cbor:"4,keyasint"`
	Error       string      `cbor:"5,keyasint,omitempty"`
	RetryCount  int         `cbor:"6,keyasint,omitempty"`
	CreatedAt   time.Time   `cbor:"7,keyasint,omitempty"`
	UpdatedAt   time.Time   `cbor:"8,keyasint,omitempty"`
}
