// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "time"

// Stage identifies a phase of the ingestion pipeline.
type Stage int

const (
	// StageNone means no stage is active.
	StageNone Stage = iota
	// StageFetch retrieves raw document content.
	StageFetch
	// StageChunkEmbed segments content and attaches embeddings.
	StageChunkEmbed
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageChunkEmbed:
		return "chunk-embed"
	default:
		return "none"
	}
}

// ActiveStatus is the queue status of an item while this stage works on it.
func (s Stage) ActiveStatus() QueueStatus {
	if s == StageChunkEmbed {
		return QueueChunking
	}
	return QueueProcessing
}

// DoneStatus is the queue status of an item this stage completed.
func (s Stage) DoneStatus() QueueStatus {
	if s == StageChunkEmbed {
		return QueueChunked
	}
	return QueueProcessed
}

// ItemStatus is the status of an item within its current stage.
type ItemStatus int

const (
	ItemPending ItemStatus = iota
	ItemProcessing
	ItemCompleted
	ItemFailed
)

func (s ItemStatus) String() string {
	switch s {
	case ItemProcessing:
		return "processing"
	case ItemCompleted:
		return "completed"
	case ItemFailed:
		return "failed"
	default:
		return "pending"
	}
}

// QueueStatus is the durable resume marker of an item. Unlike ItemStatus it
// survives stage boundaries.
type QueueStatus int

const (
	QueuePending QueueStatus = iota
	QueueProcessing
	QueueProcessed
	QueueChunking
	QueueChunked
	QueueFailed
	QueueSkipped
)

func (s QueueStatus) String() string {
	switch s {
	case QueueProcessing:
		return "processing"
	case QueueProcessed:
		return "processed"
	case QueueChunking:
		return "chunking"
	case QueueChunked:
		return "chunked"
	case QueueFailed:
		return "failed"
	case QueueSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Chunk is a contiguous piece of extracted document text.
// Positions within a document start at 0 and have no gaps.
type Chunk struct {
	Text      string
	Position  int
	Embedding []float32
}

// Payload is the stage-specific content carried by a QueueItem.
// It is one of Seed, Fetched or Chunked.
type Payload interface {
	isPayload()
}

// Seed is the payload of an item that has not produced any content yet.
type Seed struct{}

// Fetched holds the raw document body produced by the fetch stage.
type Fetched struct {
	RawContent string
}

// Chunked holds the embedded chunks produced by the chunk stage.
type Chunked struct {
	Chunks []Chunk
}

func (Seed) isPayload()    {}
func (Fetched) isPayload() {}
func (Chunked) isPayload() {}

// QueueItem is the unit of work flowing through the pipeline.
//
// The payload is held as a single value so an item carries raw content or
// chunks, never both.
type QueueItem struct {
	ID          string
	URL         string
	Title       string
	Stage       Stage
	Status      ItemStatus
	QueueStatus QueueStatus
	Error       string
	RetryCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	payload Payload
}

// NewQueueItem creates a seed item for url. The URL doubles as the item ID.
func NewQueueItem(url, title string) *QueueItem {
	now := time.Now().UTC()
	return &QueueItem{
		ID:        url,
		URL:       url,
		Title:     title,
		Stage:     StageFetch,
		CreatedAt: now,
		UpdatedAt: now,
		payload:   Seed{},
	}
}

// Payload returns the item's current payload.
func (q *QueueItem) Payload() Payload {
	if q.payload == nil {
		return Seed{}
	}
	return q.payload
}

// RawContent returns the fetched body, if the item holds one.
func (q *QueueItem) RawContent() (string, bool) {
	f, ok := q.payload.(Fetched)
	return f.RawContent, ok
}

// Chunks returns the item's chunks, if it holds them.
func (q *QueueItem) Chunks() ([]Chunk, bool) {
	c, ok := q.payload.(Chunked)
	return c.Chunks, ok
}

// SetRawContent stores a fetched body, replacing any previous payload.
func (q *QueueItem) SetRawContent(content string) {
	q.payload = Fetched{RawContent: content}
	q.Touch()
}

// SetChunks stores chunks and drops the raw content.
func (q *QueueItem) SetChunks(chunks []Chunk) {
	q.payload = Chunked{Chunks: chunks}
	q.Touch()
}

// Release drops the payload entirely.
func (q *QueueItem) Release() {
	q.payload = Seed{}
}

// Touch bumps UpdatedAt.
func (q *QueueItem) Touch() {
	q.UpdatedAt = time.Now().UTC()
}

// Record returns the durable snapshot of the item.
func (q *QueueItem) Record() *QueueRecord {
	return &QueueRecord{
		URL:         q.URL,
		Title:       q.Title,
		Stage:       q.Stage,
		QueueStatus: q.QueueStatus,
		Error:       q.Error,
		RetryCount:  q.RetryCount,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}
