// Package ingestion provides pipeline orchestration for indexing documents.
//
// A run moves every QueueItem through two stages:
//   - Fetch: download the document body over HTTP
//   - ChunkEmbed: extract text, split it into overlapping chunks and embed them
//
// Each stage is driven by a Runner that keeps at most a fixed number of items
// in flight on a worker pool. Items fail individually; a failed fetch is not
// forwarded to the second stage. Runs can be paused, resumed and stopped, and
// lifecycle events are delivered to the EventSinks given to NewPipeline.
//
// Results are written through the storage repositories: slices for embedded
// chunks, page bookkeeping for every attempt and, optionally, queue records.
package ingestion
