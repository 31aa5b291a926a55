package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueItem(t *testing.T) {
	item := NewQueueItem("https://example.com/a", "A")

	assert.Equal(t, "https://example.com/a", item.ID)
	assert.Equal(t, StageFetch, item.Stage)
	assert.Equal(t, ItemPending, item.Status)
	assert.Equal(t, QueuePending, item.QueueStatus)
	assert.False(t, item.CreatedAt.IsZero())
	assert.Equal(t, Seed{}, item.Payload())
}

func TestQueueItem_PayloadIsExclusive(t *testing.T) {
	item := NewQueueItem("https://example.com/a", "A")

	_, hasRaw := item.RawContent()
	_, hasChunks := item.Chunks()
	assert.False(t, hasRaw)
	assert.False(t, hasChunks)

	t.Run("raw content", func(t *testing.T) {
		item.SetRawContent("<p>body</p>")
		raw, ok := item.RawContent()
		require.True(t, ok)
		assert.Equal(t, "<p>body</p>", raw)
		_, hasChunks := item.Chunks()
		assert.False(t, hasChunks)
	})

	t.Run("chunks replace raw content", func(t *testing.T) {
		item.SetChunks([]Chunk{{Text: "body", Position: 0}})
		chunks, ok := item.Chunks()
		require.True(t, ok)
		assert.Len(t, chunks, 1)
		_, hasRaw := item.RawContent()
		assert.False(t, hasRaw)
	})

	t.Run("release drops everything", func(t *testing.T) {
		item.Release()
		_, hasRaw := item.RawContent()
		_, hasChunks := item.Chunks()
		assert.False(t, hasRaw)
		assert.False(t, hasChunks)
	})
}

func TestQueueItem_ZeroValuePayload(t *testing.T) {
	var item QueueItem
	assert.Equal(t, Seed{}, item.Payload())
	_, ok := item.RawContent()
	assert.False(t, ok)
}

func TestQueueItem_Record(t *testing.T) {
	item := NewQueueItem("https://example.com/a", "A")
	item.SetRawContent("content")
	item.Stage = StageChunkEmbed
	item.QueueStatus = QueueProcessed
	item.Error = ""

	record := item.Record()
	assert.Equal(t, item.URL, record.URL)
	assert.Equal(t, StageChunkEmbed, record.Stage)
	assert.Equal(t, QueueProcessed, record.QueueStatus)
	assert.Equal(t, item.UpdatedAt, record.UpdatedAt)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "fetch", StageFetch.String())
	assert.Equal(t, "chunk-embed", StageChunkEmbed.String())
	assert.Equal(t, "none", StageNone.String())
	assert.Equal(t, "failed", ItemFailed.String())
	assert.Equal(t, "chunked", QueueChunked.String())
	assert.Equal(t, "skipped", QueueSkipped.String())
	assert.Equal(t, "pending", QueueStatus(99).String())
}

func TestStageStatuses(t *testing.T) {
	assert.Equal(t, QueueProcessing, StageFetch.ActiveStatus())
	assert.Equal(t, QueueProcessed, StageFetch.DoneStatus())
	assert.Equal(t, QueueChunking, StageChunkEmbed.ActiveStatus())
	assert.Equal(t, QueueChunked, StageChunkEmbed.DoneStatus())
}
