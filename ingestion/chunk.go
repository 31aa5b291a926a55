package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/segment"
)

const (
	// DefaultChunkSize is the maximum chunk length used by the chunk stage.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the overlap between chunks used by the chunk stage.
	DefaultChunkOverlap = 150
)

// chunkEmbedProcessor extracts text from fetched documents, splits it into
// chunks and embeds all chunks of a document in one request.
type chunkEmbedProcessor struct {
	splitter *segment.Splitter
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ Processor = (*chunkEmbedProcessor)(nil)

func newChunkEmbedProcessor(embedder ai.Embedder, splitter *segment.Splitter, logger *slog.Logger) (*chunkEmbedProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	if splitter == nil {
		var err error
		splitter, err = segment.NewSplitter(
			segment.WithMaxSize(DefaultChunkSize),
			segment.WithOverlap(DefaultChunkOverlap),
			segment.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
	}
	return &chunkEmbedProcessor{
		splitter: splitter,
		embedder: embedder,
		logger:   logger.With("processor", "chunk-embed"),
	}, nil
}

func (cp *chunkEmbedProcessor) Stage() core.Stage {
	return core.StageChunkEmbed
}

func (cp *chunkEmbedProcessor) Setup(ctx context.Context) error {
	return nil
}

func (cp *chunkEmbedProcessor) Teardown(ctx context.Context) error {
	return nil
}

// Process replaces the item's raw content with embedded chunks.
// The raw content is dropped whether or not processing succeeds.
func (cp *chunkEmbedProcessor) Process(ctx context.Context, item *core.QueueItem) (err error) {
	defer func() {
		if err != nil {
			item.Release()
			item.Touch()
		}
	}()

	raw, ok := item.RawContent()
	if !ok || raw == "" {
		return &ChunkError{Kind: ErrNoContent}
	}

	text, err := segment.ExtractText(raw)
	if err != nil {
		return &ChunkError{Kind: ErrNoContent, Err: err}
	}
	if n := utf8.RuneCountInString(text); n < segment.MinTextLength {
		return &ChunkError{Kind: ErrTextTooShort, Detail: fmt.Sprintf("%d characters", n)}
	}

	chunks, err := cp.splitter.Split(text)
	if err != nil {
		return &ChunkError{Kind: ErrSegmentation, Err: err}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	cp.logger.Debug("embedding chunks", "url", item.URL, "chunks", len(chunks))
	vectors, err := cp.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return &ChunkError{Kind: ErrEmbeddingFailed, Err: err}
	}
	if len(vectors) != len(chunks) {
		return &ChunkError{
			Kind:   ErrEmbeddingMismatch,
			Detail: fmt.Sprintf("expected %d, received %d", len(chunks), len(vectors)),
		}
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	item.SetChunks(chunks)
	return nil
}
