package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// BatchProcessor re-embeds one batch of slices and writes them back.
type BatchProcessor struct {
	slices   storage.SliceRepository
	embedder ai.Embedder
	policy   Backoff
	logger   *slog.Logger
}

// NewBatchProcessor creates a batch processor that retries embedding calls
// according to policy.
func NewBatchProcessor(slices storage.SliceRepository, embedder ai.Embedder, policy Backoff, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		slices:   slices,
		embedder: embedder,
		policy:   policy,
		logger:   logger,
	}
}

// Process embeds the text of every slice in batch with a single request,
// normalizes the vectors and updates the slices in one transaction.
func (bp *BatchProcessor) Process(ctx context.Context, batch []*core.Slice) error {
	if len(batch) == 0 {
		return nil
	}

	texts := make([]string, len(batch))
	for i, slice := range batch {
		texts[i] = slice.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.policy, bp.logger)
	if err != nil {
		return fmt.Errorf("embedding %d slices: %w", len(batch), err)
	}

	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(batch), len(embeddings))
	}

	for i, slice := range batch {
		slice.Embedding = NormalizeVector(embeddings[i])
	}

	if err := bp.slices.UpdateSlices(ctx, batch...); err != nil {
		return fmt.Errorf("updating slices: %w", err)
	}
	return nil
}
