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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// dimensionSample is embedded to learn the dimensionality of the current model.
const dimensionSample = "dimension check"

// Config holds configuration for a re-embed run.
type Config struct {
	// BatchSize is the number of slices embedded per request.
	BatchSize int

	// ReportInterval is how many slices pass between progress lines.
	ReportInterval int

	// MaxRetries is the number of attempts per batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarizes a finished run.
type Result struct {
	Slices  int
	Elapsed time.Duration
}

// Reembedder replaces the embedding of every stored slice, typically after
// the embedding model changed.
type Reembedder struct {
	slices    storage.SliceRepository
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *SliceIterator
	logger    *slog.Logger
}

// NewReembedder creates a reembedder. Progress lines go to progress, which
// may be nil.
func NewReembedder(slices storage.SliceRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if slices == nil {
		return nil, ErrSliceRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	logger := slog.Default().With("component", "reembed")
	policy := Backoff{MaxAttempts: max(config.MaxRetries, 1), BaseDelay: config.RetryDelay}

	return &Reembedder{
		slices:    slices,
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(slices, embedder, policy, logger),
		iterator:  NewSliceIterator(slices, config.BatchSize),
		logger:    logger,
	}, nil
}

// Run re-embeds all stored slices. A failed batch stops the run; batches
// already written keep their new embeddings.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	total, err := r.slices.CountSlices(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("counting slices: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No slices found in database\n")
		return Result{}, nil
	}

	fmt.Fprintf(r.progress, "Re-embedding %d slices (batch size: %d)\n", total, r.iterator.batchSize)
	r.logger.Info("re-embed started", "slices", total, "batchSize", r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(batch []*core.Slice) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return err
		}
		tracker.Add(len(batch))
		return nil
	})
	result := Result{Slices: tracker.Current(), Elapsed: tracker.Elapsed()}
	if err != nil {
		r.logger.Error("re-embed failed", "done", result.Slices, "total", total, "err", err)
		return result, err
	}
	tracker.Finish()

	r.logger.Info("re-embed complete", "slices", result.Slices, "elapsed", result.Elapsed)
	return result, nil
}

// CheckDimensions compares the dimensionality of the current embedding model
// with the stored slices. It returns the model's dimensionality and whether
// any sampled slice has a different one.
func CheckDimensions(ctx context.Context, slices storage.SliceRepository, embedder ai.Embedder, sample int) (int, bool, error) {
	reference, err := embedder.EmbedText(ctx, dimensionSample)
	if err != nil {
		return 0, false, fmt.Errorf("embedding sample text: %w", err)
	}

	stored, err := slices.ListSlices(ctx, "", max(sample, 1))
	if err != nil {
		return len(reference), false, err
	}
	for _, slice := range stored {
		if len(slice.Embedding) != len(reference) {
			return len(reference), true, nil
		}
	}
	return len(reference), false, nil
}
