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

	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// DefaultBatchSize is the number of slices embedded per request.
const DefaultBatchSize = 100

// SliceIterator walks every stored slice in fixed-size batches.
type SliceIterator struct {
	slices    storage.SliceRepository
	batchSize int
}

// NewSliceIterator creates an iterator. A batchSize <= 0 means DefaultBatchSize.
func NewSliceIterator(slices storage.SliceRepository, batchSize int) *SliceIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SliceIterator{slices: slices, batchSize: batchSize}
}

// ForEach calls fn with consecutive batches of all stored slices, reading one
// batch at a time in key order. It stops at the first error from fn and
// checks ctx between batches.
func (it *SliceIterator) ForEach(ctx context.Context, fn func([]*core.Slice) error) error {
	var after *core.Slice
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.slices.ListSlicesAfter(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		// fn may modify the batch, so keep the cursor position separately
		last := batch[len(batch)-1]
		after = &core.Slice{URL: last.URL, Position: last.Position}

		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < it.batchSize {
			return nil
		}
	}
}
