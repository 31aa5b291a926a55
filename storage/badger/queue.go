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


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// QueueRepository implements storage.QueueRepository for BadgerDB.
type QueueRepository struct {
	backend *Backend
}

var _ storage.QueueRepository = (*QueueRepository)(nil)

// NewQueueRepository creates a new QueueRepository.
func NewQueueRepository(backend *Backend) *QueueRepository {
	return &QueueRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *QueueRepository) Close() error {
	return nil
}

// SaveQueueRecord persists the snapshot of a queue item.
func (r *QueueRepository) SaveQueueRecord(ctx context.Context, record *core.QueueRecord) error {
	if record.URL == "" {
		return core.ErrEmptyURL
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if record.UpdatedAt.IsZero() {
			record.UpdatedAt = time.Now().UTC()
		}
		value, err := storage.MarshalQueueRecord(record)
		if err != nil {
			return err
		}
		if err := tx.Set(makeQueueKey(record.URL), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetQueueRecord retrieves the record for url.
func (r *QueueRepository) GetQueueRecord(ctx context.Context, url string) (*core.QueueRecord, error) {
	var record *core.QueueRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readValue(tx, makeQueueKey(url), storage.UnmarshalQueueRecord)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return record, err
}

// ListQueueRecords returns every stored record ordered by URL.
func (r *QueueRepository) ListQueueRecords(ctx context.Context) ([]*core.QueueRecord, error) {
	var records []*core.QueueRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(queuePrefix), storage.UnmarshalQueueRecord, func(record *core.QueueRecord) bool {
			records = append(records, record)
			return true
		})
	}, false)
	return records, err
}

// ClearQueue removes every stored record.
func (r *QueueRepository) ClearQueue(ctx context.Context) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := deletePrefix(tx, []byte(queuePrefix)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
