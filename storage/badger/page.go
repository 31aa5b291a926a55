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

// PageRepository implements storage.PageRepository for BadgerDB.
type PageRepository struct {
	backend *Backend
}

var _ storage.PageRepository = (*PageRepository)(nil)

// NewPageRepository creates a new PageRepository.
func NewPageRepository(backend *Backend) *PageRepository {
	return &PageRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *PageRepository) Close() error {
	return nil
}

// GetPage retrieves the page stored for url.
func (r *PageRepository) GetPage(ctx context.Context, url string) (*core.Page, error) {
	var page *core.Page
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		page, err = readValue(tx, makePageKey(url), storage.UnmarshalPage)
		if err != nil {
			return err
		}
		if page == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return page, err
}

// SavePage inserts or replaces a page.
func (r *PageRepository) SavePage(ctx context.Context, page *core.Page) error {
	if err := core.ValidatePage(page); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.writePage(tx, page); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AddPages stores pages that are not yet known.
func (r *PageRepository) AddPages(ctx context.Context, pages ...*core.Page) (int, error) {
	added := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, page := range pages {
			if err := core.ValidatePage(page); err != nil {
				return err
			}
			existing, err := readValue(tx, makePageKey(page.URL), storage.UnmarshalPage)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := r.writePage(tx, page); err != nil {
				return err
			}
			added++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (r *PageRepository) writePage(tx *badger.Txn, page *core.Page) error {
	now := time.Now().UTC()
	if page.InsertedAt.IsZero() {
		page.InsertedAt = now
	}
	page.UpdatedAt = now

	value, err := storage.MarshalPage(page)
	if err != nil {
		return err
	}
	return tx.Set(makePageKey(page.URL), value)
}

// ListPages returns every stored page ordered by URL.
func (r *PageRepository) ListPages(ctx context.Context) ([]*core.Page, error) {
	var pages []*core.Page
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(pagePrefix), storage.UnmarshalPage, func(page *core.Page) bool {
			pages = append(pages, page)
			return true
		})
	}, false)
	return pages, err
}

// DeletePage removes a page.
func (r *PageRepository) DeletePage(ctx context.Context, url string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePageKey(url)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
