package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// SliceRepository implements storage.SliceRepository for BadgerDB.
type SliceRepository struct {
	backend *Backend
}

var _ storage.SliceRepository = (*SliceRepository)(nil)

// NewSliceRepository creates a new SliceRepository.
func NewSliceRepository(backend *Backend) *SliceRepository {
	return &SliceRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *SliceRepository) Close() error {
	return nil
}

// SaveSlice inserts or replaces a single slice.
func (r *SliceRepository) SaveSlice(ctx context.Context, slice *core.Slice) error {
	if err := core.ValidateSlice(slice); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if slice.InsertedAt.IsZero() {
			slice.InsertedAt = time.Now().UTC()
		}
		if err := writeSlice(tx, slice); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpdateSlices replaces existing slices in one transaction.
func (r *SliceRepository) UpdateSlices(ctx context.Context, slices ...*core.Slice) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, slice := range slices {
			if err := core.ValidateSlice(slice); err != nil {
				return err
			}
			if _, err := tx.Get(makeSliceKey(slice.URL, slice.Position)); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}
			if err := writeSlice(tx, slice); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ReplaceSlices swaps the stored slices of url for slices in one transaction.
func (r *SliceRepository) ReplaceSlices(ctx context.Context, url string, slices ...*core.Slice) error {
	for _, slice := range slices {
		if err := core.ValidateSlice(slice); err != nil {
			return err
		}
		if slice.URL != url {
			return fmt.Errorf("%w: slice of %s replacing %s", core.ErrInvalidSlice, slice.URL, url)
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := deleteDocumentSlices(tx, url); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, slice := range slices {
			if slice.InsertedAt.IsZero() {
				slice.InsertedAt = now
			}
			if err := writeSlice(tx, slice); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func writeSlice(tx *badger.Txn, slice *core.Slice) error {
	slice.ID = core.SliceID(slice.URL, slice.Position)
	value, err := storage.MarshalSlice(slice)
	if err != nil {
		return err
	}
	return tx.Set(makeSliceKey(slice.URL, slice.Position), value)
}

// GetSlice retrieves the slice at position within url.
func (r *SliceRepository) GetSlice(ctx context.Context, url string, position int) (*core.Slice, error) {
	var slice *core.Slice
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		slice, err = readValue(tx, makeSliceKey(url, position), storage.UnmarshalSlice)
		if err != nil {
			return err
		}
		// A hash collision yields another document's slice
		if slice == nil || slice.URL != url {
			slice = nil
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return slice, err
}

// ListSlices returns stored slices, optionally restricted to one document.
func (r *SliceRepository) ListSlices(ctx context.Context, urlFilter string, limit int) ([]*core.Slice, error) {
	if limit <= 0 {
		limit = storage.DefaultSliceLimit
	}

	prefix := []byte(slicePrefix)
	if urlFilter != "" {
		prefix = makePartialSliceKey(urlFilter)
	}

	var slices []*core.Slice
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, prefix, storage.UnmarshalSlice, func(slice *core.Slice) bool {
			if ctx.Err() != nil {
				return false
			}
			if urlFilter != "" && slice.URL != urlFilter {
				return true
			}
			slices = append(slices, slice)
			return len(slices) < limit
		})
	}, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices, nil
}

// ListSlicesAfter pages through all slices in key order.
func (r *SliceRepository) ListSlicesAfter(ctx context.Context, after *core.Slice, limit int) ([]*core.Slice, error) {
	if limit <= 0 {
		limit = storage.DefaultSliceLimit
	}

	var start []byte
	if after != nil {
		start = makeSliceKey(after.URL, after.Position)
	}

	var slices []*core.Slice
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefixFrom(tx, []byte(slicePrefix), start, storage.UnmarshalSlice, func(slice *core.Slice) bool {
			if ctx.Err() != nil {
				return false
			}
			if after != nil && slice.URL == after.URL && slice.Position == after.Position {
				return true
			}
			slices = append(slices, slice)
			return len(slices) < limit
		})
	}, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices, nil
}

// DeleteSlices removes every slice of url.
func (r *SliceRepository) DeleteSlices(ctx context.Context, url string) (int, error) {
	var deleted int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		deleted, err = deleteDocumentSlices(tx, url)
		if err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// deleteDocumentSlices removes the slices of url, leaving any other document
// that shares its URL hash alone.
func deleteDocumentSlices(tx *badger.Txn, url string) (int, error) {
	var keys [][]byte
	err := scanPrefix(tx, makePartialSliceKey(url), storage.UnmarshalSlice, func(slice *core.Slice) bool {
		if slice.URL == url {
			keys = append(keys, makeSliceKey(slice.URL, slice.Position))
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// CountSlices returns the number of stored slices.
func (r *SliceRepository) CountSlices(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(slicePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
