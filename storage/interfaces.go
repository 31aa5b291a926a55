package storage

import (
	"context"

	"github.com/poiesic/bookmind/core"
)

// DefaultSliceLimit caps ListSlices when the caller passes no limit.
const DefaultSliceLimit = 5000

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	// It does not close the shared backend.
	Close() error
}

// PageRepository provides operations for managing source pages.
type PageRepository interface {
	Repository
	// GetPage retrieves the page stored for url.
	// Returns ErrNotFound if the page doesn't exist.
	GetPage(ctx context.Context, url string) (*core.Page, error)

	// SavePage inserts or replaces a page.
	// Sets InsertedAt on first save and UpdatedAt on every save.
	SavePage(ctx context.Context, page *core.Page) error

	// AddPages stores the pages that are not yet known and leaves existing
	// pages untouched. Returns the number of pages added.
	AddPages(ctx context.Context, pages ...*core.Page) (int, error)

	// ListPages returns every stored page ordered by URL.
	ListPages(ctx context.Context) ([]*core.Page, error)

	// DeletePage removes a page. Returns ErrNotFound if it doesn't exist.
	DeletePage(ctx context.Context, url string) error
}

// SliceRepository provides operations for managing persisted chunks.
type SliceRepository interface {
	Repository
	// SaveSlice inserts or replaces a single slice keyed by its URL and position.
	SaveSlice(ctx context.Context, slice *core.Slice) error

	// UpdateSlices replaces existing slices in one transaction.
	// Returns ErrNotFound if any slice doesn't exist.
	UpdateSlices(ctx context.Context, slices ...*core.Slice) error

	// GetSlice retrieves the slice at position within url.
	// Returns ErrNotFound if the slice doesn't exist.
	GetSlice(ctx context.Context, url string, position int) (*core.Slice, error)

	// ListSlices returns stored slices. A non-empty urlFilter restricts the
	// result to that document, ordered by position. A limit <= 0 means
	// DefaultSliceLimit.
	ListSlices(ctx context.Context, urlFilter string, limit int) ([]*core.Slice, error)

	// ReplaceSlices removes every slice of url and stores slices in their place
	// in one transaction. Every slice must belong to url. On error nothing
	// changes.
	ReplaceSlices(ctx context.Context, url string, slices ...*core.Slice) error

	// ListSlicesAfter returns up to limit slices in key order, starting after
	// the slice at after's URL and position, or at the beginning when after is
	// nil. It is the paging primitive for walking every slice.
	ListSlicesAfter(ctx context.Context, after *core.Slice, limit int) ([]*core.Slice, error)

	// DeleteSlices removes every slice of url and returns how many were removed.
	DeleteSlices(ctx context.Context, url string) (int, error)

	// CountSlices returns the number of stored slices.
	CountSlices(ctx context.Context) (int, error)
}

// QueueRepository persists queue item snapshots so run progress survives the process.
type QueueRepository interface {
	Repository
	// SaveQueueRecord inserts or replaces the record for record.URL.
	SaveQueueRecord(ctx context.Context, record *core.QueueRecord) error

	// GetQueueRecord retrieves the record for url.
	// Returns ErrNotFound if the record doesn't exist.
	GetQueueRecord(ctx context.Context, url string) (*core.QueueRecord, error)

	// ListQueueRecords returns every stored record ordered by URL.
	ListQueueRecords(ctx context.Context) ([]*core.QueueRecord, error)

	// ClearQueue removes every stored record.
	ClearQueue(ctx context.Context) error
}
