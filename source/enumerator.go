package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// DefaultRetryAfter is how long a failed page is left alone before it is
// offered to the pipeline again.
const DefaultRetryAfter = 24 * time.Hour

// ErrPageRepositoryRequired is returned when a page repository is not provided.
var ErrPageRepositoryRequired = errors.New("page repository required")

// Enumerator turns bookmarks into pipeline seeds, skipping what does not need
// indexing.
type Enumerator struct {
	pages      storage.PageRepository
	retryAfter time.Duration
	excluded   func(string) bool
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures an Enumerator.
type Option func(*Enumerator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enumerator) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithRetryAfter sets how long failed pages are skipped.
func WithRetryAfter(d time.Duration) Option {
	return func(e *Enumerator) error {
		e.retryAfter = d
		return nil
	}
}

// WithExcludeFunc replaces IsExcluded as the exclusion policy.
func WithExcludeFunc(excluded func(string) bool) Option {
	return func(e *Enumerator) error {
		if excluded != nil {
			e.excluded = excluded
		}
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Enumerator) error {
		if now != nil {
			e.now = now
		}
		return nil
	}
}

// NewEnumerator creates an enumerator backed by pages.
func NewEnumerator(pages storage.PageRepository, opts ...Option) (*Enumerator, error) {
	if pages == nil {
		return nil, ErrPageRepositoryRequired
	}
	e := &Enumerator{
		pages:      pages,
		retryAfter: DefaultRetryAfter,
		excluded:   IsExcluded,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "source")
	return e, nil
}

// Seeds returns a queue item for every bookmark that still needs indexing.
// Excluded and duplicate URLs are dropped, as are pages already processed and
// pages whose last attempt failed less than the retry interval ago.
func (e *Enumerator) Seeds(ctx context.Context, bookmarks []Bookmark) ([]*core.QueueItem, error) {
	now := e.now()
	seen := make(map[string]struct{}, len(bookmarks))
	items := make([]*core.QueueItem, 0, len(bookmarks))
	var excluded, indexed, cooling int

	for _, b := range bookmarks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := seen[b.URL]; dup {
			continue
		}
		seen[b.URL] = struct{}{}

		if e.excluded(b.URL) || core.ValidateURL(b.URL) != nil {
			excluded++
			continue
		}

		page, err := e.pages.GetPage(ctx, b.URL)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, err
		case page.Processed:
			indexed++
			continue
		case page.Failed() && !page.IndexedAt.IsZero() && now.Sub(page.IndexedAt) < e.retryAfter:
			cooling++
			continue
		}

		title := b.Title
		if title == "" {
			title = b.URL
		}
		items = append(items, core.NewQueueItem(b.URL, title))
	}

	e.logger.Info("enumerated seeds",
		"bookmarks", len(bookmarks),
		"seeds", len(items),
		"excluded", excluded,
		"indexed", indexed,
		"recentlyFailed", cooling)
	return items, nil
}
