package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/bookmind/ai"
	"github.com/poiesic/bookmind/core"
	"github.com/poiesic/bookmind/storage"
)

// Searcher answers keyword, vector and hybrid queries over stored slices.
type Searcher struct {
	slices   storage.SliceRepository
	embedder ai.Embedder
	limit    int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCandidateLimit bounds how many slices are loaded per search.
// Default is storage.DefaultSliceLimit.
func WithCandidateLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit <= 0 {
			return fmt.Errorf("candidate limit must be positive, got %d", limit)
		}
		s.limit = limit
		return nil
	}
}

// NewSearcher creates a new searcher. The embedder may be nil, in which case
// only keyword searches are available.
func NewSearcher(slices storage.SliceRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if slices == nil {
		return nil, ErrSliceRepositoryRequired
	}

	s := &Searcher{
		slices:   slices,
		embedder: embedder,
		limit:    storage.DefaultSliceLimit,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Keyword ranks stored slices by keyword score.
func (s *Searcher) Keyword(ctx context.Context, q KeywordQuery) ([]core.ScoredSlice, error) {
	candidates, err := s.slices.ListSlices(ctx, q.URL, s.limit)
	if err != nil {
		s.logger.Error("error listing slices", "url", q.URL, "err", err)
		return nil, err
	}
	return KeywordSearch(candidates, q), nil
}

// VectorQuery describes a similarity search.
type VectorQuery struct {
	Text string
	// TopK <= 0 means DefaultVectorTopK; larger values are capped at MaxTopK.
	TopK int
	// URL restricts candidates to one document when set.
	URL string
}

// Vector ranks stored slices by similarity to the embedding of q.Text.
func (s *Searcher) Vector(ctx context.Context, q VectorQuery) ([]core.ScoredSlice, error) {
	if s.embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultVectorTopK
	}
	topK = min(topK, MaxTopK)

	embedding, err := s.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", q.Text, "err", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.slices.ListSlices(ctx, q.URL, s.limit)
	if err != nil {
		s.logger.Error("error listing slices", "url", q.URL, "err", err)
		return nil, err
	}
	return VectorSearch(embedding, candidates, topK), nil
}

// HybridQuery describes a combined vector and keyword search.
type HybridQuery struct {
	Text string
	// TopK is passed to both halves of the search.
	TopK int
	// URL restricts both halves to one document when set.
	URL string
	// Key deduplicates the merged results. Nil means ByURL.
	Key KeyFunc
}

// Hybrid runs a vector and a keyword search concurrently and merges the
// results, vector hits first, deduplicated by q.Key.
//
// A half that fails contributes no results; the error is returned only when
// both halves fail.
func (s *Searcher) Hybrid(ctx context.Context, q HybridQuery) ([]core.ScoredSlice, error) {
	return s.HybridWithMonitor(ctx, q, nil)
}

// HybridWithMonitor is Hybrid with callbacks at each step of the search.
func (s *Searcher) HybridWithMonitor(ctx context.Context, q HybridQuery, monitor SearchMonitor) ([]core.ScoredSlice, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(q.Text)

	var (
		vectorHits, keywordHits []core.ScoredSlice
		vectorErr, keywordErr   error
		g                       errgroup.Group
	)
	g.Go(func() error {
		vectorHits, vectorErr = s.Vector(ctx, VectorQuery{Text: q.Text, TopK: q.TopK, URL: q.URL})
		return nil
	})
	g.Go(func() error {
		keywordHits, keywordErr = s.Keyword(ctx, KeywordQuery{Text: q.Text, TopK: q.TopK, URL: q.URL})
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil {
		s.logger.Warn("vector half of hybrid search failed", "query", q.Text, "err", vectorErr)
		monitor.SearchFailed(SideVector, vectorErr)
	} else {
		monitor.AfterVectorSearch(vectorHits)
	}
	if keywordErr != nil {
		s.logger.Warn("keyword half of hybrid search failed", "query", q.Text, "err", keywordErr)
		monitor.SearchFailed(SideKeyword, keywordErr)
	} else {
		monitor.AfterKeywordSearch(keywordHits)
	}
	if vectorErr != nil && keywordErr != nil {
		return nil, errors.Join(
			fmt.Errorf("vector search: %w", vectorErr),
			fmt.Errorf("keyword search: %w", keywordErr),
		)
	}

	results := Merge(vectorHits, keywordHits, q.Key)
	s.logger.Debug("hybrid search complete",
		"vector", len(vectorHits), "keyword", len(keywordHits), "merged", len(results))
	monitor.Finish(results)

	return results, nil
}
