package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/poiesic/bookmind/core"
)

const (
	// DefaultKeywordTopK is the number of keyword results returned when none is requested.
	DefaultKeywordTopK = 3
	// MaxTopK caps the number of results of a single search.
	MaxTopK = 20
	// titleBonus is added once per query word found in the title.
	titleBonus = 2
)

// KeywordQuery describes a keyword search over slices.
type KeywordQuery struct {
	// Text is the free-text query.
	Text string
	// TopK is clamped to [1, MaxTopK]. Zero means DefaultKeywordTopK.
	TopK int
	// URL restricts the search to the slices of one document.
	URL string
}

// Score returns the keyword relevance of slice for query.
//
// Every query word of at least two characters adds the number of its
// case-insensitive occurrences in the title and text, plus a bonus when the
// title contains it. Words are matched literally.
func Score(slice *core.Slice, query string) float64 {
	return scoreWords(slice, queryWords(query))
}

func scoreWords(slice *core.Slice, words []string) float64 {
	title := strings.ToLower(slice.Title)
	haystack := title + " " + strings.ToLower(slice.Text)

	score := 0
	for _, word := range words {
		score += countOccurrences(haystack, word)
		if strings.Contains(title, word) {
			score += titleBonus
		}
	}
	return float64(score)
}

// ClampTopK bounds topK to [1, MaxTopK], using def when topK is zero.
func ClampTopK(topK, def int) int {
	if topK == 0 {
		topK = def
	}
	return min(max(topK, 1), MaxTopK)
}

// KeywordSearch ranks slices against q.
//
// With q.URL set only slices of that document are considered; if q.Text is
// empty they are returned in position order. Otherwise slices are ranked by
// Score, ties keep their input order, and slices scoring zero are dropped.
func KeywordSearch(candidates []*core.Slice, q KeywordQuery) []core.ScoredSlice {
	topK := ClampTopK(q.TopK, DefaultKeywordTopK)

	if q.URL != "" {
		filtered := make([]*core.Slice, 0, len(candidates))
		for _, slice := range candidates {
			if slice.URL == q.URL {
				filtered = append(filtered, slice)
			}
		}
		candidates = filtered

		if strings.TrimSpace(q.Text) == "" {
			slices.SortStableFunc(candidates, func(a, b *core.Slice) int {
				return cmp.Compare(a.Position, b.Position)
			})
			results := make([]core.ScoredSlice, 0, min(topK, len(candidates)))
			for _, slice := range candidates[:min(topK, len(candidates))] {
				results = append(results, core.ScoredSlice{Slice: slice})
			}
			return results
		}
	}

	words := queryWords(q.Text)
	if len(words) == 0 || len(candidates) == 0 {
		return []core.ScoredSlice{}
	}

	scored := make([]core.ScoredSlice, len(candidates))
	for i, slice := range candidates {
		scored[i] = core.ScoredSlice{Slice: slice, Score: scoreWords(slice, words)}
	}
	sortByScore(scored)

	if scored[0].Score == 0 {
		return []core.ScoredSlice{}
	}

	results := scored[:0]
	for _, s := range scored[:min(topK, len(scored))] {
		if s.Score > 0 {
			results = append(results, s)
		}
	}
	return results
}

// sortByScore orders results by descending score, keeping the order of ties.
func sortByScore(results []core.ScoredSlice) {
	slices.SortStableFunc(results, func(a, b core.ScoredSlice) int {
		return cmp.Compare(b.Score, a.Score)
	})
}
