package search

import (
	"testing"

	"github.com/poiesic/bookmind/core"
	"github.com/stretchr/testify/assert"
)

func scored(url, title string, position int, score float64) core.ScoredSlice {
	return core.ScoredSlice{Slice: slice(url, title, "text", position), Score: score}
}

func TestMerge(t *testing.T) {
	vector := []core.ScoredSlice{
		scored("https://a", "Guide", 0, 0.9),
		scored("https://b", "Intro", 0, 0.5),
	}
	keyword := []core.ScoredSlice{
		scored("https://c", "Guide", 1, 6),
		scored("https://a", "Guide", 2, 4),
		scored("https://d", "Other", 0, 1),
	}

	t.Run("by url", func(t *testing.T) {
		merged := Merge(vector, keyword, ByURL)
		urls := make([]string, len(merged))
		for i, r := range merged {
			urls[i] = r.Slice.URL
		}
		assert.Equal(t, []string{"https://a", "https://b", "https://c", "https://d"}, urls)
		assert.Equal(t, 0.9, merged[0].Score, "first occurrence wins")
	})

	t.Run("by title", func(t *testing.T) {
		merged := Merge(vector, keyword, ByTitle)
		titles := make([]string, len(merged))
		for i, r := range merged {
			titles[i] = r.Slice.Title
		}
		assert.Equal(t, []string{"Guide", "Intro", "Other"}, titles)
	})

	t.Run("by slice", func(t *testing.T) {
		assert.Len(t, Merge(vector, keyword, BySlice), 5)
	})

	t.Run("nil key defaults to url", func(t *testing.T) {
		assert.Len(t, Merge(vector, keyword, nil), 4)
	})

	t.Run("no re-ranking", func(t *testing.T) {
		merged := Merge(vector, keyword, ByURL)
		assert.Equal(t, 0.5, merged[1].Score)
		assert.Equal(t, 6.0, merged[2].Score)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Merge(nil, nil, ByURL))
	})
}
