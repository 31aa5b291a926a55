package search

import (
	"math"

	"github.com/poiesic/bookmind/core"
)

// DefaultVectorTopK is the number of vector results returned when none is requested.
const DefaultVectorTopK = 5

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude. Components missing from b count as zero.
func Cosine(a, b []float32) float64 {
	var dot, magA, magB float64
	for i, av := range a {
		x := float64(av)
		magA += x * x
		if i < len(b) {
			dot += x * float64(b[i])
		}
	}
	for _, bv := range b {
		magB += float64(bv) * float64(bv)
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// VectorSearch ranks slices by cosine similarity to query. Slices without an
// embedding of the query's dimensionality are skipped. Ties keep their input
// order. A topK <= 0 means DefaultVectorTopK.
func VectorSearch(query []float32, candidates []*core.Slice, topK int) []core.ScoredSlice {
	if topK <= 0 {
		topK = DefaultVectorTopK
	}
	if len(query) == 0 {
		return []core.ScoredSlice{}
	}

	scored := make([]core.ScoredSlice, 0, len(candidates))
	for _, slice := range candidates {
		if len(slice.Embedding) != len(query) {
			continue
		}
		scored = append(scored, core.ScoredSlice{Slice: slice, Score: Cosine(query, slice.Embedding)})
	}
	sortByScore(scored)

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
