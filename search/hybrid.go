package search

import "github.com/poiesic/bookmind/core"

// KeyFunc identifies results that count as duplicates in a hybrid search.
type KeyFunc func(*core.Slice) string

// ByURL treats slices of the same document as duplicates.
func ByURL(slice *core.Slice) string {
	return slice.URL
}

// ByTitle treats slices with the same title as duplicates.
func ByTitle(slice *core.Slice) string {
	return slice.Title
}

// BySlice keeps every distinct slice.
func BySlice(slice *core.Slice) string {
	return slice.ID
}

// Merge concatenates vector and keyword results, keeping only the first result
// for each key. Results are not re-ranked.
func Merge(vector, keyword []core.ScoredSlice, key KeyFunc) []core.ScoredSlice {
	if key == nil {
		key = ByURL
	}
	seen := make(map[string]struct{}, len(vector)+len(keyword))
	merged := make([]core.ScoredSlice, 0, len(vector)+len(keyword))
	for _, list := range [][]core.ScoredSlice{vector, keyword} {
		for _, result := range list {
			k := key(result.Slice)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, result)
		}
	}
	return merged
}
