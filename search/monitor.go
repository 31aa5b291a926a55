package search

import "github.com/poiesic/bookmind/core"

// Sides of a hybrid search, as reported to SearchFailed.
const (
	SideVector  = "vector"
	SideKeyword = "keyword"
)

// SearchMonitor provides hooks to observe a hybrid search.
// For each side exactly one of AfterXSearch or SearchFailed is called.
type SearchMonitor interface {
	Start(query string)
	AfterVectorSearch(results []core.ScoredSlice)
	AfterKeywordSearch(results []core.ScoredSlice)
	SearchFailed(side string, err error)
	Finish(results []core.ScoredSlice)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                         {}
func (n *noopMonitor) AfterVectorSearch(_ []core.ScoredSlice)  {}
func (n *noopMonitor) AfterKeywordSearch(_ []core.ScoredSlice) {}
func (n *noopMonitor) SearchFailed(_ string, _ error)          {}
func (n *noopMonitor) Finish(_ []core.ScoredSlice)             {}
