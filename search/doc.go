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


// Package search retrieves stored slices by keyword, by vector similarity, or
// by both.
//
// Keyword scoring counts case-insensitive literal occurrences of each query
// word of two or more characters in a slice's title and text, with a bonus for
// words found in the title. Vector search ranks slices by cosine similarity to
// the query embedding and ignores slices of a different dimensionality.
//
// Hybrid search runs both concurrently and concatenates the results, vector
// hits first, keeping the first result per key (URL or title). It does not
// re-rank. If one half fails the other half's results are returned alone.
//
//	searcher, err := search.NewSearcher(slices, embedder)
//	results, err := searcher.Hybrid(ctx, search.HybridQuery{Text: "react hooks", TopK: 5})
package search
