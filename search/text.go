package search

import "strings"

// minWordLength is the shortest query word that contributes to a keyword score.
const minWordLength = 2

// queryWords lowercases query and splits it on whitespace, dropping words
// shorter than minWordLength.
func queryWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	words := fields[:0]
	for _, word := range fields {
		if len([]rune(word)) >= minWordLength {
			words = append(words, word)
		}
	}
	return words
}

// countOccurrences returns the number of non-overlapping occurrences of word
// in text. Both are expected in lower case; word is matched literally.
func countOccurrences(text, word string) int {
	if word == "" {
		return 0
	}
	return strings.Count(text, word)
}
