package segment

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/poiesic/bookmind/core"
)

const (
	// DefaultMaxSize is the default chunk size in characters.
	DefaultMaxSize = 1000
	// DefaultOverlap is the default overlap between consecutive chunks.
	DefaultOverlap = 100
	// DefaultLookback is how far before a cut point a boundary is searched for.
	DefaultLookback = 200
	// MinTextLength is the shortest text worth chunking.
	MinTextLength = 50

	iterationSlack = 10
)

// Splitter cuts text into overlapping chunks, preferring sentence boundaries.
// A Splitter is immutable after construction and safe for concurrent use.
type Splitter struct {
	maxSize  int
	overlap  int
	lookback int
	logger   *slog.Logger
}

// Option configures a Splitter.
type Option func(*Splitter) error

// WithMaxSize sets the maximum chunk size in characters.
func WithMaxSize(size int) Option {
	return func(s *Splitter) error {
		if size < 1 {
			return fmt.Errorf("%w: max size %d", ErrInvalidSize, size)
		}
		s.maxSize = size
		return nil
	}
}

// WithOverlap sets the number of characters shared by consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) error {
		if overlap < 0 {
			return fmt.Errorf("%w: overlap %d", ErrInvalidOverlap, overlap)
		}
		s.overlap = overlap
		return nil
	}
}

// WithLookback sets the boundary search window before each cut point.
func WithLookback(lookback int) Option {
	return func(s *Splitter) error {
		if lookback < 0 {
			return fmt.Errorf("%w: lookback %d", ErrInvalidSize, lookback)
		}
		s.lookback = lookback
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Splitter) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSplitter creates a Splitter with the default sizes, then applies opts.
func NewSplitter(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		maxSize:  DefaultMaxSize,
		overlap:  DefaultOverlap,
		lookback: DefaultLookback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.overlap >= s.maxSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than max size %d", ErrInvalidOverlap, s.overlap, s.maxSize)
	}
	// at most half of each step may be given back to the boundary search
	s.lookback = min(s.lookback, (s.maxSize-s.overlap)/2)
	s.logger = s.logger.With("component", "splitter")
	return s, nil
}

// Segment splits text with the given size and overlap and the default lookback.
func Segment(text string, maxSize, overlap int) ([]core.Chunk, error) {
	s, err := NewSplitter(WithMaxSize(maxSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return s.Split(text)
}

// Split cuts text into chunks.
//
// Text no longer than the max size is returned unchanged as a single chunk.
// Longer text is cut into windows of at most max size characters. Each cut
// prefers the first sentence boundary in the lookback window, then the last
// space, then the raw window edge. The next window starts overlap characters
// before the cut and is moved forward to the next sentence start when one is
// close by. Chunks are trimmed; blank chunks are dropped without consuming a
// position.
func (s *Splitter) Split(text string) ([]core.Chunk, error) {
	runes := []rune(text)
	n := len(runes)
	if n <= s.maxSize {
		return []core.Chunk{{Text: text, Position: 0}}, nil
	}

	limit := s.iterationLimit(n)
	chunks := make([]core.Chunk, 0, n/(s.maxSize-s.overlap)+1)
	emit := func(from, to int) {
		piece := strings.TrimSpace(string(runes[from:to]))
		if piece == "" {
			return
		}
		chunks = append(chunks, core.Chunk{Text: piece, Position: len(chunks)})
	}

	start := 0
	for iterations := 0; start < n; iterations++ {
		if iterations >= limit {
			s.logger.Error("chunking exceeded iteration limit",
				"length", n, "limit", limit, "offset", start, "chunks", len(chunks))
			return nil, fmt.Errorf("%w: %d iterations at offset %d of %d", ErrIterationLimit, iterations, start, n)
		}

		end := start + s.maxSize
		if end >= n {
			emit(start, n)
			break
		}

		windowStart := max(start, end-s.lookback)
		if idx := sentenceBreak(runes[windowStart:end]); idx >= 0 {
			end = windowStart + idx + 2
		} else if idx := lastSpace(runes[windowStart:end]); idx >= 0 && windowStart+idx > start {
			end = windowStart + idx
		}
		emit(start, end)

		next := max(start+1, end-s.overlap)
		if next < n {
			window := runes[next:min(n, next+s.overlap)]
			if idx := sentenceEnd(window); idx >= 0 {
				next += idx + 2
			}
		}
		if next <= start {
			next = start + max(1, s.maxSize-s.overlap)
		}
		start = next
	}

	s.logger.Debug("split text", "length", n, "chunks", len(chunks))
	return chunks, nil
}

// iterationLimit bounds the loop by the smallest advance a single iteration
// can make: a cut at the far side of the lookback window followed by a full
// overlap step back. With the lookback clamp in NewSplitter that advance is
// at least half of maxSize-overlap.
func (s *Splitter) iterationLimit(n int) int {
	advance := max(1, s.maxSize-s.lookback-s.overlap)
	return (n+advance-1)/advance + iterationSlack
}

// sentenceBreak returns the index of the first punctuation mark followed by
// whitespace and an uppercase letter, or -1.
func sentenceBreak(window []rune) int {
	for i := 0; i < len(window)-2; i++ {
		if !isTerminal(window[i]) || !unicode.IsSpace(window[i+1]) {
			continue
		}
		j := i + 1
		for j < len(window) && unicode.IsSpace(window[j]) {
			j++
		}
		if j < len(window) && unicode.IsUpper(window[j]) {
			return i
		}
	}
	return -1
}

// sentenceEnd returns the index of the first punctuation mark followed by
// whitespace, or -1.
func sentenceEnd(window []rune) int {
	for i := 0; i < len(window)-1; i++ {
		if isTerminal(window[i]) && unicode.IsSpace(window[i+1]) {
			return i
		}
	}
	return -1
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
