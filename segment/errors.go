package segment

import "errors"

var (
	// ErrInvalidSize is returned for a non-positive chunk size or negative lookback.
	ErrInvalidSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap is returned when overlap is negative or not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("invalid chunk overlap")

	// ErrIterationLimit indicates the chunking loop failed to make progress.
	// It points at a defect in the window arithmetic, not at bad input.
	ErrIterationLimit = errors.New("chunking iteration limit exceeded")
)
