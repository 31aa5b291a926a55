package badger

import (
	"encoding/binary"

	"github.com/poiesic/bookmind/core"
)

// Key prefixes for different data types
const (
	pagePrefix  = "page:"
	slicePrefix = "slice:"
	queuePrefix = "queue:"
)

// makePageKey generates a key for a page by URL.
func makePageKey(url string) []byte {
	return []byte(pagePrefix + url)
}

// makeQueueKey generates a key for a queue record by URL.
func makeQueueKey(url string) []byte {
	return []byte(queuePrefix + url)
}

// makeSliceKey generates a composite key for a slice.
// Format: prefix:urlID:position
// The URL hash keeps keys fixed-width; slices of one document are contiguous
// and ordered by position.
func makeSliceKey(url string, position int) []byte {
	prefixBytes := []byte(slicePrefix)
	buf := make([]byte, len(prefixBytes)+16) // 8 bytes for urlID + 8 bytes for position
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(url)))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	return buf
}

// makePartialSliceKey generates the key prefix shared by all slices of url.
// Format: prefix:urlID
func makePartialSliceKey(url string) []byte {
	prefixBytes := []byte(slicePrefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(url)))
	return buf
}
