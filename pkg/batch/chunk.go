package batch

import (
	"errors"
	"iter"
)

// ErrInvalidChunkSize is returned by callers that validate a chunk size before calling Chunk.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Chunk groups the elements of seq into consecutive slices of size elements.
// The last slice may be shorter. An empty seq yields no slices.
//
// seq is consumed lazily: only one chunk is buffered at a time, so unbounded
// inputs are fine. Every yielded slice is freshly allocated and never reused.
//
// Chunk panics if size is less than 1.
func Chunk[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size < 1 {
		panic("batch: chunk size must be positive")
	}

	return func(yield func([]T) bool) {
		buf := make([]T, 0, size)
		for v := range seq {
			buf = append(buf, v)
			if len(buf) < size {
				continue
			}
			if !yield(buf) {
				return
			}
			buf = make([]T, 0, size)
		}
		if len(buf) > 0 {
			yield(buf)
		}
	}
}
