package batch

import "fmt"

// ChunkError is the error of a failed chunk. None of the chunk's items reach
// the result stream.
type ChunkError struct {
	// Index is the zero-based submission position of the chunk.
	Index int

	// Size is the number of items in the chunk.
	Size int

	Err error
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%d items): %v", e.Index, e.Size, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ChunkError) Unwrap() error {
	return e.Err
}
