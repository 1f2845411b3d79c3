package batch

import (
	"errors"
	"iter"
)

// Flatten turns chunk results into one per-item stream. Items of a successful
// chunk are yielded in chunk order with a nil error. A failed chunk yields a
// single zero item carrying its error at the position its items would have
// occupied; iteration then continues with the next chunk.
func Flatten[A, R any](chunks iter.Seq[ChunkResult[A, R]]) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for chunk := range chunks {
			if chunk.Err != nil {
				var zero R
				if !yield(zero, chunk.Err) {
					return
				}
				continue
			}
			for _, r := range chunk.Results {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

// Collect drains seq. It returns every successful item and the joined errors of
// every failed position, so one failed chunk does not hide the others.
func Collect[R any](seq iter.Seq2[R, error]) ([]R, error) {
	var (
		out  []R
		errs []error
	)
	for r, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}
