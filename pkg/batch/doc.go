// Package batch splits arbitrarily long address streams into bounded request
// chunks and dispatches them to a fixed-size worker pool.
//
// The remote data API accepts only a handful of addresses per call. This package
// turns a lazy input sequence into chunks, runs one call per chunk with at most
// Pool.Size() calls in flight, and rebuilds a single result stream.
//
// Example usage:
//
//	pool := batch.NewPool("rental-comps", 4)
//	defer pool.Close()
//
//	d := batch.NewDispatcher(pool, "/data/rental-comps", batch.SubmissionOrder, fetchChunk)
//	for result, err := range batch.Flatten(d.Dispatch(ctx, batch.Chunk(addresses, 10))) {
//		if err != nil {
//			// the chunk that held these addresses failed; later chunks still arrive
//			continue
//		}
//		use(result)
//	}
//
// Two ordering policies exist:
//   - SubmissionOrder yields chunks in the order they were submitted. A slow
//     early chunk holds back later chunks that already completed.
//   - CompletionOrder yields each chunk as soon as its call returns.
//
// A failed chunk never aborts chunks that were already dispatched. Its error is
// surfaced at the position its results would have occupied.
package batch
