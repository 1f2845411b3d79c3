package batch

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Order selects how a Dispatcher releases completed chunks.
type Order int

const (
	// SubmissionOrder releases chunks in the order they were submitted.
	SubmissionOrder Order = iota

	// CompletionOrder releases chunks as soon as their call returns.
	CompletionOrder
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case SubmissionOrder:
		return "submission"
	case CompletionOrder:
		return "completion"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// CallFunc performs the request for one chunk. It must return exactly one
// result per element of chunk, in chunk order, or an error.
type CallFunc[A, R any] func(ctx context.Context, chunk []A) ([]R, error)

// ChunkResult is the outcome of one chunk call.
type ChunkResult[A, R any] struct {
	// Index is the zero-based submission position of the chunk.
	Index int

	// Chunk is the input that was sent.
	Chunk []A

	// Results holds one entry per element of Chunk when Err is nil.
	Results []R

	// Err is the fatal error of the chunk call, if any. It is always a
	// *ChunkError.
	Err error
}

// Dispatcher submits one CallFunc per chunk to a Pool.
type Dispatcher[A, R any] struct {
	pool     *Pool
	endpoint string
	order    Order
	call     CallFunc[A, R]
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher. endpoint labels metrics and logs.
func NewDispatcher[A, R any](pool *Pool, endpoint string, order Order, call CallFunc[A, R]) *Dispatcher[A, R] {
	return &Dispatcher[A, R]{
		pool:     pool,
		endpoint: endpoint,
		order:    order,
		call:     call,
		logger:   logging.NewLogger(logging.ComponentBatch).With().Str("endpoint", endpoint).Logger(),
	}
}

// Order returns the configured ordering policy.
func (d *Dispatcher[A, R]) Order() Order {
	return d.order
}

// pendingCall tracks one submitted chunk until its result has been released.
type pendingCall[A, R any] struct {
	result ChunkResult[A, R]
	done   chan struct{}
}

// Dispatch returns a sequence of chunk results. Chunks are pulled from chunks
// lazily, and a chunk is only taken once a pool slot is free.
//
// Breaking out of the range loop cancels submission of further chunks and
// waits for the calls already running. Dispatch never returns a chunk twice.
func (d *Dispatcher[A, R]) Dispatch(ctx context.Context, chunks iter.Seq[[]A]) iter.Seq[ChunkResult[A, R]] {
	return func(yield func(ChunkResult[A, R]) bool) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		start := time.Now()
		var released int
		defer func() {
			d.logger.Debug().
				Int("chunks", released).
				Str("order", d.order.String()).
				Dur("duration", time.Since(start)).
				Msg("Dispatch finished")
		}()

		if d.order == CompletionOrder {
			released = d.completionOrder(runCtx, cancel, chunks, yield)
			return
		}
		released = d.submissionOrder(runCtx, cancel, chunks, yield)
	}
}

func (d *Dispatcher[A, R]) submissionOrder(ctx context.Context, cancel context.CancelFunc, chunks iter.Seq[[]A], yield func(ChunkResult[A, R]) bool) int {
	queue := make(chan *pendingCall[A, R], d.pool.Size())

	go func() {
		defer close(queue)
		d.submit(ctx, chunks,
			func(p *pendingCall[A, R]) { queue <- p },
			func(p *pendingCall[A, R]) { close(p.done) },
		)
	}()

	released := 0
	for p := range queue {
		// Head-of-line: a later chunk that already finished waits here.
		<-p.done
		released++
		if !yield(p.result) {
			cancel()
			for range queue {
			}
			return released
		}
	}
	return released
}

func (d *Dispatcher[A, R]) completionOrder(ctx context.Context, cancel context.CancelFunc, chunks iter.Seq[[]A], yield func(ChunkResult[A, R]) bool) int {
	completed := make(chan ChunkResult[A, R], d.pool.Size())

	go func() {
		defer close(completed)
		d.submit(ctx, chunks,
			func(*pendingCall[A, R]) {},
			func(p *pendingCall[A, R]) { completed <- p.result },
		)
	}()

	released := 0
	for result := range completed {
		released++
		if !yield(result) {
			cancel()
			for range completed {
			}
			return released
		}
	}
	return released
}

// submit pulls chunks, hands each to the pool and waits for every started call
// before returning. enqueue is invoked in submission order; complete runs once
// per chunk when its result is final. Both may block: the consumer keeps
// draining until the channels behind them are closed.
//
// Once ctx ends, the next chunk is reported with the context error and
// submission stops.
func (d *Dispatcher[A, R]) submit(
	ctx context.Context,
	chunks iter.Seq[[]A],
	enqueue func(*pendingCall[A, R]),
	complete func(*pendingCall[A, R]),
) {
	var wg sync.WaitGroup
	defer wg.Wait()

	index := 0
	for chunk := range chunks {
		p := &pendingCall[A, R]{
			result: ChunkResult[A, R]{Index: index, Chunk: chunk},
			done:   make(chan struct{}),
		}
		index++

		err := ctx.Err()
		if err == nil {
			wg.Add(1)
			err = d.pool.Go(ctx, func() {
				defer wg.Done()
				d.run(ctx, p)
				complete(p)
			})
			if err != nil {
				wg.Done()
			}
		}
		if err != nil {
			p.result.Err = &ChunkError{Index: p.result.Index, Size: len(chunk), Err: fmt.Errorf("submit: %w", err)}
			ChunksTotal.WithLabelValues(d.endpoint, "error").Inc()
			enqueue(p)
			complete(p)
			return
		}

		d.logger.Debug().
			Int("chunk", p.result.Index).
			Int("chunk_size", len(chunk)).
			Msg("Chunk submitted")

		enqueue(p)
	}
}

func (d *Dispatcher[A, R]) run(ctx context.Context, p *pendingCall[A, R]) {
	start := time.Now()
	results, err := d.call(ctx, p.result.Chunk)
	elapsed := time.Since(start)

	ChunkDuration.WithLabelValues(d.endpoint).Observe(elapsed.Seconds())

	if err == nil && len(results) != len(p.result.Chunk) {
		err = fmt.Errorf("got %d results for %d inputs", len(results), len(p.result.Chunk))
	}
	if err != nil {
		ChunksTotal.WithLabelValues(d.endpoint, "error").Inc()
		d.logger.Error().
			Err(err).
			Int("chunk", p.result.Index).
			Int("chunk_size", len(p.result.Chunk)).
			Dur("duration", elapsed).
			Msg("Chunk failed")
		p.result.Err = &ChunkError{Index: p.result.Index, Size: len(p.result.Chunk), Err: err}
		return
	}

	ChunksTotal.WithLabelValues(d.endpoint, "ok").Inc()
	d.logger.Debug().
		Int("chunk", p.result.Index).
		Int("chunk_size", len(p.result.Chunk)).
		Dur("duration", elapsed).
		Msg("Chunk completed")
	p.result.Results = results
}
