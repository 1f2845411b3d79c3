package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultWorkers is the pool size used when a non-positive size is requested.
const DefaultWorkers = 4

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool is a fixed-capacity set of execution slots. At most Size() functions
// submitted through Go run at the same time; Go blocks while the pool is saturated.
//
// A Pool must be shut down with Close, which waits for every running function.
type Pool struct {
	name   string
	sem    chan struct{}
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	inFlight atomic.Int64
}

// NewPool creates a pool with size slots. name labels metrics and logs.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &Pool{
		name:   name,
		sem:    make(chan struct{}, size),
		logger: logging.NewLogger(logging.ComponentBatch).With().Str("pool", name).Logger(),
	}
}

// Name returns the pool label.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// InFlight returns the number of functions currently holding a slot.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Go waits for a free slot and runs fn on its own goroutine.
// It returns ErrPoolClosed after Close, or ctx.Err() if ctx ends while waiting.
// fn is never started when an error is returned.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	start := time.Now()
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}

	waited := time.Since(start)
	SlotWait.WithLabelValues(p.name).Observe(waited.Seconds())
	if waited > time.Second {
		p.logger.Warn().Dur("waited", waited).Int("size", p.Size()).Msg("Worker pool saturated")
	}

	p.inFlight.Add(1)
	InFlight.WithLabelValues(p.name).Inc()

	go func() {
		defer func() {
			p.inFlight.Add(-1)
			InFlight.WithLabelValues(p.name).Dec()
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()

	return nil
}

// Close stops accepting work and blocks until every running function returns.
// Calling Close more than once is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()

	if !already {
		p.logger.Debug().Msg("Worker pool closed")
	}
}
