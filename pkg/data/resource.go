package data

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/Sternrassler/open-exchange-client/pkg/batch"
	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Transport executes one API call and returns the raw JSON response body.
// *client.Client implements it.
type Transport interface {
	Do(ctx context.Context, method, path string, body any) ([]byte, error)
}

// Endpoint paths.
const (
	PathPropertyDetails = "/data/property-details"
	PathPropertyValues  = "/data/property-values"
	PathRentEstimates   = "/data/rent-estimates"
	PathRentalComps     = "/data/rental-comps"
)

// Maximum addresses per request accepted by each endpoint.
const (
	MaxPropertyDetailsPerRequest = 50
	MaxPropertyValuesPerRequest  = 50
	MaxRentEstimatesPerRequest   = 50
	MaxRentalCompsPerRequest     = 10
)

// FetchOptions configures a fetch on the property details, property values
// and rent estimates endpoints.
type FetchOptions struct {
	// MaxAddressesPerRequest is the chunk size (default: the endpoint maximum).
	MaxAddressesPerRequest int
}

type addressesRequest struct {
	Addresses []Address `json:"addresses"`
}

// resource is the endpoint-independent part of a service: it owns the worker
// pool and turns an address stream into a result stream.
type resource[R any] struct {
	transport  Transport
	pool       *batch.Pool
	path       string
	defaultMax int
	missing    missingFunc
	token      func(*R) *string
	logger     zerolog.Logger
}

func newResource[R any](transport Transport, workers int, path string, defaultMax int, missing missingFunc, token func(*R) *string) *resource[R] {
	return &resource[R]{
		transport:  transport,
		pool:       batch.NewPool(path, workers),
		path:       path,
		defaultMax: defaultMax,
		missing:    missing,
		token:      token,
		logger:     logging.NewLogger(logging.ComponentData).With().Str("endpoint", path).Logger(),
	}
}

// chunkSize resolves the requested chunk size.
func (r *resource[R]) chunkSize(requested int) (int, error) {
	switch {
	case requested == 0:
		return r.defaultMax, nil
	case requested < 0:
		return 0, fmt.Errorf("%w: max_addresses_per_request = %d: %w", ErrInvalidOptions, requested, batch.ErrInvalidChunkSize)
	default:
		return requested, nil
	}
}

// request sends one chunk and parses the response.
func (r *resource[R]) request(ctx context.Context, chunk []Address, body any) ([]R, error) {
	if err := validateAddresses(chunk); err != nil {
		return nil, err
	}
	resp, err := r.transport.Do(ctx, http.MethodPost, r.path, body)
	if err != nil {
		return nil, err
	}
	results, err := parseResults(r.path, resp, chunk, r.missing, r.token)
	if err != nil {
		r.logger.Error().Err(err).Int("chunk_size", len(chunk)).Msg("Response failed schema validation")
		return nil, err
	}
	return results, nil
}

// fetch chunks addresses and runs call for every chunk on the pool.
func (r *resource[R]) fetch(ctx context.Context, addresses iter.Seq[Address], size int, order batch.Order, call batch.CallFunc[Address, R]) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		start := time.Now()
		var yielded, failed int

		r.logger.Debug().
			Int("chunk_size", size).
			Str("order", order.String()).
			Msg("Fetch started")
		defer func() {
			r.logger.Info().
				Int("results", yielded).
				Int("failed_chunks", failed).
				Dur("duration", time.Since(start)).
				Msg("Fetch finished")
		}()

		d := batch.NewDispatcher(r.pool, r.path, order, call)
		chunks := r.withAddresses(d.Dispatch(ctx, batch.Chunk(addresses, size)))
		for result, err := range batch.Flatten(chunks) {
			if err != nil {
				failed++
			} else {
				yielded++
				resultsTotal.WithLabelValues(r.path).Inc()
			}
			if !yield(result, err) {
				return
			}
		}
	}
}

// withAddresses replaces the error of every failed chunk with a *ChunkError
// naming the chunk's addresses.
func (r *resource[R]) withAddresses(chunks iter.Seq[batch.ChunkResult[Address, R]]) iter.Seq[batch.ChunkResult[Address, R]] {
	return func(yield func(batch.ChunkResult[Address, R]) bool) {
		for chunk := range chunks {
			if chunk.Err != nil {
				chunk.Err = newChunkError(r.path, chunk.Chunk, chunk.Err)
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// simpleFetch is the fetch of the endpoints whose request holds only addresses.
func (r *resource[R]) simpleFetch(ctx context.Context, addresses iter.Seq[Address], opts FetchOptions) iter.Seq2[R, error] {
	size, err := r.chunkSize(opts.MaxAddressesPerRequest)
	if err != nil {
		return errSeq[R](err)
	}
	call := func(ctx context.Context, chunk []Address) ([]R, error) {
		return r.request(ctx, chunk, addressesRequest{Addresses: chunk})
	}
	return r.fetch(ctx, addresses, size, batch.SubmissionOrder, call)
}

// Close shuts the worker pool down and waits for running calls.
func (r *resource[R]) Close() {
	r.pool.Close()
}

// errSeq yields err once.
func errSeq[R any](err error) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		yield(zero, err)
	}
}
