package data

import (
	"context"
	"fmt"
	"iter"

	"github.com/Sternrassler/open-exchange-client/pkg/batch"
)

// Bounds and default of RentalCompsOptions.NumComps.
const (
	DefaultNumComps = 10
	MinNumComps     = 1
	MaxNumComps     = 50
)

// RentalCompsOptions configures a rental comps fetch.
type RentalCompsOptions struct {
	// MaxAddressesPerRequest is the chunk size (default: MaxRentalCompsPerRequest).
	MaxAddressesPerRequest int

	// Filters narrows the search. Validated before any request is sent.
	Filters *Filters

	// NumComps is the number of comps per address, 1 to 50 (default: 10).
	NumComps int

	// Order selects submission order (default) or completion order. With
	// completion order, correlate results by Address.Token.
	Order batch.Order

	// Classifier replaces DefaultClassifier.
	Classifier Classifier
}

type rentalCompsRequest struct {
	Addresses []Address `json:"addresses"`
	Filters   *Filters  `json:"filters,omitempty"`
	NumComps  int       `json:"num_comps"`
}

// RentalCompsService fetches comparable rentals.
//
// Every result is classified (see Classify). Addresses classified as
// OutcomeDependencyUnavailable are sent again in one follow-up request for
// their chunk, and the follow-up results replace the originals. There is never
// a second follow-up.
type RentalCompsService struct {
	res *resource[RentalCompsResult]
}

// NewRentalCompsService creates the service with its own pool of workers.
func NewRentalCompsService(transport Transport, workers int) *RentalCompsService {
	return &RentalCompsService{
		res: newResource(transport, workers, PathRentalComps, MaxRentalCompsPerRequest, missingRentalComps,
			func(r *RentalCompsResult) *string { return &r.Token }),
	}
}

// Fetch returns one classified result per address. A failed chunk yields a
// single error in place of its results; the stream then continues.
func (s *RentalCompsService) Fetch(ctx context.Context, addresses iter.Seq[Address], opts RentalCompsOptions) iter.Seq2[RentalCompsResult, error] {
	size, err := s.res.chunkSize(opts.MaxAddressesPerRequest)
	if err != nil {
		return errSeq[RentalCompsResult](err)
	}
	numComps := opts.NumComps
	if numComps == 0 {
		numComps = DefaultNumComps
	}
	if numComps < MinNumComps || numComps > MaxNumComps {
		return errSeq[RentalCompsResult](fmt.Errorf("%w: num_comps must be in [%d, %d] (got %d)", ErrInvalidOptions, MinNumComps, MaxNumComps, numComps))
	}
	if err := opts.Filters.Validate(); err != nil {
		return errSeq[RentalCompsResult](err)
	}

	classify := opts.Classifier
	if classify == nil {
		classify = DefaultClassifier
	}

	call := func(ctx context.Context, chunk []Address) ([]RentalCompsResult, error) {
		results, err := s.request(ctx, chunk, opts.Filters, numComps, classify)
		if err != nil {
			return nil, err
		}
		results, err = s.retryUnavailable(ctx, chunk, results, opts.Filters, numComps, classify)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			rentalCompsOutcomesTotal.WithLabelValues(r.Outcome().String()).Inc()
		}
		return results, nil
	}

	return s.res.fetch(ctx, addresses, size, opts.Order, call)
}

// request sends one rental comps call and classifies its results.
func (s *RentalCompsService) request(ctx context.Context, addresses []Address, filters *Filters, numComps int, classify Classifier) ([]RentalCompsResult, error) {
	results, err := s.res.request(ctx, addresses, rentalCompsRequest{
		Addresses: addresses,
		Filters:   filters,
		NumComps:  numComps,
	})
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i] = Classify(results[i], classify)
		s.res.logger.Debug().
			Str("token", results[i].Token).
			Str("outcome", results[i].Outcome().String()).
			Int("api_code", results[i].APICode).
			Msg("Result classified")
	}
	return results, nil
}

// retryUnavailable re-requests the retryable addresses of chunk once and
// returns a new slice with their results replaced. results is not modified.
func (s *RentalCompsService) retryUnavailable(ctx context.Context, chunk []Address, results []RentalCompsResult, filters *Filters, numComps int, classify Classifier) ([]RentalCompsResult, error) {
	var (
		indices []int
		retry   []Address
	)
	for i, r := range results {
		if r.Outcome().Retryable() {
			indices = append(indices, i)
			retry = append(retry, chunk[i])
		}
	}
	if len(retry) == 0 {
		return results, nil
	}

	selectiveRetriesTotal.Inc()
	s.res.logger.Warn().
		Int("retry_count", len(retry)).
		Int("chunk_size", len(chunk)).
		Msg("Retrying dependency-unavailable addresses")

	retried, err := s.request(ctx, retry, filters, numComps, classify)
	if err != nil {
		selectiveRetryAddressesTotal.WithLabelValues("failed").Add(float64(len(retry)))
		return nil, fmt.Errorf("selective retry of %d addresses: %w", len(retry), err)
	}

	return splice(results, indices, retried), nil
}

// splice returns a copy of base with base[indices[j]] replaced by replacements[j].
func splice(base []RentalCompsResult, indices []int, replacements []RentalCompsResult) []RentalCompsResult {
	out := make([]RentalCompsResult, len(base))
	copy(out, base)
	for j, idx := range indices {
		out[idx] = replacements[j]
		if replacements[j].Outcome().Retryable() {
			selectiveRetryAddressesTotal.WithLabelValues("failed").Inc()
		} else {
			selectiveRetryAddressesTotal.WithLabelValues("recovered").Inc()
		}
	}
	return out
}

// Close waits for running requests and releases the workers.
func (s *RentalCompsService) Close() {
	s.res.Close()
}
