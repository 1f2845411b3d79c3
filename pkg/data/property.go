package data

import (
	"context"
	"iter"
)

// PropertyDetailsService fetches property attributes. Results are returned in input order.
type PropertyDetailsService struct {
	res *resource[PropertyDetailsResult]
}

// NewPropertyDetailsService creates the service with its own pool of workers.
func NewPropertyDetailsService(transport Transport, workers int) *PropertyDetailsService {
	return &PropertyDetailsService{
		res: newResource(transport, workers, PathPropertyDetails, MaxPropertyDetailsPerRequest, missingPropertyDetails,
			func(r *PropertyDetailsResult) *string { return &r.Token }),
	}
}

// Fetch returns one result per address. A failed chunk yields a single error
// in place of its results; the stream then continues with the next chunk.
func (s *PropertyDetailsService) Fetch(ctx context.Context, addresses iter.Seq[Address], opts FetchOptions) iter.Seq2[PropertyDetailsResult, error] {
	return s.res.simpleFetch(ctx, addresses, opts)
}

// Close waits for running requests and releases the workers.
func (s *PropertyDetailsService) Close() {
	s.res.Close()
}

// PropertyValuesService fetches property valuations. Results are returned in input order.
type PropertyValuesService struct {
	res *resource[PropertyValueResult]
}

// NewPropertyValuesService creates the service with its own pool of workers.
func NewPropertyValuesService(transport Transport, workers int) *PropertyValuesService {
	return &PropertyValuesService{
		res: newResource(transport, workers, PathPropertyValues, MaxPropertyValuesPerRequest, missingPropertyValue,
			func(r *PropertyValueResult) *string { return &r.Token }),
	}
}

// Fetch returns one result per address. A failed chunk yields a single error
// in place of its results; the stream then continues with the next chunk.
func (s *PropertyValuesService) Fetch(ctx context.Context, addresses iter.Seq[Address], opts FetchOptions) iter.Seq2[PropertyValueResult, error] {
	return s.res.simpleFetch(ctx, addresses, opts)
}

// Close waits for running requests and releases the workers.
func (s *PropertyValuesService) Close() {
	s.res.Close()
}

// RentEstimatesService fetches monthly rent estimates. Results are returned in input order.
type RentEstimatesService struct {
	res *resource[RentEstimateResult]
}

// NewRentEstimatesService creates the service with its own pool of workers.
func NewRentEstimatesService(transport Transport, workers int) *RentEstimatesService {
	return &RentEstimatesService{
		res: newResource(transport, workers, PathRentEstimates, MaxRentEstimatesPerRequest, missingRentEstimate,
			func(r *RentEstimateResult) *string { return &r.Token }),
	}
}

// Fetch returns one result per address. A failed chunk yields a single error
// in place of its results; the stream then continues with the next chunk.
func (s *RentEstimatesService) Fetch(ctx context.Context, addresses iter.Seq[Address], opts FetchOptions) iter.Seq2[RentEstimateResult, error] {
	return s.res.simpleFetch(ctx, addresses, opts)
}

// Close waits for running requests and releases the workers.
func (s *RentEstimatesService) Close() {
	s.res.Close()
}
