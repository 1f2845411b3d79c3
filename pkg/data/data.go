package data

import "github.com/Sternrassler/open-exchange-client/pkg/batch"

// Config holds the settings shared by all services.
type Config struct {
	// Workers is the number of concurrent requests per service (default: 4).
	Workers int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{Workers: batch.DefaultWorkers}
}

// Data groups the four endpoint services. Each service owns its worker pool;
// Close shuts them all down.
type Data struct {
	PropertyDetails *PropertyDetailsService
	PropertyValues  *PropertyValuesService
	RentEstimates   *RentEstimatesService
	RentalComps     *RentalCompsService
}

// New creates every service on top of transport.
func New(transport Transport, cfg Config) *Data {
	workers := cfg.Workers
	if workers <= 0 {
		workers = batch.DefaultWorkers
	}
	return &Data{
		PropertyDetails: NewPropertyDetailsService(transport, workers),
		PropertyValues:  NewPropertyValuesService(transport, workers),
		RentEstimates:   NewRentEstimatesService(transport, workers),
		RentalComps:     NewRentalCompsService(transport, workers),
	}
}

// Close shuts down every service and waits for in-flight requests.
func (d *Data) Close() {
	d.PropertyDetails.Close()
	d.PropertyValues.Close()
	d.RentEstimates.Close()
	d.RentalComps.Close()
}
