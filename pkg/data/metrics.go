package data

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_results_total",
		Help: "Per-address results yielded to callers by endpoint",
	}, []string{"endpoint"})

	parseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_parse_errors_total",
		Help: "Responses rejected by schema validation by endpoint",
	}, []string{"endpoint"})

	rentalCompsOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_rental_comps_outcomes_total",
		Help: "Final rental comps outcomes by classification",
	}, []string{"outcome"})

	selectiveRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ox_rental_comps_selective_retries_total",
		Help: "Follow-up requests issued for dependency-unavailable addresses",
	})

	selectiveRetryAddressesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_rental_comps_selective_retry_addresses_total",
		Help: "Addresses sent in selective retries by result (recovered, failed)",
	}, []string{"result"})
)
