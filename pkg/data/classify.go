package data

import (
	"fmt"
	"net/http"
	"strings"
)

// Outcome is the classification of one rental comps result.
type Outcome int

const (
	// OutcomeSuccess means comps were generated.
	OutcomeSuccess Outcome = iota

	// OutcomeNoCompsFound means the address is valid but has no comps. Not billed, not retried.
	OutcomeNoCompsFound

	// OutcomeDependencyUnavailable means a server dependency failed. Retried once.
	OutcomeDependencyUnavailable

	// OutcomeUnsupportedFilter means a relative filter references a field the subject lacks.
	OutcomeUnsupportedFilter

	// OutcomeUnknownFailure covers every other error message.
	OutcomeUnknownFailure
)

// Error messages recognized by DefaultClassifier. Matching is exact except for
// MessageUnsupportedFilter, which is a substring.
const (
	MessageNoCompsFound          = "No products found for address"
	MessageDependencyUnavailable = "Could not generate similarity scores"
	MessageUnsupportedFilter     = "Cannot apply relative filtering on: "
)

// retryableCodes are the per-address codes that trigger a selective retry.
var retryableCodes = map[int]bool{
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoCompsFound:
		return "no_comps_found"
	case OutcomeDependencyUnavailable:
		return "dependency_unavailable"
	case OutcomeUnsupportedFilter:
		return "unsupported_filter"
	case OutcomeUnknownFailure:
		return "unknown_failure"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// APICode returns the HTTP-like status code of the outcome.
func (o Outcome) APICode() int {
	switch o {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeNoCompsFound:
		return http.StatusNoContent
	case OutcomeDependencyUnavailable:
		return http.StatusServiceUnavailable
	case OutcomeUnsupportedFilter:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the address should be sent again.
func (o Outcome) Retryable() bool {
	return o == OutcomeDependencyUnavailable
}

// Failure reports whether the outcome is an error. NoCompsFound is not.
func (o Outcome) Failure() bool {
	switch o {
	case OutcomeDependencyUnavailable, OutcomeUnsupportedFilter, OutcomeUnknownFailure:
		return true
	default:
		return false
	}
}

// OutcomeForCode maps an APICode back to an Outcome.
func OutcomeForCode(code int) Outcome {
	switch {
	case code == http.StatusNoContent:
		return OutcomeNoCompsFound
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case retryableCodes[code]:
		return OutcomeDependencyUnavailable
	case code == http.StatusUnprocessableEntity:
		return OutcomeUnsupportedFilter
	default:
		return OutcomeUnknownFailure
	}
}

// Classifier maps an embedded error message ("" when absent) to an Outcome.
type Classifier func(errorMessage string) Outcome

// DefaultClassifier matches the messages currently sent by the rental comps
// endpoint. Unrecognized messages are OutcomeUnknownFailure.
func DefaultClassifier(errorMessage string) Outcome {
	switch {
	case errorMessage == "":
		return OutcomeSuccess
	case errorMessage == MessageNoCompsFound:
		return OutcomeNoCompsFound
	case errorMessage == MessageDependencyUnavailable:
		return OutcomeDependencyUnavailable
	case strings.Contains(errorMessage, MessageUnsupportedFilter):
		return OutcomeUnsupportedFilter
	default:
		return OutcomeUnknownFailure
	}
}

// Classify returns r with APICode and HasErrors filled in. A result that
// already carries an APICode keeps it, so Classify(Classify(r)) == Classify(r).
// A nil classify uses DefaultClassifier.
func Classify(r RentalCompsResult, classify Classifier) RentalCompsResult {
	if r.APICode == 0 {
		if classify == nil {
			classify = DefaultClassifier
		}
		r.APICode = classify(r.ErrorMessage).APICode()
	}
	r.HasErrors = r.HasErrors || OutcomeForCode(r.APICode).Failure()
	return r
}
