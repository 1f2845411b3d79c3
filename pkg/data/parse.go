package data

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// responseEnvelope is the common shape of every endpoint response.
// Results is a pointer so a missing key can be told apart from an empty list.
type responseEnvelope struct {
	Results *[]json.RawMessage `json:"results"`
}

// missingFunc returns the JSON path of the first required field absent from obj, or "".
type missingFunc func(obj map[string]json.RawMessage) string

// parseResults decodes body into one R per address of chunk. It fails closed:
// a missing envelope, a result count that differs from the chunk, a missing
// required field or a foreign token rejects the whole response.
//
// A result without a token inherits the token of its address.
func parseResults[R any](endpoint string, body []byte, chunk []Address, missing missingFunc, token func(*R) *string) ([]R, error) {
	fail := func(index int, field string, err error) ([]R, error) {
		parseErrorsTotal.WithLabelValues(endpoint).Inc()
		return nil, &ParseError{Endpoint: endpoint, Index: index, Field: field, Err: err}
	}

	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fail(-1, "", err)
	}
	if env.Results == nil {
		return fail(-1, "results", ErrMissingField)
	}
	raw := *env.Results
	if len(raw) != len(chunk) {
		return fail(-1, "results", fmt.Errorf("%w: got %d for %d addresses", ErrResultCount, len(raw), len(chunk)))
	}

	out := make([]R, len(raw))
	for i, item := range raw {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			return fail(i, "", err)
		}
		if obj == nil {
			return fail(i, "", fmt.Errorf("%w: result is null", ErrMissingField))
		}
		if field := missing(obj); field != "" {
			return fail(i, field, ErrMissingField)
		}
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return fail(i, "", err)
		}

		want := chunk[i].Token
		got := token(&out[i])
		switch {
		case want == "":
		case *got == "":
			*got = want
		case *got != want:
			return fail(i, "token", fmt.Errorf("%w: sent %q, got %q", ErrTokenMismatch, want, *got))
		}
	}
	return out, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// missingField returns the first key of keys that is absent or null in obj.
func missingField(obj map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; !ok || isNull(v) {
			return k
		}
	}
	return ""
}

// missingNested checks keys inside the optional object obj[key].
// Type errors are left to the typed decode.
func missingNested(obj map[string]json.RawMessage, key string, keys ...string) string {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return ""
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(v, &inner); err != nil {
		return ""
	}
	if field := missingField(inner, keys...); field != "" {
		return key + "." + field
	}
	return ""
}

func missingPropertyDetails(obj map[string]json.RawMessage) string {
	return missingNested(obj, "property_details", addressFields...)
}

func missingPropertyValue(obj map[string]json.RawMessage) string {
	return missingNested(obj, "property_value", "value", "value_high", "value_low")
}

func missingRentEstimate(obj map[string]json.RawMessage) string {
	return missingNested(obj, "rent_estimate", "estimated_rent", "estimated_rent_high", "estimated_rent_low")
}

func missingRentalComps(obj map[string]json.RawMessage) string {
	if field := missingField(obj, "rental_comps"); field != "" {
		return field
	}
	if field := missingNested(obj, "subject_property_details", addressFields...); field != "" {
		return field
	}
	var comps []map[string]json.RawMessage
	if err := json.Unmarshal(obj["rental_comps"], &comps); err != nil {
		return ""
	}
	for i, comp := range comps {
		if field := missingNested(comp, "property_details", addressFields...); field != "" {
			return fmt.Sprintf("rental_comps[%d].%s", i, field)
		}
	}
	return ""
}
