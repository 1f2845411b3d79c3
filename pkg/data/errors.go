package data

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidOptions is returned through the result stream when fetch options are invalid.
	ErrInvalidOptions = errors.New("invalid fetch options")

	// ErrInvalidAddress is returned when an address misses a required field.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrMissingField is wrapped by ParseError when a required response field is absent or null.
	ErrMissingField = errors.New("missing required field")

	// ErrResultCount is wrapped by ParseError when a response does not hold one result per address.
	ErrResultCount = errors.New("result count mismatch")

	// ErrTokenMismatch is wrapped by ParseError when a result echoes a different token than was sent.
	ErrTokenMismatch = errors.New("token mismatch")
)

// ParseError reports a response that does not match the endpoint schema.
// The whole chunk is failed; no partial results are returned.
type ParseError struct {
	Endpoint string

	// Index is the position of the offending result in the response, or -1
	// when the envelope itself is invalid.
	Index int

	// Field is the JSON path of the offending field, if known.
	Field string

	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := "parse " + e.Endpoint + " response"
	if e.Index >= 0 {
		msg += fmt.Sprintf(": result %d", e.Index)
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// AddressError reports an address rejected before any request was sent.
type AddressError struct {
	Token string
	Field string
}

// Error implements the error interface.
func (e *AddressError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("address %q: %s is required", e.Token, e.Field)
	}
	return fmt.Sprintf("address: %s is required", e.Field)
}

// Unwrap returns ErrInvalidAddress.
func (e *AddressError) Unwrap() error {
	return ErrInvalidAddress
}

// ChunkError reports a chunk of addresses that produced no results. Err is
// the *batch.ChunkError of the failed request, which wraps the cause.
type ChunkError struct {
	Endpoint string

	// Addresses are the addresses of the chunk, in request order.
	Addresses []Address

	// Tokens are the tokens of Addresses, for correlation with the input.
	Tokens []string

	Err error
}

func newChunkError(endpoint string, chunk []Address, err error) *ChunkError {
	tokens := make([]string, len(chunk))
	for i, a := range chunk {
		tokens[i] = a.Token
	}
	return &ChunkError{Endpoint: endpoint, Addresses: chunk, Tokens: tokens, Err: err}
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	msg := e.Endpoint + ": " + e.Err.Error()
	if slices.ContainsFunc(e.Tokens, func(t string) bool { return t != "" }) {
		msg += " (tokens " + strings.Join(e.Tokens, ", ") + ")"
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ChunkError) Unwrap() error {
	return e.Err
}
