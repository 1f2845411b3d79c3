package client

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrMissingAPIKey is returned by New when no API key is configured or set in the environment.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus maps an HTTP status code to an ErrorClass.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == 429:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// ConfigurationError reports an invalid client configuration.
// It is only returned while constructing a client, never during a fetch.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError describes a request that failed at the HTTP layer:
// a network failure or a non-2xx status after the client's own retries.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	ErrorClass ErrorClass

	// Attempts is the number of HTTP attempts made for the call.
	Attempts int

	// RetryAfter is the server requested delay, when a Retry-After header was sent.
	RetryAfter time.Duration

	// Snippet is a redacted, truncated copy of the response body.
	Snippet string

	Err error

	retryable bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s error", e.Method, e.Path, e.ErrorClass)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, ": body=%s", e.Snippet)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure was eligible for an HTTP retry.
func (e *TransportError) Temporary() bool {
	return e.retryable
}

// maxSnippet bounds the response body kept on a TransportError.
const maxSnippet = 256

// snippet returns a truncated single-line copy of body with secret removed.
func snippet(body []byte, secret string) string {
	s := string(body)
	if secret != "" {
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	truncated := len(s) > maxSnippet
	if truncated {
		s = s[:maxSnippet]
	}
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if truncated {
		return s + "..."
	}
	return s
}

// shouldRetry determines if an error class can be retried at all.
// Whether a given response is retried also depends on its status code and method.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are the caller's fault
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
