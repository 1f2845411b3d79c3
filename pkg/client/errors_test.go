package client

import (
	"errors"
	"strings"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.errorClass); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, got, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{200, ""},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.code); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransportError
		expected string
	}{
		{
			name: "status error with snippet",
			err: &TransportError{
				Method:     "POST",
				Path:       "/data/rental-comps",
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Attempts:   3,
				Snippet:    "down",
			},
			expected: "POST /data/rental-comps: server error (status 503) after 3 attempts: body=down",
		},
		{
			name: "network error",
			err: &TransportError{
				Method:     "POST",
				Path:       "/data/property-values",
				ErrorClass: ErrorClassNetwork,
				Attempts:   1,
				Err:        errors.New("connection refused"),
			},
			expected: "POST /data/property-values: network error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &TransportError{ErrorClass: ErrorClassNetwork, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Field: "api_key", Reason: "missing", Err: ErrMissingAPIKey}

	if got := err.Error(); got != "invalid configuration: api_key: missing" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Error("errors.Is should find ErrMissingAPIKey")
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("x", 300)

	tests := []struct {
		name   string
		body   string
		secret string
		want   string
	}{
		{"empty", "", "k", ""},
		{"whitespace", " \n ", "k", ""},
		{"newlines flattened", "a\nb\r\nc", "", "a b  c"},
		{"secret redacted", "key=sekrit!", "sekrit", "key=[REDACTED]!"},
		{"truncated", long, "", strings.Repeat("x", maxSnippet) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snippet([]byte(tt.body), tt.secret); got != tt.want {
				t.Errorf("snippet() = %q, want %q", got, tt.want)
			}
		})
	}
}
