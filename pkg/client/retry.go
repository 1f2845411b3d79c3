package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	httpRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_http_retries_total",
		Help: "Total number of HTTP retry attempts by error class",
	}, []string{"error_class"})

	httpRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ox_http_retry_backoff_seconds",
		Help:    "Backoff duration for HTTP retries by error class",
		Buckets: []float64{0, 0.1, 0.2, 0.5, 1, 2, 5, 30},
	}, []string{"error_class"})

	httpRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_http_retry_exhausted_total",
		Help: "Total number of times HTTP retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// retryAfterStatusCodes are retried when the server sends a Retry-After header,
// even if they are not in the configured retryable set.
var retryAfterStatusCodes = []int{
	http.StatusRequestEntityTooLarge,
	http.StatusTooManyRequests,
	http.StatusServiceUnavailable,
}

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BackoffFactor scales the exponential backoff: factor * 2^(n-1) after
	// the n-th consecutive failure. The first retry is immediate.
	BackoffFactor time.Duration

	// MaxBackoff caps a single backoff.
	MaxBackoff time.Duration

	// Jitter adds up to this fraction of random delay to each backoff (0 disables).
	Jitter float64

	// RetryableStatusCodes are the HTTP statuses that are retried.
	RetryableStatusCodes []int

	// AllowedMethods are the HTTP methods that may be retried.
	AllowedMethods []string

	// RespectRetryAfter honors the Retry-After header on 413, 429 and 503.
	RespectRetryAfter bool

	// MaxRetryAfter is the longest Retry-After that is waited for. A longer
	// one ends the retries with the response error (0 disables the limit).
	MaxRetryAfter time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
// POST is retried: every data endpoint is a read expressed as POST.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:           2,
		BackoffFactor:        100 * time.Millisecond,
		MaxBackoff:           2 * time.Second,
		RetryableStatusCodes: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete,
			http.MethodOptions, http.MethodTrace, http.MethodPost,
		},
		RespectRetryAfter: true,
		MaxRetryAfter:     30 * time.Second,
	}
}

// Backoff returns the delay before the next attempt after failures consecutive failures.
func (c RetryConfig) Backoff(failures int) time.Duration {
	if failures <= 1 || c.BackoffFactor <= 0 {
		return 0
	}
	d := c.BackoffFactor
	for i := 1; i < failures; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

func (c RetryConfig) methodAllowed(method string) bool {
	return slices.ContainsFunc(c.AllowedMethods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// statusRetryable reports whether a response with code should be retried.
func (c RetryConfig) statusRetryable(code int, hasRetryAfter bool) bool {
	if slices.Contains(c.RetryableStatusCodes, code) {
		return true
	}
	return c.RespectRetryAfter && hasRetryAfter && slices.Contains(retryAfterStatusCodes, code)
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// retryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// asks for a Retry-After above MaxRetryAfter, or MaxRetries retries have been
// made. A failure is retried when it is a *TransportError whose Temporary()
// is true. It returns the number of attempts.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func(attempt int) error) (int, error) {
	maxAttempts := config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var errorClass ErrorClass

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err

		var te *TransportError
		if !errors.As(err, &te) || !te.Temporary() {
			return attempt, lastErr
		}
		errorClass = te.ErrorClass

		if config.MaxRetryAfter > 0 && te.RetryAfter > config.MaxRetryAfter {
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("status", te.StatusCode).
				Dur("retry_after", te.RetryAfter).
				Dur("max_retry_after", config.MaxRetryAfter).
				Msg("Retry-After exceeds limit, not retrying")
			return attempt, lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		httpRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		backoff := config.Backoff(attempt)
		if config.Jitter > 0 && backoff > 0 {
			backoff += time.Duration(float64(backoff) * config.Jitter * rand.Float64())
		}
		if te.RetryAfter > backoff {
			backoff = te.RetryAfter
		}
		httpRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(backoff.Seconds())

		logger.Warn().
			Str("error_class", string(errorClass)).
			Int("status", te.StatusCode).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Warn().
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Context cancelled during retry backoff")
				return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}

	httpRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Warn().
		Str("error_class", string(errorClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}
