// Package client provides the HTTP transport for the Open Exchange data API
// with authentication, retries, rate limiting and error handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/Sternrassler/open-exchange-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for HTTP operations.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_http_requests_total",
		Help: "Total HTTP attempts by endpoint and status",
	}, []string{"endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ox_http_request_duration_seconds",
		Help:    "Duration of logical API calls including retries, by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_http_errors_total",
		Help: "Total failed HTTP attempts by error class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://directaccess.opendoor.com/api/v2"

	// APIKeyEnv is read when Config.APIKey is empty.
	APIKeyEnv = "OPEN_EXCHANGE_API_KEY"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates every request. Falls back to $OPEN_EXCHANGE_API_KEY.
	APIKey string

	// BaseURL is the API root (default: DefaultBaseURL).
	BaseURL string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Nil means
	// the default of 2; Retries(0) disables retries.
	MaxRetries *int

	// Retry
	BackoffFactor        time.Duration
	MaxBackoff           time.Duration
	MaxRetryAfter        time.Duration // Longer Retry-After waits fail the request instead
	RetryableStatusCodes []int

	// Workers is the worker pool size of each endpoint resource (default: 4).
	Workers int

	// Rate Limiting
	RateLimit float64 // Requests per second, 0 disables
	RateBurst int

	// Redis enables a request quota shared by every process using the same API key.
	Redis       *redis.Client
	WindowLimit int64
	Window      time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	retry := DefaultRetryConfig()
	return Config{
		APIKey:               apiKey,
		BaseURL:              DefaultBaseURL,
		Timeout:              DefaultTimeout,
		MaxRetries:           Retries(retry.MaxRetries),
		BackoffFactor:        retry.BackoffFactor,
		MaxBackoff:           retry.MaxBackoff,
		MaxRetryAfter:        retry.MaxRetryAfter,
		RetryableStatusCodes: retry.RetryableStatusCodes,
		Workers:              4,
		Window:               time.Minute,
	}
}

// Retries returns n as a Config.MaxRetries setting.
func Retries(n int) *int {
	return &n
}

// Client is the Open Exchange HTTP client. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	retry       RetryConfig
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// New validates cfg and creates a client.
// All configuration problems are reported here as *ConfigurationError.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv)
	}
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{
			Field:  "api_key",
			Reason: "not set and $" + APIKeyEnv + " is empty",
			Err:    ErrMissingAPIKey,
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ConfigurationError{Field: "base_url", Reason: "unparsable", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("must be an absolute http(s) URL (got %q)", cfg.BaseURL)}
	}

	if cfg.Timeout < 0 {
		return nil, &ConfigurationError{Field: "timeout", Reason: fmt.Sprintf("must be >= 0 (got %s)", cfg.Timeout)}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return nil, &ConfigurationError{Field: "max_retries", Reason: fmt.Sprintf("must be >= 0 (got %d)", *cfg.MaxRetries)}
	}
	if cfg.MaxRetryAfter < 0 {
		return nil, &ConfigurationError{Field: "max_retry_after", Reason: fmt.Sprintf("must be >= 0 (got %s)", cfg.MaxRetryAfter)}
	}
	if cfg.Workers < 0 {
		return nil, &ConfigurationError{Field: "workers", Reason: fmt.Sprintf("must be >= 0 (got %d)", cfg.Workers)}
	}
	if cfg.RateLimit < 0 {
		return nil, &ConfigurationError{Field: "rate_limit", Reason: fmt.Sprintf("must be >= 0 (got %g)", cfg.RateLimit)}
	}
	if cfg.WindowLimit < 0 {
		return nil, &ConfigurationError{Field: "window_limit", Reason: fmt.Sprintf("must be >= 0 (got %d)", cfg.WindowLimit)}
	}
	if cfg.WindowLimit > 0 && cfg.Redis == nil {
		return nil, &ConfigurationError{Field: "window_limit", Reason: "requires a redis client"}
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries != nil {
		retry.MaxRetries = *cfg.MaxRetries
	}
	cfg.MaxRetries = Retries(retry.MaxRetries)
	if cfg.BackoffFactor > 0 {
		retry.BackoffFactor = cfg.BackoffFactor
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}
	if cfg.MaxRetryAfter > 0 {
		retry.MaxRetryAfter = cfg.MaxRetryAfter
	}
	if len(cfg.RetryableStatusCodes) > 0 {
		retry.RetryableStatusCodes = cfg.RetryableStatusCodes
	}

	logger := logging.NewLogger(logging.ComponentClient)

	// Redis keys are derived from the API key; the key itself never leaves the process.
	quotaKey := uuid.NewSHA1(uuid.NameSpaceURL, []byte(cfg.APIKey)).String()
	rateLimiter := ratelimit.NewTracker(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateBurst,
		Redis:             cfg.Redis,
		Key:               quotaKey,
		WindowLimit:       cfg.WindowLimit,
		Window:            cfg.Window,
	}, logging.NewLogger(logging.ComponentRateLimit))

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = max(cfg.Workers, 4) * 2

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		retry:       retry,
		rateLimiter: rateLimiter,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do sends body as JSON to path and returns the raw response body of the
// first 2xx response. Retryable failures are retried per RetryConfig; the
// final failure is returned as a *TransportError (wrapped in
// ErrRetryExhausted when retries ran out).
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	requestID := uuid.New().String()
	logger := c.logger.With().
		Str("endpoint", path).
		Str("method", method).
		Str("request_id", requestID).
		Logger()

	startTime := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	logger.Debug().Int("body_bytes", len(payload)).Msg("Executing API request")

	var respBody []byte
	attempts, err := retryWithBackoff(ctx, c.retry, logger, func(attempt int) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req, requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			httpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			httpRequestsTotal.WithLabelValues(path, "network_error").Inc()
			return &TransportError{
				Method:     method,
				Path:       path,
				ErrorClass: ErrorClassNetwork,
				Attempts:   attempt,
				Err:        err,
				retryable:  c.retry.methodAllowed(method),
			}
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		httpRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 300 {
			errClass := classifyStatus(resp.StatusCode)
			if errClass == "" {
				errClass = ErrorClassClient
			}
			httpErrorsTotal.WithLabelValues(string(errClass)).Inc()

			retryAfter, hasRetryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			if !c.retry.RespectRetryAfter {
				retryAfter = 0
			}
			return &TransportError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				ErrorClass: errClass,
				Attempts:   attempt,
				RetryAfter: retryAfter,
				Snippet:    snippet(data, c.apiKey),
				retryable: shouldRetry(errClass) &&
					c.retry.methodAllowed(method) &&
					c.retry.statusRetryable(resp.StatusCode, hasRetryAfter),
			}
		}

		if readErr != nil {
			httpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &TransportError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				ErrorClass: ErrorClassNetwork,
				Attempts:   attempt,
				Err:        fmt.Errorf("read response body: %w", readErr),
				retryable:  c.retry.methodAllowed(method),
			}
		}

		respBody = data
		return nil
	})

	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			te.Attempts = attempts
		}
		logger.Error().
			Err(err).
			Int("attempts", attempts).
			Msg("API request failed")
		return nil, err
	}

	logger.Debug().
		Int("attempts", attempts).
		Int("response_bytes", len(respBody)).
		Dur("duration", time.Since(startTime)).
		Msg("API request completed")

	return respBody, nil
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-SDK-Version", Version)
	req.Header.Set("X-Go-Version", runtime.Version())
	req.Header.Set("X-Request-ID", requestID)
}

// Config returns the validated configuration, with defaults applied.
func (c *Client) Config() Config {
	cfg := c.config
	cfg.MaxRetries = Retries(c.retry.MaxRetries)
	return cfg
}

// RateLimiter returns the request pacing tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// Close releases idle HTTP connections. The Redis client, if any, is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
