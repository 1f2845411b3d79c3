package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_rate_limit_waits_total",
		Help: "Total number of requests delayed by a rate limiter, by layer",
	}, []string{"layer"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ox_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting on a rate limiter, by layer",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
	}, []string{"layer"})

	rateLimitWindowRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ox_rate_limit_window_requests",
		Help: "Requests admitted in the current shared quota window",
	})

	rateLimitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ox_rate_limit_errors_total",
		Help: "Total number of shared quota lookups that failed and were let through",
	})
)

// Layer labels.
const (
	layerLocal  = "local"
	layerShared = "shared"
)

// Config holds the pacing configuration.
type Config struct {
	// RequestsPerSecond bounds the local request rate. <= 0 disables the local limiter.
	RequestsPerSecond float64

	// Burst is the local token bucket size (default: 1).
	Burst int

	// Redis enables the shared quota when non-nil.
	Redis *redis.Client

	// Key identifies the quota owner in Redis. Never pass a raw API key here.
	Key string

	// WindowLimit is the number of requests admitted per Window across all processes.
	WindowLimit int64

	// Window is the length of one quota window (default: 1 minute).
	Window time.Duration
}

// Enabled reports whether any pacing layer is configured.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0 || (c.Redis != nil && c.WindowLimit > 0)
}

// Tracker gates outgoing requests through the configured layers.
type Tracker struct {
	limiter     *rate.Limiter
	redis       *redis.Client
	key         string
	windowLimit int64
	window      time.Duration
	logger      zerolog.Logger
}

// NewTracker creates a tracker. Layers that are not configured are skipped.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	t := &Tracker{logger: logger}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.Redis != nil && cfg.WindowLimit > 0 {
		t.redis = cfg.Redis
		t.windowLimit = cfg.WindowLimit
		t.window = cfg.Window
		if t.window <= 0 {
			t.window = time.Minute
		}
		t.key = cfg.Key
		if t.key == "" {
			t.key = "default"
		}
	}

	return t
}

// Wait blocks until both layers admit one request or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.limiter != nil {
		start := time.Now()
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("local rate limit: %w", err)
		}
		if waited := time.Since(start); waited > time.Millisecond {
			rateLimitWaitsTotal.WithLabelValues(layerLocal).Inc()
			rateLimitWaitSeconds.WithLabelValues(layerLocal).Observe(waited.Seconds())
		}
	}

	if t.redis == nil {
		return nil
	}

	for {
		state, err := t.acquire(ctx)
		if err != nil {
			// Redis trouble must not stop the client: let the request through.
			rateLimitErrorsTotal.Inc()
			t.logger.Warn().Err(err).Msg("Shared quota unavailable, request not gated")
			return nil
		}

		rateLimitWindowRequests.Set(float64(state.Count))

		if !state.NeedsCriticalBlock() {
			if state.NeedsThrottling() {
				t.logger.Warn().
					Int64("window_requests", state.Count).
					Int64("window_limit", state.Limit).
					Msg("Shared quota nearly exhausted")
			}
			return nil
		}

		wait := state.TimeUntilReset()
		t.logger.Warn().
			Int64("window_requests", state.Count).
			Int64("window_limit", state.Limit).
			Dur("wait_duration", wait).
			Msg("Shared quota exhausted, waiting for next window")
		rateLimitWaitsTotal.WithLabelValues(layerShared).Inc()
		rateLimitWaitSeconds.WithLabelValues(layerShared).Observe(wait.Seconds())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("shared rate limit: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// acquire counts one request against the current window.
func (t *Tracker) acquire(ctx context.Context) (*WindowState, error) {
	now := time.Now()
	key, resetAt := windowKey(t.key, t.window, now)

	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, resetAt.Add(time.Second))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("incr window counter: %w", err)
	}

	state := &WindowState{
		Count:      incr.Val(),
		Limit:      t.windowLimit,
		ResetAt:    resetAt,
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, nil
}

// GetState reads the current shared window without counting a request.
// Returns nil, nil when the shared quota is disabled.
func (t *Tracker) GetState(ctx context.Context) (*WindowState, error) {
	if t.redis == nil {
		return nil, nil
	}

	now := time.Now()
	key, resetAt := windowKey(t.key, t.window, now)

	count, err := t.redis.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get window counter: %w", err)
	}

	state := &WindowState{
		Count:      count,
		Limit:      t.windowLimit,
		ResetAt:    resetAt,
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, nil
}
