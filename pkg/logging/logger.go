// Package logging configures structured zerolog output for the Open Exchange client.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs chunk dispatch, per-result classification and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs fetch summaries and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, rate limit waits and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed chunks only.
	LevelError LogLevel = "error"

	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
)

// Component names used with NewLogger.
const (
	ComponentClient    = "ox-client"
	ComponentBatch     = "batch"
	ComponentData      = "data"
	ComponentRateLimit = "ratelimit"
	ComponentCLI       = "ox-fetch"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a user supplied level string (config file, flag) to a LogLevel.
// Unknown values map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "disabled", "off", "none":
		return LevelDisabled
	default:
		return LevelInfo
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	switch ParseLevel(string(level)) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a child of the global logger tagged with the component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug:
//   - chunk submitted / completed (chunk, chunk_size, endpoint)
//   - rental comps outcome per address (token, outcome)
//   - pool slot waits
//
// Info:
//   - fetch started / finished (endpoint, chunks, addresses, duration)
//   - HTTP call succeeded after retry
//
// Warn:
//   - HTTP retry scheduled (status, attempt, backoff)
//   - selective retry issued for dependency-unavailable addresses (retry_count)
//   - rate limit waits
//
// Error:
//   - chunk failed after transport retries were exhausted
//   - response failed schema validation
//
// Context Fields:
//   - endpoint: API path (e.g. /data/rental-comps)
//   - method, status, attempt, backoff
//   - chunk, chunk_size: zero-based chunk index and its address count
//   - request_id: X-Request-ID sent with the call
//   - outcome, token, retry_count
//
// The API key is never logged.
