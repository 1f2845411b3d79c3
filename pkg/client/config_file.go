package client

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML representation of the client and logging settings.
//
// Example:
//
//	api_key: ""            # empty: read $OPEN_EXCHANGE_API_KEY
//	base_url: https://directaccess.opendoor.com/api/v2
//	timeout: 30s
//	max_retries: 2
//	max_retry_after: 30s
//	workers: 4
//	rate_limit: 10
//	redis_addr: localhost:6379
//	window_limit: 600
//	window: 1m
//	log_level: info
//	log_pretty: false
type FileConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    *int          `yaml:"max_retries"`
	MaxRetryAfter time.Duration `yaml:"max_retry_after"`
	Workers       int           `yaml:"workers"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
	RedisAddr     string        `yaml:"redis_addr"`
	WindowLimit   int64         `yaml:"window_limit"`
	Window        time.Duration `yaml:"window"`
	LogLevel      string        `yaml:"log_level"`
	LogPretty     bool          `yaml:"log_pretty"`
}

// LoadConfigFile reads and decodes a YAML config file. Unknown keys are rejected.
func LoadConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return &fc, nil
}

// ClientConfig merges the file settings over DefaultConfig.
// A Redis client is created when redis_addr is set; the caller must close it.
func (fc *FileConfig) ClientConfig() Config {
	cfg := DefaultConfig(fc.APIKey)
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.Timeout > 0 {
		cfg.Timeout = fc.Timeout
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = Retries(*fc.MaxRetries)
	}
	if fc.MaxRetryAfter > 0 {
		cfg.MaxRetryAfter = fc.MaxRetryAfter
	}
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	cfg.RateLimit = fc.RateLimit
	cfg.RateBurst = fc.RateBurst
	if fc.RedisAddr != "" {
		cfg.Redis = redis.NewClient(&redis.Options{Addr: fc.RedisAddr})
		cfg.WindowLimit = fc.WindowLimit
	}
	if fc.Window > 0 {
		cfg.Window = fc.Window
	}
	return cfg
}

// LoggingConfig returns the logging settings of the file.
func (fc *FileConfig) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if fc.LogLevel != "" {
		cfg.Level = logging.ParseLevel(fc.LogLevel)
	}
	cfg.Pretty = fc.LogPretty
	return cfg
}
