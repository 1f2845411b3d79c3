// Package ratelimit paces requests to the Open Exchange data API.
//
// Two independent layers are applied before every HTTP attempt:
//   - a local token bucket (golang.org/x/time/rate) bounding requests per second
//     for one client instance
//   - an optional fixed-window quota kept in Redis and shared by every process
//     that uses the same API key
package ratelimit

import (
	"fmt"
	"time"
)

// RedisKeyPrefix prefixes every window counter key.
// Full key format: ox:rate_limit:<key>:<window start unix>
const RedisKeyPrefix = "ox:rate_limit"

// WarningRatio is the share of the window budget after which callers are warned.
const WarningRatio = 0.8

// WindowState is a snapshot of one shared quota window.
type WindowState struct {
	// Count is the number of requests admitted in the current window.
	Count int64 `json:"count"`

	// Limit is the budget of the window.
	Limit int64 `json:"limit"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the snapshot was taken.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true while Count stays under WarningRatio of Limit.
	IsHealthy bool `json:"is_healthy"`
}

// windowKey returns the Redis key for the window containing now.
func windowKey(key string, window time.Duration, now time.Time) (string, time.Time) {
	start := now.Truncate(window)
	return fmt.Sprintf("%s:%s:%d", RedisKeyPrefix, key, start.Unix()), start.Add(window)
}

// Remaining returns how many requests the window still admits (never negative).
func (s *WindowState) Remaining() int64 {
	if s.Count >= s.Limit {
		return 0
	}
	return s.Limit - s.Count
}

// IsStale returns true if the snapshot is older than maxAge.
func (s *WindowState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true once the window budget is spent.
func (s *WindowState) NeedsCriticalBlock() bool {
	return s.Count > s.Limit
}

// NeedsThrottling returns true when the window is close to its budget.
func (s *WindowState) NeedsThrottling() bool {
	return float64(s.Count) >= float64(s.Limit)*WarningRatio && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window ends, or 0 if it already has.
func (s *WindowState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth refreshes IsHealthy from Count and Limit.
func (s *WindowState) UpdateHealth() {
	s.IsHealthy = float64(s.Count) < float64(s.Limit)*WarningRatio
}
