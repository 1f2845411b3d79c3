package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestWindowState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *WindowState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &WindowState{LastUpdate: time.Now()},
			maxAge:   time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &WindowState{LastUpdate: time.Now().Add(-2 * time.Minute)},
			maxAge:   time.Minute,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWindowState_Thresholds(t *testing.T) {
	tests := []struct {
		name           string
		count          int64
		limit          int64
		expectBlock    bool
		expectThrottle bool
		expectHealthy  bool
		expectRemain   int64
	}{
		{"empty window", 0, 100, false, false, true, 100},
		{"below warning", 79, 100, false, false, true, 21},
		{"at warning", 80, 100, false, true, false, 20},
		{"last admitted request", 100, 100, false, true, false, 0},
		{"over budget", 101, 100, true, false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &WindowState{Count: tt.count, Limit: tt.limit}
			s.UpdateHealth()

			if got := s.NeedsCriticalBlock(); got != tt.expectBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.expectBlock)
			}
			if got := s.NeedsThrottling(); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expectThrottle)
			}
			if s.IsHealthy != tt.expectHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.expectHealthy)
			}
			if got := s.Remaining(); got != tt.expectRemain {
				t.Errorf("Remaining() = %d, want %d", got, tt.expectRemain)
			}
		})
	}
}

func TestWindowState_TimeUntilReset(t *testing.T) {
	past := &WindowState{ResetAt: time.Now().Add(-time.Second)}
	if past.TimeUntilReset() != 0 {
		t.Errorf("TimeUntilReset() for past window = %v, want 0", past.TimeUntilReset())
	}

	future := &WindowState{ResetAt: time.Now().Add(30 * time.Second)}
	if d := future.TimeUntilReset(); d <= 29*time.Second || d > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want ~30s", d)
	}
}

func TestWindowKey(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)

	key, resetAt := windowKey("abc", time.Minute, now)

	if !strings.HasPrefix(key, RedisKeyPrefix+":abc:") {
		t.Errorf("key = %q, want prefix %q", key, RedisKeyPrefix+":abc:")
	}
	wantReset := time.Date(2024, 5, 1, 12, 31, 0, 0, time.UTC)
	if !resetAt.Equal(wantReset) {
		t.Errorf("resetAt = %v, want %v", resetAt, wantReset)
	}

	same, _ := windowKey("abc", time.Minute, now.Add(10*time.Second))
	if same != key {
		t.Errorf("keys within one window differ: %q vs %q", key, same)
	}
	next, _ := windowKey("abc", time.Minute, now.Add(20*time.Second))
	if next == key {
		t.Error("keys in consecutive windows must differ")
	}
}
