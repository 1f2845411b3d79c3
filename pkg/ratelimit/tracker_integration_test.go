//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_GetState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(Config{Redis: redisClient, WindowLimit: 10, Window: time.Minute, Key: "state"}, quietLogger())
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Count != 0 || !state.IsHealthy {
		t.Errorf("empty window state = %+v, want zero count and healthy", state)
	}

	for i := 0; i < 8; i++ {
		if err := tracker.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() after requests error = %v", err)
	}
	if state.Count != 8 {
		t.Errorf("Count = %d, want 8", state.Count)
	}
	if state.IsHealthy {
		t.Error("8 of 10 requests should leave the window unhealthy")
	}
	if ttl := redisClient.TTL(ctx, mustKey(tracker)).Val(); ttl <= 0 || ttl > time.Minute+time.Second {
		t.Errorf("window key TTL = %v, want within one window", ttl)
	}
}

func mustKey(t *Tracker) string {
	key, _ := windowKey(t.key, t.window, time.Now())
	return key
}

func TestTracker_Integration_SharedAcrossTrackers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	const limit = 20
	trackers := []*Tracker{
		NewTracker(Config{Redis: redisClient, WindowLimit: limit, Window: time.Minute, Key: "shared"}, quietLogger()),
		NewTracker(Config{Redis: redisClient, WindowLimit: limit, Window: time.Minute, Key: "shared"}, quietLogger()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(tr *Tracker) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := tr.Wait(ctx); err != nil {
					return
				}
				admitted.Add(1)
			}
		}(trackers[i%2])
	}
	wg.Wait()

	if got := admitted.Load(); got != limit {
		t.Errorf("admitted %d requests across trackers, want exactly %d in one window", got, limit)
	}
}

func TestTracker_Integration_DifferentKeysIndependent(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	a := NewTracker(Config{Redis: redisClient, WindowLimit: 1, Window: time.Minute, Key: "a"}, quietLogger())
	b := NewTracker(Config{Redis: redisClient, WindowLimit: 1, Window: time.Minute, Key: "b"}, quietLogger())
	ctx := context.Background()

	if err := a.Wait(ctx); err != nil {
		t.Fatalf("a.Wait: %v", err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("b.Wait: %v", err)
	}
}
