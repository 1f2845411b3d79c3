//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/Sternrassler/open-exchange-client/internal/testutil"
	"github.com/Sternrassler/open-exchange-client/pkg/client"
	"github.com/Sternrassler/open-exchange-client/pkg/data"
	"github.com/Sternrassler/open-exchange-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func init() {
	logging.Setup(logging.Config{Level: logging.LevelDisabled})
}

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, mock *testutil.MockAPI, redisClient *redis.Client) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig("integration-key")
	cfg.BaseURL = mock.URL()
	cfg.BackoffFactor = 10 * time.Millisecond
	cfg.Redis = redisClient
	cfg.WindowLimit = 1000
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func addresses(n int) []data.Address {
	out := make([]data.Address, n)
	for i := range out {
		out[i] = data.Address{
			Street:     fmt.Sprintf("%d Main St", i+1),
			City:       "Austin",
			State:      "TX",
			PostalCode: "78701",
			Token:      fmt.Sprintf("tok-%d", i),
		}
	}
	return out
}

// TestFullFetchFlow tests the complete flow: shared quota → chunked requests → parsed results in input order.
func TestFullFetchFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newClient(t, mock, redisClient)
	d := data.New(c, data.Config{Workers: 3})
	defer d.Close()

	ctx := context.Background()
	var tokens []string
	for result, err := range d.PropertyDetails.Fetch(ctx, slices.Values(addresses(25)), data.FetchOptions{MaxAddressesPerRequest: 10}) {
		if err != nil {
			t.Fatalf("Unexpected chunk error: %v", err)
		}
		tokens = append(tokens, result.Token)
	}

	if len(tokens) != 25 {
		t.Fatalf("Results = %d, want 25", len(tokens))
	}
	for i, tok := range tokens {
		if want := fmt.Sprintf("tok-%d", i); tok != want {
			t.Errorf("Result %d token = %s, want %s", i, tok, want)
		}
	}

	if sizes := mock.RequestSizes(testutil.PathPropertyDetails); len(sizes) != 3 {
		t.Errorf("Requests = %v, want 3 chunks", sizes)
	}

	state, err := c.RateLimiter().GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Count != 3 {
		t.Errorf("Window count = %d, want 3", state.Count)
	}
}

// TestSharedQuotaAcrossClients tests that clients with the same API key count against one window.
func TestSharedQuotaAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()

	c1 := newClient(t, mock, redisClient)
	c2 := newClient(t, mock, redisClient)

	ctx := context.Background()
	for i, c := range []*client.Client{c1, c2, c1, c2, c2} {
		body := map[string]any{"addresses": addresses(1)}
		if _, err := c.Post(ctx, data.PathRentEstimates, body); err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}

	state, err := c1.RateLimiter().GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Count != 5 {
		t.Errorf("Shared window count = %d, want 5", state.Count)
	}
}

// TestBoundedConcurrency tests that no more than Workers requests of one fetch are in flight at once.
func TestBoundedConcurrency(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetDelay(30 * time.Millisecond)

	const workers = 3
	c := newClient(t, mock, redisClient)
	d := data.New(c, data.Config{Workers: workers})
	defer d.Close()

	count := 0
	for _, err := range d.RentEstimates.Fetch(context.Background(), slices.Values(addresses(40)), data.FetchOptions{MaxAddressesPerRequest: 2}) {
		if err != nil {
			t.Fatalf("Unexpected chunk error: %v", err)
		}
		count++
	}

	if count != 40 {
		t.Errorf("Results = %d, want 40", count)
	}
	if got := mock.RequestCount(); got != 20 {
		t.Errorf("Requests = %d, want 20", got)
	}
	if hw := mock.HighWater(); hw > workers {
		t.Errorf("In-flight high-water mark = %d, want at most %d", hw, workers)
	} else if hw < 2 {
		t.Errorf("In-flight high-water mark = %d, requests never overlapped", hw)
	}
}

// TestRetry5xxErrors tests that 503 responses are retried and the chunk succeeds.
func TestRetry5xxErrors(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.FailNext(testutil.PathPropertyValues, http.StatusServiceUnavailable, http.StatusServiceUnavailable)

	c := newClient(t, mock, redisClient)
	d := data.New(c, data.Config{Workers: 1})
	defer d.Close()

	count := 0
	for _, err := range d.PropertyValues.Fetch(context.Background(), slices.Values(addresses(4)), data.FetchOptions{}) {
		if err != nil {
			t.Fatalf("Request failed after retries: %v", err)
		}
		count++
	}

	if count != 4 {
		t.Errorf("Results = %d, want 4", count)
	}
	if got := mock.RequestCount(); got != 3 {
		t.Errorf("Request attempts = %d, want 3 (2 retries + 1 success)", got)
	}
}

// TestRentalCompsSelectiveRetry tests that dependency-unavailable addresses are sent once more per chunk.
func TestRentalCompsSelectiveRetry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetMessages("tok-1", data.MessageDependencyUnavailable)
	mock.SetMessages("tok-3", data.MessageDependencyUnavailable, data.MessageDependencyUnavailable)
	mock.SetMessages("tok-4", data.MessageNoCompsFound)

	c := newClient(t, mock, redisClient)
	d := data.New(c, data.Config{Workers: 1})
	defer d.Close()

	opts := data.RentalCompsOptions{MaxAddressesPerRequest: 3, NumComps: 2}
	var outcomes []data.Outcome
	for result, err := range d.RentalComps.Fetch(context.Background(), slices.Values(addresses(6)), opts) {
		if err != nil {
			t.Fatalf("Unexpected chunk error: %v", err)
		}
		outcomes = append(outcomes, result.Outcome())
	}

	want := []data.Outcome{
		data.OutcomeSuccess,
		data.OutcomeSuccess,
		data.OutcomeSuccess,
		data.OutcomeDependencyUnavailable,
		data.OutcomeNoCompsFound,
		data.OutcomeSuccess,
	}
	if !slices.Equal(outcomes, want) {
		t.Errorf("Outcomes = %v, want %v", outcomes, want)
	}

	sizes := mock.RequestSizes(testutil.PathRentalComps)
	if !slices.Equal(sizes, []int{3, 1, 3, 1}) {
		t.Errorf("Request sizes = %v, want [3 1 3 1]", sizes)
	}
}

// TestRedisUnavailable tests that requests still go through when the quota store is down.
func TestRedisUnavailable(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer redisClient.Close()

	c := newClient(t, mock, redisClient)

	if _, err := c.Post(context.Background(), data.PathPropertyValues, map[string]any{"addresses": addresses(1)}); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Requests = %d, want 1", mock.RequestCount())
	}
}
