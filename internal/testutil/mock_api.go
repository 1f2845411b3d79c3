// Package testutil provides testing utilities for the Open Exchange client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Endpoint paths served by MockAPI, relative to URL().
const (
	PathPropertyDetails = "/data/property-details"
	PathPropertyValues  = "/data/property-values"
	PathRentEstimates   = "/data/rent-estimates"
	PathRentalComps     = "/data/rental-comps"
)

// MockResponse defines a fixed response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// mockAddress is the subset of an address the mock reads.
type mockAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Token      string `json:"token"`
}

type mockRequest struct {
	Addresses []mockAddress `json:"addresses"`
	NumComps  int           `json:"num_comps"`
}

// MockAPI is a configurable mock of the data API.
//
// Without configuration every endpoint answers with a successful result per
// address. Rental comps error messages can be scripted per token, and whole
// requests can be made to fail with a status code.
type MockAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	handlers map[string]http.HandlerFunc
	messages map[string][]string
	seen     map[string]int
	failures map[string][]int
	delay    time.Duration

	// Tracking
	requestCount      int
	inFlight          int
	highWater         int
	requestSizes      map[string][]int
	lastRequestHeader http.Header
}

// NewMockAPI starts a mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:     make(map[string]http.HandlerFunc),
		messages:     make(map[string][]string),
		seen:         make(map[string]int),
		failures:     make(map[string][]int),
		requestSizes: make(map[string][]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the base URL to configure the client with.
func (m *MockAPI) URL() string {
	return m.server.URL + "/api/v2"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears scripts and tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[string]http.HandlerFunc)
	m.messages = make(map[string][]string)
	m.seen = make(map[string]int)
	m.failures = make(map[string][]int)
	m.requestSizes = make(map[string][]int)
	m.delay = 0
	m.requestCount = 0
	m.highWater = 0
	m.lastRequestHeader = nil
}

// SetHandler overrides the handler of a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetMessages scripts the rental comps error message of token: the n-th
// request for token gets messages[n]; later requests succeed. An empty
// message means success.
func (m *MockAPI) SetMessages(token string, messages ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[token] = messages
}

// FailNext makes the next requests to path fail with the given statuses, in order.
func (m *MockAPI) FailNext(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], statuses...)
}

// SetDelay delays every default response.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// HighWater returns the largest number of requests handled at once.
func (m *MockAPI) HighWater() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highWater
}

// RequestSizes returns the address count of every request to path, in arrival order.
func (m *MockAPI) RequestSizes(path string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.requestSizes[path]...)
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v2")

	m.mu.Lock()
	m.requestCount++
	m.inFlight++
	if m.inFlight > m.highWater {
		m.highWater = m.inFlight
	}
	m.lastRequestHeader = r.Header.Clone()
	handler, custom := m.handlers[path]
	var failStatus int
	if queue := m.failures[path]; len(queue) > 0 {
		failStatus = queue[0]
		m.failures[path] = queue[1:]
	}
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "missing api key")
		return
	}
	if custom {
		handler(w, r)
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if failStatus != 0 {
		writeError(w, failStatus, http.StatusText(failStatus))
		return
	}

	var req mockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m.mu.Lock()
	m.requestSizes[path] = append(m.requestSizes[path], len(req.Addresses))
	m.mu.Unlock()

	results := make([]any, len(req.Addresses))
	for i, a := range req.Addresses {
		switch path {
		case PathPropertyDetails:
			results[i] = map[string]any{"token": a.Token, "property_details": details(a)}
		case PathPropertyValues:
			results[i] = map[string]any{"token": a.Token, "property_value": map[string]int{
				"value": 425000, "value_high": 450000, "value_low": 400000,
			}}
		case PathRentEstimates:
			results[i] = map[string]any{"token": a.Token, "rent_estimate": map[string]int{
				"estimated_rent": 2150, "estimated_rent_high": 2300, "estimated_rent_low": 2000,
			}}
		case PathRentalComps:
			results[i] = m.rentalComps(a, req.NumComps)
		default:
			writeError(w, http.StatusNotFound, "unknown endpoint "+path)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

func (m *MockAPI) rentalComps(a mockAddress, numComps int) map[string]any {
	m.mu.Lock()
	attempt := m.seen[a.Token]
	m.seen[a.Token]++
	var msg string
	if script := m.messages[a.Token]; attempt < len(script) {
		msg = script[attempt]
	}
	m.mu.Unlock()

	if msg != "" {
		return map[string]any{"token": a.Token, "error_message": msg, "rental_comps": []any{}}
	}

	if numComps <= 0 {
		numComps = 10
	}
	comps := make([]any, min(numComps, 3))
	for i := range comps {
		comps[i] = map[string]any{
			"close_price":      1900 + 100*i,
			"close_price_date": "2024-05-01",
			"distance_miles":   0.4 * float64(i+1),
			"listing_status":   "closed",
			"similarity_score": 0.95 - 0.05*float64(i),
			"property_details": details(mockAddress{
				Street: fmt.Sprintf("%d Comp Ln", 100+i), City: a.City, State: a.State, PostalCode: a.PostalCode,
			}),
		}
	}
	return map[string]any{
		"token":                    a.Token,
		"rental_comps":             comps,
		"subject_property_details": details(a),
	}
}

func details(a mockAddress) map[string]any {
	return map[string]any{
		"street":         a.Street,
		"city":           a.City,
		"state":          a.State,
		"postal_code":    a.PostalCode,
		"bedrooms_total": 3,
		"bathrooms_full": 2,
		"year_built":     1998,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with Retry-After.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  fmt.Sprint(retryAfter),
			"Content-Type": "application/json",
		},
	}
}
