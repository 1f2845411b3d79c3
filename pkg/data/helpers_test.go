package data

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"
)

// recordedCall is one request seen by fakeTransport.
type recordedCall struct {
	Path string
	Req  rentalCompsRequest
	Raw  map[string]json.RawMessage
}

// fakeTransport is an instrumented Transport double. It records every call
// and the highest number of concurrent calls.
type fakeTransport struct {
	respond func(ctx context.Context, n int, path string, req rentalCompsRequest) ([]byte, error)

	mu    sync.Mutex
	calls []recordedCall

	inFlight  atomic.Int32
	highWater atomic.Int32
}

func (f *fakeTransport) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		hw := f.highWater.Load()
		if cur <= hw || f.highWater.CompareAndSwap(hw, cur) {
			break
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var req rentalCompsRequest
	var fields map[string]json.RawMessage
	json.Unmarshal(raw, &req)
	json.Unmarshal(raw, &fields)

	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, recordedCall{Path: path, Req: req, Raw: fields})
	f.mu.Unlock()

	return f.respond(ctx, n, path, req)
}

func (f *fakeTransport) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

// results encodes {"results": items}.
func results(items ...any) []byte {
	b, _ := json.Marshal(map[string]any{"results": items})
	return b
}

func addresses(n int) []Address {
	out := make([]Address, n)
	for i := range out {
		out[i] = Address{
			Street:     fmt.Sprintf("%d Main St", i+1),
			City:       "Phoenix",
			State:      "AZ",
			PostalCode: "85004",
			Token:      fmt.Sprintf("tok-%d", i),
		}
	}
	return out
}

// valuesFor answers a property values call with value = 1000 * address number.
func valuesFor(req rentalCompsRequest) []byte {
	items := make([]any, len(req.Addresses))
	for i, a := range req.Addresses {
		var n int
		fmt.Sscanf(a.Street, "%d", &n)
		items[i] = map[string]any{
			"token":          a.Token,
			"property_value": map[string]int{"value": n * 1000, "value_high": n*1000 + 50, "value_low": n*1000 - 50},
		}
	}
	return results(items...)
}

// compScript answers rental comps calls. messages[token] lists the error
// message returned on the first, second, ... request for that token; missing
// entries mean success.
type compScript struct {
	mu       sync.Mutex
	messages map[string][]string
	seen     map[string]int
}

func newCompScript(messages map[string][]string) *compScript {
	return &compScript{messages: messages, seen: map[string]int{}}
}

func (s *compScript) respond(_ context.Context, _ int, _ string, req rentalCompsRequest) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]any, len(req.Addresses))
	for i, a := range req.Addresses {
		attempt := s.seen[a.Token]
		s.seen[a.Token]++

		msg := ""
		if script := s.messages[a.Token]; attempt < len(script) {
			msg = script[attempt]
		}
		item := map[string]any{"token": a.Token, "rental_comps": []any{}}
		if msg == "" {
			item["rental_comps"] = []any{map[string]any{
				"close_price":      2100,
				"close_price_date": "2024-03-01",
				"similarity_score": 0.9,
				"listing_status":   "closed",
				"property_details": map[string]any{"street": "9 Oak Ave", "city": "Phoenix", "state": "AZ", "postal_code": "85004"},
			}}
			item["subject_property_details"] = map[string]any{"street": a.Street, "city": a.City, "state": a.State, "postal_code": a.PostalCode}
		} else {
			item["error_message"] = msg
		}
		items[i] = item
	}
	return results(items...), nil
}

// collect drains seq into results and errors in yield order.
func collect[R any](seq iter.Seq2[R, error]) ([]R, []error) {
	var out []R
	var errs []error
	for r, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errs
}

// callDelay keeps a call in flight long enough to overlap with others.
const callDelay = 20 * time.Millisecond
