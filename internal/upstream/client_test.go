package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/quantfold/marketcurator/internal/metrics"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, "test-key",
		WithRetries(2, time.Millisecond),
		WithRateLimit(1000, 1000),
	)
}

func TestGetMarketsBuildsQuery(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"markets":[{"ticker":"MKT-A"}],"cursor":"next"}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).GetMarkets(context.Background(), GetMarketsOptions{
		Limit:             100,
		Status:            "open",
		MinCreatedTs:      1700000000,
		WithNestedMarkets: true,
	})
	if err != nil {
		t.Fatalf("get markets failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
	want := "limit=100&min_created_ts=1700000000&status=open&with_nested_markets=true"
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
	if len(resp.Markets) != 1 || resp.Markets[0].Ticker != "MKT-A" {
		t.Errorf("markets = %+v, want single MKT-A", resp.Markets)
	}
	if resp.Cursor != "next" {
		t.Errorf("cursor = %q, want next", resp.Cursor)
	}
}

func TestGetMarketsRecoversRawCursor(t *testing.T) {
	// Cursor present in the body but outside the typed schema position.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets":[],"pagination":{},"cursor":"deep"}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).GetMarkets(context.Background(), GetMarketsOptions{})
	if err != nil {
		t.Fatalf("get markets failed: %v", err)
	}
	if resp.Cursor != "deep" {
		t.Errorf("cursor = %q, want recovered from raw body", resp.Cursor)
	}
}

func TestRateLimitSurfacesImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetMarkets(context.Background(), GetMarketsOptions{})
	if !IsRateLimited(err) {
		t.Fatalf("got %v, want rate-limited error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (429 is never retried)", calls.Load())
	}
}

func TestTransientErrorRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"markets":[{"ticker":"MKT-A"}]}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).GetMarkets(context.Background(), GetMarketsOptions{})
	if err != nil {
		t.Fatalf("get markets failed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
	if len(resp.Markets) != 1 {
		t.Errorf("markets = %+v, want recovered page", resp.Markets)
	}
}

func TestNotFoundDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetEvent(context.Background(), "EVT-GONE")
	if !IsNotFound(err) {
		t.Fatalf("got %v, want not-found error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad cursor"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetMarkets(context.Background(), GetMarketsOptions{})
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("got %v, want *Error", err)
	}
	if ue.StatusCode != 400 {
		t.Errorf("status = %d, want 400", ue.StatusCode)
	}
	if string(ue.Body) != `{"error":"bad cursor"}` {
		t.Errorf("body = %q, want preserved", ue.Body)
	}
}

func TestGetOrderbookPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"orderbook":{"yes":[[45,30]],"no":[[53,10]]}}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).GetOrderbook(context.Background(), "MKT-A", 0)
	if err != nil {
		t.Fatalf("get orderbook failed: %v", err)
	}
	if gotPath != "/markets/MKT-A/orderbook" {
		t.Errorf("path = %q", gotPath)
	}
	if len(resp.Orderbook.Yes) != 1 || resp.Orderbook.Yes[0][0] != 45 {
		t.Errorf("orderbook = %+v", resp.Orderbook)
	}
}

func TestCallOutcomesCounted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.Write([]byte(`{"markets":[]}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(srv.URL, "test-key",
		WithRetries(2, time.Millisecond),
		WithRateLimit(1000, 1000),
		WithMetrics(m),
	)

	if _, err := c.GetMarkets(context.Background(), GetMarketsOptions{}); err != nil {
		t.Fatalf("get markets failed after retry: %v", err)
	}
	if _, err := c.GetMarkets(context.Background(), GetMarketsOptions{}); !IsRateLimited(err) {
		t.Fatalf("got %v, want rate-limited error", err)
	}

	counts := map[string]float64{"transient": 1, "ok": 1, "rate_limited": 1}
	for outcome, want := range counts {
		if got := testutil.ToFloat64(m.UpstreamCalls.WithLabelValues(outcome)); got != want {
			t.Errorf("calls counted for %s = %v, want %v", outcome, got, want)
		}
	}
}

func TestContextCancelStopsRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testClient(srv.URL).GetMarkets(ctx, GetMarketsOptions{}); err == nil {
		t.Error("cancelled context should fail the request")
	}
}
