package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgefeed/signal-engine/pkg/types"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return New(&Config{Logger: logger, Timeout: 2 * time.Second, BaseDelay: time.Millisecond})
}

func TestGetJSONOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("missing query param, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("x-test-key") != "secret" {
			t.Errorf("missing header")
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := newTestClient(t).GetJSON(context.Background(), srv.URL,
		map[string]string{"limit": "5"},
		map[string]string{"x-test-key": "secret"},
		&out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("value = %d", out.Value)
	}
}

func TestRateLimitedSurfacesImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL, nil, nil)
	if !types.IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("429 must not be retried, got %d calls", n)
	}
}

func TestPermanentNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL, nil, nil)
	if !types.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("4xx must not be retried, got %d calls", n)
	}
}

func TestTransientRetriedUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t).Get(context.Background(), srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestTransientExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL, nil, nil)
	if !types.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != MaxAttempts {
		t.Errorf("calls = %d, want %d", n, MaxAttempts)
	}
}

func TestContextCancelStopsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger, _ := zap.NewDevelopment()
	client := New(&Config{Logger: logger, Timeout: 2 * time.Second, BaseDelay: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Get(ctx, srv.URL, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("backoff ignored context cancellation: %v", elapsed)
	}
}
