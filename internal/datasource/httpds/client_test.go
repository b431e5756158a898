package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastClient retries quickly so tests do not wait on real backoff.
func fastClient(retries int) *Client {
	return NewClient(Config{
		MaxRetries:     retries,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

// TestNewClient_Defaults verifies that NewClient applies sensible defaults
// and sets TLS behavior when no custom Transport is supplied.
func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})
	if c.httpClient.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, want 30s", c.httpClient.Timeout)
	}
	if c.maxRetries != 0 || c.initialBackoff != 200*time.Millisecond || c.maxBackoff != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.httpClient.Transport)
	}
	if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify=true when configured")
	}
}

// TestGet_RetryOn5xxThenSuccess verifies that transient 5xx responses are
// retried until a success arrives, and that configured headers are sent.
func TestGet_RetryOn5xxThenSuccess(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("missing header, got %q", r.Header.Get("X-Token"))
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Headers:        http.Header{"X-Token": []string{"abc"}},
	})
	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestGet_StopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := fastClient(2).Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3 (1 initial + 2 retries)", got)
	}
}

func TestGet_NonRetryableStatusReturned(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := fastClient(3).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("status = %d after %d hits", resp.StatusCode, hits)
	}
}

func TestGet_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := fastClient(0).Get(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		initial time.Duration
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{"first_attempt", 100 * time.Millisecond, 0, time.Second, 100 * time.Millisecond},
		{"doubles", 100 * time.Millisecond, 2, time.Second, 400 * time.Millisecond},
		{"clamped", 100 * time.Millisecond, 5, time.Second, time.Second},
		{"initial_above_max", 2 * time.Second, 0, time.Second, time.Second},
		{"overflow_clamped", time.Second, 62, 5 * time.Second, 5 * time.Second},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := backoffDuration(c.initial, c.attempt, c.max); got != c.want {
				t.Fatalf("backoffDuration(%v, %d, %v) = %v, want %v", c.initial, c.attempt, c.max, got, c.want)
			}
		})
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusNotFound:            false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		600:                            false,
	} {
		if got := isRetryableStatus(code); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

// TestSleepWithContextCancellation verifies that sleepWithContext returns
// early when the context is already canceled.
func TestSleepWithContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepWithContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleepWithContext did not return early")
	}
}
