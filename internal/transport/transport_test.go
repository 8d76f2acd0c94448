package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type countingRoundTripper struct {
	calls atomic.Int32
}

func (c *countingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	return rec.Result(), nil
}

func TestRateLimitedBurstThenWait(t *testing.T) {
	base := &countingRoundTripper{}
	// 60/min → 1/s with burst 6
	rt := NewRateLimited(base, 60)

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest("GET", "http://provider.test/", nil)
		if _, err := rt.RoundTrip(req); err != nil {
			t.Fatalf("RoundTrip %d error: %v", i, err)
		}
	}

	// Burst exhausted: the next call must wait and the context expires first.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest("GET", "http://provider.test/", nil).WithContext(ctx)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected rate limit wait to fail on short deadline")
	}

	if got := base.calls.Load(); got != 6 {
		t.Errorf("base calls = %d, want 6", got)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{})
	if c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
	if c.Transport != http.DefaultTransport {
		t.Errorf("Transport = %T, want http.DefaultTransport", c.Transport)
	}

	c = NewClient(Options{RequestsPerMinute: 100, Timeout: time.Second})
	if _, ok := c.Transport.(*RateLimited); !ok {
		t.Errorf("Transport = %T, want *RateLimited", c.Transport)
	}

	c = NewClient(Options{ChromeFingerprint: true})
	if _, ok := c.Transport.(*chromeTransport); !ok {
		t.Errorf("Transport = %T, want *chromeTransport", c.Transport)
	}
}

func TestChromeTransportPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewChromeTransport(time.Second), Timeout: 2 * time.Second}
	resp, err := client.Get(srv.URL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			t.Skip("network unavailable")
		}
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}
