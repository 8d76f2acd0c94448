// Package transport provides the outbound HTTP transports used by provider clients.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 30 * time.Second

// Options selects how a provider client reaches its API.
type Options struct {
	Timeout time.Duration

	// ChromeFingerprint presents a Chrome TLS ClientHello (see NewChromeTransport).
	ChromeFingerprint bool

	// RequestsPerMinute throttles outbound requests; 0 disables throttling.
	RequestsPerMinute int

	// Base overrides the underlying RoundTripper (tests use httptest transports).
	Base http.RoundTripper
}

// NewClient builds an *http.Client from opts.
func NewClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rt := opts.Base
	if rt == nil {
		if opts.ChromeFingerprint {
			rt = NewChromeTransport(timeout)
		} else {
			rt = http.DefaultTransport
		}
	}
	if opts.RequestsPerMinute > 0 {
		rt = NewRateLimited(rt, opts.RequestsPerMinute)
	}

	return &http.Client{Timeout: timeout, Transport: rt}
}

// =============================================================================
// RATE LIMITED TRANSPORT
// =============================================================================
//
// Task-list providers meter requests per token (ClickUp: 100/min on the
// free plans). A single task creation costs three calls (statuses, fields,
// create), so bursts of confirmations can trip the limit. Requests wait for a
// token instead of failing; the wait honours the request context.
// =============================================================================

// RateLimited is an http.RoundTripper that waits on a token bucket before each request.
type RateLimited struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute requests per minute with a burst of perMinute/10 (at least 1).
func NewRateLimited(next http.RoundTripper, perMinute int) *RateLimited {
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimited) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.RoundTrip(req)
}

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// Go's standard TLS client has a distinctive fingerprint that some payment
// gateways' CDNs rate limit aggressively. This transport uses uTLS to present
// a Chrome-like TLS fingerprint with full HTTP/2 support:
//
//   1. Use uTLS with HelloChrome_Auto for Chrome's TLS fingerprint
//   2. Let ALPN negotiate naturally (h2, http/1.1)
//   3. Use Go's http2.Transport for HTTP/2 framing when negotiated
//
// =============================================================================

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to upstream servers. Supports both HTTP/2 and HTTP/1.1 based on
// ALPN negotiation.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1Transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &chromeTransport{
		h2: h2Transport,
		h1: h1Transport,
	}
}

// chromeTransport wraps HTTP/2 and HTTP/1.1 transports with Chrome TLS fingerprint.
type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip implements http.RoundTripper.
// Plain-HTTP targets go straight to HTTP/1.1; TLS targets try HTTP/2 first.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	// Server doesn't speak h2. Only safe to replay requests without a body
	// or with a rewindable one.
	if req.Body != nil && req.GetBody == nil {
		return nil, err
	}
	if req.GetBody != nil {
		body, gerr := req.GetBody()
		if gerr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConfig := &utls.Config{
		ServerName: host,
	}
	tlsConn := utls.UClient(conn, tlsConfig, utls.HelloChrome_Auto)

	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
