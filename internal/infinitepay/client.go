// Package infinitepay creates hosted checkout links with the InfinitePay
// public checkout API and maps its responses to the relay's error taxonomy.
package infinitepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"checkout-relay/internal/adapter"
	"checkout-relay/internal/metrics"
	"checkout-relay/internal/model"
	"checkout-relay/internal/transport"
)

const (
	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://api.infinitepay.io"

	pathCheckoutLinks = "/invoices/public/checkout/links"

	providerName = "InfinitePay"
	userAgent    = "checkout-relay/1.0"

	maxErrorDetails = 512
)

// Config holds InfinitePay settings.
type Config struct {
	Handle        string // raw; a leading "$" is stripped
	BaseURL       string
	DefaultOrigin string
	SuccessPath   string
	CancelPath    string
	Transport     transport.Options

	Metrics *metrics.Registry
	Logger  *slog.Logger

	// NewNonce overrides order nonce generation (tests).
	NewNonce func() string
}

// Client creates checkout links.
type Client struct {
	httpClient *http.Client
	baseURL    string
	builder    *Builder
	metrics    *metrics.Registry
	logger     *slog.Logger
}

// New creates a client. A missing handle is not an error here: it is reported
// per request by CheckConfig so the server can start and answer health checks.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: transport.NewClient(cfg.Transport),
		baseURL:    baseURL,
		builder: &Builder{
			Handle:        NormalizeHandle(cfg.Handle),
			DefaultOrigin: cfg.DefaultOrigin,
			SuccessPath:   cfg.SuccessPath,
			CancelPath:    cfg.CancelPath,
			NewNonce:      cfg.NewNonce,
		},
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// CheckConfig reports a configuration error when no merchant handle is set.
func (c *Client) CheckConfig() error {
	if c.builder.Handle == "" {
		return model.NewConfigError("INFINITEPAY_HANDLE")
	}
	return nil
}

// CreateLink validates in, creates the hosted checkout and returns its URL
// together with the generated order nonce.
func (c *Client) CreateLink(ctx context.Context, origin string, in *model.CheckoutInput) (*model.CheckoutLink, error) {
	if err := c.CheckConfig(); err != nil {
		return nil, err
	}

	built, err := c.builder.Build(origin, in)
	if err != nil {
		c.metrics.CheckoutLink("invalid")
		return nil, err
	}
	for _, w := range built.Warnings {
		c.logger.WarnContext(ctx, "checkout input normalized",
			slog.String("order_nsu", built.Request.OrderNSU),
			slog.String("warning", w),
		)
	}

	var resp CheckoutLinkResponse
	if err := c.post(ctx, pathCheckoutLinks, built.Request, &resp); err != nil {
		c.logger.ErrorContext(ctx, "checkout link request failed",
			slog.String("order_nsu", built.Request.OrderNSU),
			slog.Int64("amount", in.Amount),
			slog.Int("items", len(built.Request.Items)),
			slog.Bool("has_customer", built.Request.Customer != nil),
			slog.Bool("has_address", built.Request.Address != nil),
			slog.String("error", err.Error()),
		)
		c.metrics.CheckoutLink(resultLabel(err))
		return nil, err
	}

	link := resp.URL
	if strings.TrimSpace(link) == "" {
		link = resp.Link
	}
	if !usableURL(link) {
		c.metrics.CheckoutLink("failed")
		return nil, model.NewIntegrationError(providerName,
			fmt.Errorf("checkout link response has no usable url"))
	}

	c.metrics.CheckoutLink("created")
	return &model.CheckoutLink{
		URL:      strings.TrimSpace(link),
		OrderNSU: built.Request.OrderNSU,
		Warnings: built.Warnings,
	}, nil
}

// === HTTP Helpers ===

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return model.NewInternalError(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return model.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveOutbound("infinitepay", "create_link", 0, time.Since(start))
		return model.NewIntegrationError(providerName, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveOutbound("infinitepay", "create_link", resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewIntegrationError(providerName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return model.NewIntegrationError(providerName, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// parseError maps a non-2xx answer. 4xx passes through with the best message
// available; everything else becomes an integration error.
func parseError(statusCode int, body []byte) error {
	if statusCode < 400 || statusCode > 499 {
		return model.NewIntegrationError(providerName,
			fmt.Errorf("status %d: %s", statusCode, truncate(string(body), maxErrorDetails)))
	}

	var apiErr ErrorResponse
	parsed := json.Unmarshal(body, &apiErr) == nil

	var msg string
	if parsed {
		if statusCode == http.StatusUnprocessableEntity {
			msg = firstMessage(apiErr.Errors)
		}
		if msg == "" {
			msg = strings.TrimSpace(apiErr.Message)
		}
		if msg == "" {
			msg = strings.TrimSpace(apiErr.Error)
		}
	}
	if msg == "" {
		if statusCode == http.StatusUnprocessableEntity {
			msg = "invalid data"
		} else {
			msg = "checkout provider rejected the request"
		}
	}

	return model.NewProviderError(providerName, statusCode, statusCode, msg,
		truncate(string(body), maxErrorDetails))
}

// firstMessage extracts the first human-readable message from the "errors"
// member, which appears as {"field": ["msg"]}, {"field": "msg"}, ["msg"] or
// [{"message": "msg"}]. Map iteration is sorted for a stable result.
func firstMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Message) != "" {
		return strings.TrimSpace(obj.Message)
	}

	var byField map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byField); err == nil {
		keys := make([]string, 0, len(byField))
		for k := range byField {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if m := firstMessage(byField[k]); m != "" {
				return k + ": " + m
			}
		}
		return ""
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if m := firstMessage(item); m != "" {
				return m
			}
		}
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

func resultLabel(err error) string {
	if errors.Is(err, model.ErrProviderRejected) {
		return "rejected"
	}
	return "failed"
}

func usableURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

var _ adapter.CheckoutLinker = (*Client)(nil)
