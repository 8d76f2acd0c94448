// Package clickup creates one ClickUp task per confirmed order. It resolves
// the target list's status and custom fields by name at request time and
// maps ClickUp failures to the relay's error taxonomy.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-relay/internal/metrics"
	"checkout-relay/internal/model"
	"checkout-relay/internal/transport"
)

const (
	// DefaultBaseURL is the ClickUp v2 API root.
	DefaultBaseURL = "https://api.clickup.com/api/v2"

	providerName = "ClickUp"
	userAgent    = "checkout-relay/1.0"

	maxErrorDetails = 512
)

// Client is a thin ClickUp v2 REST client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	metrics    *metrics.Registry
	logger     *slog.Logger
}

// NewClient creates a client authenticating with a personal API token.
func NewClient(baseURL, token string, opts transport.Options, m *metrics.Registry, logger *slog.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: transport.NewClient(opts),
		baseURL:    baseURL,
		token:      token,
		metrics:    m,
		logger:     logger,
	}
}

// GetList fetches a list with its statuses.
func (c *Client) GetList(ctx context.Context, listID string) (*List, error) {
	var list List
	if err := c.do(ctx, "get_list", http.MethodGet, "/list/"+url.PathEscape(listID), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetFields fetches the custom fields accessible from a list, in ClickUp's order.
func (c *Client) GetFields(ctx context.Context, listID string) ([]Field, error) {
	var resp FieldsResponse
	if err := c.do(ctx, "get_fields", http.MethodGet, "/list/"+url.PathEscape(listID)+"/field", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Fields, nil
}

// CreateTask creates a task in a list.
func (c *Client) CreateTask(ctx context.Context, listID string, req *CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.do(ctx, "create_task", http.MethodPost, "/list/"+url.PathEscape(listID)+"/task", req, &task); err != nil {
		return nil, err
	}
	if task.ID == "" {
		return nil, model.NewIntegrationError(providerName, fmt.Errorf("create task response has no id"))
	}
	return &task, nil
}

// === HTTP Helpers ===

func (c *Client) do(ctx context.Context, op, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return model.NewInternalError(fmt.Errorf("marshaling request: %w", err))
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return model.NewInternalError(err)
	}
	// ClickUp personal tokens are sent bare, without a scheme.
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveOutbound("clickup", op, 0, time.Since(start))
		return model.NewIntegrationError(providerName, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveOutbound("clickup", op, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewIntegrationError(providerName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.DebugContext(ctx, "clickup error response",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(respBody), maxErrorDetails)),
		)
		return parseError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return model.NewIntegrationError(providerName, fmt.Errorf("parsing response: %w", err))
		}
	}
	return nil
}

// parseError maps ClickUp's status to the caller-facing category.
func parseError(statusCode int, body []byte) error {
	var apiErr ErrorResponse
	details := truncate(string(body), maxErrorDetails)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Err != "" {
		details = apiErr.Err
		if apiErr.ECode != "" {
			details += " (" + apiErr.ECode + ")"
		}
	}

	switch {
	case statusCode == http.StatusBadRequest:
		return model.NewProviderError(providerName, statusCode, statusCode, "invalid data sent to task provider", details)
	case statusCode == http.StatusUnauthorized:
		return model.NewProviderError(providerName, statusCode, statusCode, "task provider authentication failed", details)
	case statusCode == http.StatusUnprocessableEntity:
		return model.NewProviderError(providerName, statusCode, statusCode, "task provider could not process the task", details)
	case statusCode == http.StatusInternalServerError:
		return model.NewProviderError(providerName, statusCode, statusCode, "task provider internal error", details)
	case statusCode >= 400 && statusCode <= 499:
		msg := apiErr.Err
		if msg == "" {
			msg = "task provider rejected the request"
		}
		return model.NewProviderError(providerName, statusCode, statusCode, msg, details)
	default:
		err := model.NewIntegrationError(providerName, fmt.Errorf("status %d", statusCode))
		err.Details = details
		err.ProviderStatus = statusCode
		return err
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
