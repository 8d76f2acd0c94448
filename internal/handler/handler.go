// Package handler provides the HTTP handlers for the checkout relay API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"checkout-relay/internal/adapter"
	"checkout-relay/internal/confirm"
	"checkout-relay/internal/metrics"
	"checkout-relay/internal/model"
	"checkout-relay/internal/store"
)

// Default redirect paths the payment provider sends the buyer back to.
const (
	DefaultSuccessPath = "/checkout/success"
	DefaultCancelPath  = "/checkout/cancel"
)

// Deps are the collaborators a Handler needs.
type Deps struct {
	Links adapter.CheckoutLinker
	Tasks adapter.TaskCreator
	Flow  *confirm.Flow
	// Store holds Idempotency-Key guards for the task endpoints.
	Store   store.Store
	Metrics *metrics.Registry
	Logger  *slog.Logger

	SuccessPath string
	CancelPath  string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	links       adapter.CheckoutLinker
	tasks       adapter.TaskCreator
	flow        *confirm.Flow
	store       store.Store
	metrics     *metrics.Registry
	logger      *slog.Logger
	successPath string
	cancelPath  string
}

// New creates a new Handler.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.SuccessPath == "" {
		d.SuccessPath = DefaultSuccessPath
	}
	if d.CancelPath == "" {
		d.CancelPath = DefaultCancelPath
	}
	return &Handler{
		links:       d.Links,
		tasks:       d.Tasks,
		flow:        d.Flow,
		store:       d.Store,
		metrics:     d.Metrics,
		logger:      d.Logger,
		successPath: d.SuccessPath,
		cancelPath:  d.CancelPath,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns; the method-less patterns answer
// every other method with a JSON 405.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout-link", h.handleCheckoutLink)
	mux.HandleFunc("/api/checkout-link", h.handleMethodNotAllowed)

	mux.HandleFunc("POST /api/clickup-task", h.handleCreateTask)
	mux.HandleFunc("/api/clickup-task", h.handleMethodNotAllowed)

	mux.HandleFunc("POST /api/orders", h.handleRelayOrder)
	mux.HandleFunc("/api/orders", h.handleMethodNotAllowed)

	// Provider redirects
	mux.HandleFunc("GET "+h.successPath, h.handleConfirm)
	mux.HandleFunc("GET "+h.cancelPath, h.handleCancel)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	h.writeError(w, model.NewMethodNotAllowedError(r.Method))
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// apiError extracts the APIError from err's chain, wrapping unexpected errors.
func (h *Handler) apiError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// writeError sends an error response, extracting status/code from APIError if present.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.apiError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
