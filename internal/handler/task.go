package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dunglas/httpsfv"

	"checkout-relay/internal/model"
	"checkout-relay/internal/store"
)

// HeaderIdempotencyKey carries an RFC 8941 sf-string identifying a submission.
const HeaderIdempotencyKey = "Idempotency-Key"

// taskResponse is the body of both task endpoints. Failures never carry
// task fields; the storefront treats them as advisory.
type taskResponse struct {
	Success  bool   `json:"success"`
	TaskID   string `json:"task_id,omitempty"`
	TaskName string `json:"task_name,omitempty"`
	Status   string `json:"status,omitempty"`
	URL      string `json:"url,omitempty"`

	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	APIStatus int    `json:"api_status,omitempty"`
}

// handleCreateTask creates the task for a confirmed order.
// POST /api/clickup-task
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.CheckConfig(); err != nil {
		h.writeTaskError(w, err)
		return
	}

	var req model.TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.runTask(w, r, func(ctx context.Context) (*model.TaskResult, error) {
		h.logger.InfoContext(ctx, "creating order task",
			slog.String("order_nsu", req.OrderNSU),
			slog.String("transaction_nsu", req.TransactionNSU),
			slog.Int("items", len(req.Items)),
		)
		return h.tasks.CreateTask(ctx, &req)
	})
}

// handleRelayOrder forwards a flat order summary as a task.
// POST /api/orders
func (h *Handler) handleRelayOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.CheckConfig(); err != nil {
		h.writeTaskError(w, err)
		return
	}

	var sum model.OrderSummary
	if err := decodeJSON(r, &sum); err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.runTask(w, r, func(ctx context.Context) (*model.TaskResult, error) {
		h.logger.InfoContext(ctx, "relaying order",
			slog.String("order_id", sum.OrderID),
			slog.Int("products", len(sum.Produtos)),
		)
		return h.tasks.RelayOrder(ctx, &sum)
	})
}

// runTask calls create under the request's Idempotency-Key guard, if any.
func (h *Handler) runTask(w http.ResponseWriter, r *http.Request, create func(ctx context.Context) (*model.TaskResult, error)) {
	ctx := r.Context()

	key, err := idempotencyKey(r)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	guard := ""
	if key != "" && h.store != nil {
		guard = "idem:" + r.URL.Path + ":" + key
		claimed, err := h.store.Claim(ctx, guard)
		if err != nil {
			h.writeTaskError(w, model.NewInternalError(err))
			return
		}
		if !claimed {
			h.writeTaskError(w, model.NewDuplicateError(key))
			return
		}
	}

	res, err := create(ctx)

	if guard != "" {
		state := store.GuardDone
		if err != nil {
			state = store.GuardFailed
		}
		if serr := h.store.Settle(context.WithoutCancel(ctx), guard, state); serr != nil {
			h.logger.ErrorContext(ctx, "failed to settle idempotency key",
				slog.String("key", key),
				slog.String("error", serr.Error()),
			)
		}
	}

	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, taskResponse{
		Success:  true,
		TaskID:   res.TaskID,
		TaskName: res.TaskName,
		Status:   res.Status,
		URL:      res.URL,
	})
}

// idempotencyKey parses the Idempotency-Key header as an sf-string.
// A missing header yields "".
func idempotencyKey(r *http.Request) (string, error) {
	values := r.Header.Values(HeaderIdempotencyKey)
	if len(values) == 0 {
		return "", nil
	}
	item, err := httpsfv.UnmarshalItem(values)
	if err != nil {
		return "", model.NewValidationError(HeaderIdempotencyKey, "must be a structured-field string")
	}
	key, ok := item.Value.(string)
	if !ok || key == "" {
		return "", model.NewValidationError(HeaderIdempotencyKey, "must be a non-empty string")
	}
	return key, nil
}

func (h *Handler) writeTaskError(w http.ResponseWriter, err error) {
	apiErr := h.apiError(err)
	h.writeJSON(w, apiErr.StatusCode, taskResponse{
		Success:   false,
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		Details:   apiErr.Details,
		APIStatus: apiErr.ProviderStatus,
	})
}
