// Package adapter defines the interfaces handlers use to reach the payment
// and task providers. Providers translate their APIs to the relay's model.
package adapter

import (
	"context"

	"checkout-relay/internal/model"
)

// CheckoutLinker creates hosted checkout links (InfinitePay).
type CheckoutLinker interface {
	// CheckConfig returns a configuration error when the merchant handle is
	// missing. Handlers call it before reading the request body.
	CheckConfig() error

	// CreateLink validates in and creates a hosted checkout. origin is the
	// request's Origin header, used to derive redirect URLs.
	CreateLink(ctx context.Context, origin string, in *model.CheckoutInput) (*model.CheckoutLink, error)
}

// TaskCreator creates one task per confirmed order (ClickUp).
type TaskCreator interface {
	// CheckConfig returns a configuration error when credentials are missing.
	CheckConfig() error

	// CreateTask resolves the list schema and creates the order's task.
	CreateTask(ctx context.Context, req *model.TaskRequest) (*model.TaskResult, error)

	// RelayOrder creates a task from a flat order summary, without schema resolution.
	RelayOrder(ctx context.Context, sum *model.OrderSummary) (*model.TaskResult, error)
}
