// MCP transport for the checkout relay using the official MCP Go SDK.
// Exposes the link, task and relay operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"checkout-relay/internal/model"
)

// === MCP Tool Input/Output Types ===
// Prices are plain numbers here so the SDK can infer a usable input schema.

// MCPItem is one cart line. Price is in major units (reais).
type MCPItem struct {
	ID       string            `json:"id,omitempty" jsonschema:"product identifier"`
	Name     string            `json:"name" jsonschema:"display name"`
	Price    float64           `json:"price" jsonschema:"unit price in reais"`
	Quantity int               `json:"quantity,omitempty" jsonschema:"quantity, defaults to 1"`
	Type     model.ProductKind `json:"type,omitempty" jsonschema:"course, mentoring, product or service"`
}

// CreateCheckoutLinkInput is the input schema for create_checkout_link.
type CreateCheckoutLinkInput struct {
	Amount        int64               `json:"amount" jsonschema:"order total in centavos"`
	Description   string              `json:"description" jsonschema:"order description shown on the checkout"`
	Items         []MCPItem           `json:"items,omitempty" jsonschema:"cart lines"`
	Customer      *model.Customer     `json:"customer,omitempty" jsonschema:"buyer details used to pre-fill the checkout"`
	Address       *model.Address      `json:"address,omitempty" jsonschema:"delivery address"`
	PaymentMethod model.PaymentMethod `json:"payment_method,omitempty" jsonschema:"pix or card"`
	Origin        string              `json:"origin,omitempty" jsonschema:"storefront origin used for redirect URLs"`
}

// CheckoutLinkOutput is returned by create_checkout_link.
type CheckoutLinkOutput struct {
	URL      string `json:"url"`
	OrderNSU string `json:"order_nsu"`
}

// CreateOrderTaskInput is the input schema for create_order_task.
type CreateOrderTaskInput struct {
	OrderNSU       string              `json:"order_nsu" jsonschema:"order nonce from the checkout link"`
	TransactionNSU string              `json:"transaction_nsu" jsonschema:"transaction nonce from the payment provider"`
	Slug           string              `json:"slug,omitempty" jsonschema:"provider invoice slug"`
	CaptureMethod  string              `json:"capture_method,omitempty" jsonschema:"pix or credit_card"`
	Amount         *int64              `json:"amount,omitempty" jsonschema:"amount paid in centavos"`
	ReceiptURL     string              `json:"receipt_url,omitempty" jsonschema:"payment receipt URL"`
	PaymentMethod  model.PaymentMethod `json:"payment_method,omitempty" jsonschema:"pix or card"`
	Customer       *model.Customer     `json:"customer" jsonschema:"buyer; name is required"`
	Address        *model.Address      `json:"address,omitempty" jsonschema:"delivery address"`
	Items          []MCPItem           `json:"items,omitempty" jsonschema:"purchased products"`
}

// NewMCPServer creates an MCP server with the relay tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "checkout-relay",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Checkout relay for a storefront. Create hosted payment links " +
				"and record confirmed orders as tasks.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_checkout_link",
		Description: "Create a hosted checkout link for an order. Returns the link URL and the order nonce.",
	}, h.mcpCreateCheckoutLink)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_order_task",
		Description: "Create the production task for a paid order. Requires order_nsu, transaction_nsu and customer.name.",
	}, h.mcpCreateOrderTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "relay_order",
		Description: "Create a task from a flat order summary, without custom fields.",
	}, h.mcpRelayOrder)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpCreateCheckoutLink(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateCheckoutLinkInput,
) (*mcp.CallToolResult, *CheckoutLinkOutput, error) {
	if err := h.links.CheckConfig(); err != nil {
		return nil, nil, h.mcpError(err)
	}

	in := &model.CheckoutInput{
		Amount:        input.Amount,
		Description:   input.Description,
		Customer:      input.Customer,
		Address:       input.Address,
		PaymentMethod: input.PaymentMethod,
	}
	for _, it := range input.Items {
		in.Items = append(in.Items, model.ItemInput{
			ID:       it.ID,
			Name:     it.Name,
			Price:    decimal.NewFromFloat(it.Price),
			Quantity: float64(it.Quantity),
			Type:     it.Type,
		})
	}

	link, err := h.links.CreateLink(ctx, input.Origin, in)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	if h.flow != nil {
		h.flow.RecordPending(ctx, link, in)
	}

	return nil, &CheckoutLinkOutput{URL: link.URL, OrderNSU: link.OrderNSU}, nil
}

func (h *Handler) mcpCreateOrderTask(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateOrderTaskInput,
) (*mcp.CallToolResult, *model.TaskResult, error) {
	if err := h.tasks.CheckConfig(); err != nil {
		return nil, nil, h.mcpError(err)
	}

	taskReq := &model.TaskRequest{
		OrderNSU:       input.OrderNSU,
		TransactionNSU: input.TransactionNSU,
		Slug:           input.Slug,
		CaptureMethod:  input.CaptureMethod,
		Amount:         input.Amount,
		ReceiptURL:     input.ReceiptURL,
		PaymentMethod:  input.PaymentMethod,
		Customer:       input.Customer,
		Address:        input.Address,
	}
	for _, it := range input.Items {
		taskReq.Items = append(taskReq.Items, model.TaskItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    decimal.NewFromFloat(it.Price),
			Type:     it.Type,
		})
	}

	res, err := h.tasks.CreateTask(ctx, taskReq)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

func (h *Handler) mcpRelayOrder(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input model.OrderSummary,
) (*mcp.CallToolResult, *model.TaskResult, error) {
	if err := h.tasks.CheckConfig(); err != nil {
		return nil, nil, h.mcpError(err)
	}

	res, err := h.tasks.RelayOrder(ctx, &input)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, res, nil
}

// mcpError converts provider errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
