package handler

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"

	"checkout-relay/internal/model"
)

// checkoutLinkRequest keeps amount and description raw so their JSON types
// can be checked instead of silently coerced.
type checkoutLinkRequest struct {
	Amount        json.RawMessage     `json:"amount"`
	Description   json.RawMessage     `json:"description"`
	Items         []model.ItemInput   `json:"items,omitempty"`
	Customer      *model.Customer     `json:"customer,omitempty"`
	Address       *model.Address      `json:"address,omitempty"`
	PaymentMethod model.PaymentMethod `json:"payment_method,omitempty"`
}

type checkoutLinkResponse struct {
	URL      string `json:"url"`
	OrderNSU string `json:"order_nsu"`
}

// handleCheckoutLink creates a hosted checkout link.
// POST /api/checkout-link
func (h *Handler) handleCheckoutLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// A missing merchant handle is reported before the body is looked at.
	if err := h.links.CheckConfig(); err != nil {
		h.writeError(w, err)
		return
	}

	var req checkoutLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	in, err := req.toInput()
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "creating checkout link",
		slog.Int64("amount", in.Amount),
		slog.Int("items", len(in.Items)),
		slog.Bool("has_customer", in.Customer != nil),
	)

	link, err := h.links.CreateLink(ctx, r.Header.Get("Origin"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.flow != nil {
		h.flow.RecordPending(ctx, link, in)
	}

	h.writeJSON(w, http.StatusOK, checkoutLinkResponse{URL: link.URL, OrderNSU: link.OrderNSU})
}

func (req *checkoutLinkRequest) toInput() (*model.CheckoutInput, error) {
	amount, err := parseMinorAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	var description string
	if len(req.Description) == 0 || json.Unmarshal(req.Description, &description) != nil {
		return nil, model.NewValidationError("description", "must be a non-empty string")
	}

	return &model.CheckoutInput{
		Amount:        amount,
		Description:   description,
		Items:         req.Items,
		Customer:      req.Customer,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
	}, nil
}

// parseMinorAmount accepts only a positive integral JSON number.
func parseMinorAmount(raw json.RawMessage) (int64, error) {
	invalid := model.NewValidationError("amount", "must be a positive integer in centavos")

	var v interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0, invalid
	}
	f, ok := v.(float64)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt64/2 {
		return 0, invalid
	}
	return int64(f), nil
}
