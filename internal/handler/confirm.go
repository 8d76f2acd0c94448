package handler

import (
	"net/http"

	"checkout-relay/internal/model"
)

// handleConfirm reconciles the provider's success redirect.
// GET /checkout/success?receipt_url=&order_nsu=&slug=&capture_method=&transaction_nsu=&amount=
//
// The response is always 200: the buyer has paid by the time the provider
// redirects, and the task outcome is reported alongside, not instead.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := model.Confirmation{
		ReceiptURL:     q.Get("receipt_url"),
		OrderNSU:       q.Get("order_nsu"),
		Slug:           q.Get("slug"),
		CaptureMethod:  q.Get("capture_method"),
		TransactionNSU: q.Get("transaction_nsu"),
		Amount:         model.ParseAmount(q.Get("amount")),
	}

	h.writeJSON(w, http.StatusOK, h.flow.Confirm(r.Context(), c))
}

// handleCancel handles the provider's cancel redirect.
// GET /checkout/cancel[?order_nsu=]
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.flow.Cancel(r.Context(), r.URL.Query().Get("order_nsu")))
}
