package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ItemInput is one cart line as sent by the storefront. Price is in major units.
type ItemInput struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity float64         `json:"quantity,omitempty"`
	Type     ProductKind     `json:"type,omitempty"`
}

// CheckoutInput is the validated request to create a hosted checkout link.
type CheckoutInput struct {
	Amount        int64         `json:"amount"` // centavos, > 0
	Description   string        `json:"description"`
	Items         []ItemInput   `json:"items,omitempty"`
	Customer      *Customer     `json:"customer,omitempty"`
	Address       *Address      `json:"address,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
}

// CheckoutLink is returned after the provider created the hosted checkout.
type CheckoutLink struct {
	URL      string   `json:"url"`
	OrderNSU string   `json:"order_nsu"`
	Warnings []string `json:"-"`
}

// Confirmation holds the parameters the provider appends to the success redirect.
type Confirmation struct {
	ReceiptURL     string `json:"receipt_url,omitempty"`
	OrderNSU       string `json:"order_nsu,omitempty"`
	Slug           string `json:"slug,omitempty"`
	CaptureMethod  string `json:"capture_method,omitempty"`
	TransactionNSU string `json:"transaction_nsu,omitempty"`
	Amount         *int64 `json:"amount,omitempty"` // centavos
}

// ParseAmount parses a minor-unit amount from a query string value.
// Empty or invalid values yield nil.
func ParseAmount(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// GuardKey is the key the confirmation's one-shot guard is stored under.
// The transaction nonce identifies a payment; the order nonce is the fallback.
func (c Confirmation) GuardKey() string {
	if c.TransactionNSU != "" {
		return "txn:" + c.TransactionNSU
	}
	if c.OrderNSU != "" {
		return "order:" + c.OrderNSU
	}
	return ""
}
