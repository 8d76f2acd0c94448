package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TaskItem is a purchased product listed on the task.
type TaskItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price"` // major units, per unit
	Type     ProductKind     `json:"type,omitempty"`
}

// TaskRequest is the body of the task creation endpoint.
type TaskRequest struct {
	OrderNSU       string        `json:"order_nsu"`
	TransactionNSU string        `json:"transaction_nsu"`
	Slug           string        `json:"slug,omitempty"`
	CaptureMethod  string        `json:"capture_method,omitempty"`
	Amount         *int64        `json:"amount,omitempty"` // centavos
	ReceiptURL     string        `json:"receipt_url,omitempty"`
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty"`
	Customer       *Customer     `json:"customer,omitempty"`
	Address        *Address      `json:"address,omitempty"`
	Items          []TaskItem    `json:"items,omitempty"`
}

// CustomerName returns the trimmed customer name or "".
func (r *TaskRequest) CustomerName() string {
	if r.Customer == nil {
		return ""
	}
	return strings.TrimSpace(r.Customer.Name)
}

// Method returns the payment method, derived from capture_method when not set explicitly.
func (r *TaskRequest) Method() PaymentMethod {
	if r.PaymentMethod != "" {
		return r.PaymentMethod
	}
	return PaymentMethodFromCapture(r.CaptureMethod)
}

// ShippingAddress prefers the top-level address over the one nested in the customer.
func (r *TaskRequest) ShippingAddress() *Address {
	if !r.Address.IsZero() {
		return r.Address
	}
	if r.Customer != nil && !r.Customer.Address.IsZero() {
		return r.Customer.Address
	}
	return nil
}

// Total returns the amount in centavos: the provider-confirmed amount when present,
// else the sum of the items.
func (r *TaskRequest) Total() int64 {
	if r.Amount != nil {
		return *r.Amount
	}
	sum := decimal.Zero
	for _, it := range r.Items {
		q := it.Quantity
		if q < 1 {
			q = 1
		}
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(q))))
	}
	return ToMinorUnits(sum)
}

// TaskResult describes the task created for an order.
type TaskResult struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	Status   string `json:"status,omitempty"`
	URL      string `json:"url,omitempty"`
}

// OrderSummary is the flat body accepted by the order relay endpoint.
type OrderSummary struct {
	OrderID          string   `json:"order_id"`
	NomeCliente      string   `json:"nome_cliente"`
	Email            string   `json:"email,omitempty"`
	Telefone         string   `json:"telefone,omitempty"`
	DataNascimento   string   `json:"data_nascimento,omitempty"`
	EnderecoCompleto string   `json:"endereco_completo,omitempty"`
	Produtos         []string `json:"produtos,omitempty"`
	ValorTotal       string   `json:"valor_total,omitempty"`
	FormaPagamento   string   `json:"forma_pagamento,omitempty"`
	DataCompra       string   `json:"data_compra,omitempty"`
}
