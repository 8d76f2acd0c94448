// Package model defines the order, checkout and task types shared by the relay's
// providers, handlers and store, plus the error taxonomy.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductKind distinguishes what a cart line sells.
type ProductKind string

const (
	KindCourse    ProductKind = "course"
	KindProduct   ProductKind = "product"
	KindMentoring ProductKind = "mentoring"
	KindService   ProductKind = "service"
)

// IsCourse reports whether items of this kind are listed as courses on the task.
// Everything else, including an unspecified kind, is a service.
func (k ProductKind) IsCourse() bool {
	switch ProductKind(strings.ToLower(strings.TrimSpace(string(k)))) {
	case KindCourse, KindMentoring:
		return true
	}
	return false
}

// PaymentMethod is the instrument the buyer chose at checkout.
type PaymentMethod string

const (
	PaymentPix  PaymentMethod = "pix"
	PaymentCard PaymentMethod = "card"
)

// Label returns the Portuguese display name used on tasks.
func (m PaymentMethod) Label() string {
	switch PaymentMethodFromCapture(string(m)) {
	case PaymentPix:
		return "Pix"
	case PaymentCard:
		return "Cartão de crédito"
	}
	if m == "" {
		return "Não informado"
	}
	return string(m)
}

// PaymentMethodFromCapture maps the provider's capture_method to a PaymentMethod.
// Unknown values are returned unchanged.
func PaymentMethodFromCapture(capture string) PaymentMethod {
	c := strings.ToLower(strings.TrimSpace(capture))
	switch c {
	case "pix":
		return PaymentPix
	case "card", "credit_card", "debit_card", "credit", "debit":
		return PaymentCard
	}
	return PaymentMethod(c)
}

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// Address is a buyer's postal address. All fields are free text as typed by the buyer.
type Address struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// IsZero reports whether no address field was provided.
func (a *Address) IsZero() bool {
	return a == nil || (strings.TrimSpace(a.Street) == "" && strings.TrimSpace(a.Number) == "" &&
		strings.TrimSpace(a.City) == "" && strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.PostalCode) == "")
}

// OneLine renders the address as "street, number - city/STATE - CEP postal".
func (a *Address) OneLine() string {
	if a.IsZero() {
		return ""
	}
	var parts []string
	street := strings.TrimSpace(a.Street)
	if n := strings.TrimSpace(a.Number); n != "" {
		if street != "" {
			street += ", " + n
		} else {
			street = n
		}
	}
	if street != "" {
		parts = append(parts, street)
	}
	city := strings.TrimSpace(a.City)
	if st := strings.ToUpper(strings.TrimSpace(a.State)); st != "" {
		if city != "" {
			city += "/" + st
		} else {
			city = st
		}
	}
	if city != "" {
		parts = append(parts, city)
	}
	if pc := strings.TrimSpace(a.PostalCode); pc != "" {
		parts = append(parts, "CEP "+pc)
	}
	return strings.Join(parts, " - ")
}

// Customer is the buyer as entered in the checkout form.
// Only Name is required, and only when a task is created.
type Customer struct {
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	CPF       string   `json:"cpf,omitempty"`
	BirthDate string   `json:"birth_date,omitempty"`
	Address   *Address `json:"address,omitempty"`
}

// LineItem is a snapshot of one cart line at checkout time.
type LineItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Kind      ProductKind     `json:"kind,omitempty"`
}

// Order is created when the buyer submits checkout and is owned by the checkout flow.
type Order struct {
	ID            string        `json:"id"`
	Items         []LineItem    `json:"items"`
	Total         int64         `json:"total"` // centavos
	Customer      Customer      `json:"customer"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Status        OrderStatus   `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Transition moves the order to next. Only pending → paid and pending → failed are allowed.
func (o *Order) Transition(next OrderStatus) error {
	if o.Status == next {
		return nil
	}
	if o.Status != OrderPending || (next != OrderPaid && next != OrderFailed) {
		return fmt.Errorf("order %s: illegal transition %s → %s", o.ID, o.Status, next)
	}
	o.Status = next
	return nil
}
