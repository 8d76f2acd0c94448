// Package cart aggregates the storefront's selected line items and derives
// totals in both major and minor currency units.
package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"checkout-relay/internal/model"
)

// Item is one cart line. Quantity is always ≥ 1 while the item is in the cart.
type Item struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal // major units
	Quantity  int
	Kind      model.ProductKind
}

// LineTotal returns UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds line items keyed by ID, preserving insertion order.
// A Cart is not safe for concurrent use.
type Cart struct {
	order []string
	items map[string]*Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{items: make(map[string]*Item)}
}

// Add puts item in the cart. Adding an ID already present increases its quantity.
func (c *Cart) Add(item Item) error {
	if strings.TrimSpace(item.ID) == "" {
		return model.NewValidationError("item.id", "required")
	}
	if item.Quantity < 1 {
		return model.NewValidationError("item.quantity", "must be at least 1")
	}
	if item.UnitPrice.IsNegative() {
		return model.NewValidationError("item.price", "must not be negative")
	}
	if item.Kind == "" {
		item.Kind = model.KindProduct
	}

	if existing, ok := c.items[item.ID]; ok {
		existing.Quantity += item.Quantity
		return nil
	}
	c.items[item.ID] = &item
	c.order = append(c.order, item.ID)
	return nil
}

// Increment adds one unit of an item already in the cart.
func (c *Cart) Increment(id string) error {
	it, ok := c.items[id]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("cart item %s", id))
	}
	it.Quantity++
	return nil
}

// Decrement removes one unit; the item leaves the cart when its quantity reaches 0.
func (c *Cart) Decrement(id string) error {
	it, ok := c.items[id]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("cart item %s", id))
	}
	if it.Quantity <= 1 {
		c.Remove(id)
		return nil
	}
	it.Quantity--
	return nil
}

// SetQuantity replaces an item's quantity. Zero or less removes the item.
func (c *Cart) SetQuantity(id string, qty int) error {
	it, ok := c.items[id]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("cart item %s", id))
	}
	if qty <= 0 {
		c.Remove(id)
		return nil
	}
	it.Quantity = qty
	return nil
}

// Remove drops an item regardless of quantity. Unknown IDs are ignored.
func (c *Cart) Remove(id string) {
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.order = nil
	c.items = make(map[string]*Item)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

// Count returns the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Total returns the cart total in major units.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// TotalMinor returns the cart total in centavos.
func (c *Cart) TotalMinor() int64 {
	return model.ToMinorUnits(c.Total())
}

// Snapshot copies the lines into order line items.
func (c *Cart) Snapshot() []model.LineItem {
	items := c.Items()
	out := make([]model.LineItem, len(items))
	for i, it := range items {
		out[i] = model.LineItem{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Kind:      it.Kind,
		}
	}
	return out
}

// CheckoutInput builds the checkout-link request for the current cart.
func (c *Cart) CheckoutInput(description string, customer *model.Customer, method model.PaymentMethod) (*model.CheckoutInput, error) {
	if len(c.items) == 0 {
		return nil, model.NewValidationError("cart", "is empty")
	}

	in := &model.CheckoutInput{
		Amount:        c.TotalMinor(),
		Description:   description,
		Customer:      customer,
		PaymentMethod: method,
	}
	if customer != nil && !customer.Address.IsZero() {
		in.Address = customer.Address
	}
	for _, it := range c.Items() {
		in.Items = append(in.Items, model.ItemInput{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.UnitPrice,
			Quantity: float64(it.Quantity),
			Type:     it.Kind,
		})
	}
	return in, nil
}
