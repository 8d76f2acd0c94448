package infinitepay

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-relay/internal/model"
)

const (
	// CountryCode is prefixed to phone numbers that do not carry it.
	CountryCode = "55"

	// FallbackOrigin is the redirect host when neither the request nor the
	// builder supplies a usable origin.
	FallbackOrigin = "http://localhost:8080"

	postalCodeLen = 8
	minPhoneLen   = 10
)

// Builder turns checkout input into a CheckoutLinkRequest.
// Build is a pure function of its input apart from the generated nonce.
type Builder struct {
	Handle        string // already normalized
	DefaultOrigin string // used when the request has no usable Origin
	SuccessPath   string
	CancelPath    string

	// NewNonce generates the order nonce; defaults to a random UUID.
	NewNonce func() string
}

// BuildResult carries the request plus non-fatal findings worth logging.
type BuildResult struct {
	Request  *CheckoutLinkRequest
	Warnings []string
}

// Build validates in and produces the provider request. origin is the
// request's Origin header (may be empty).
func (b *Builder) Build(origin string, in *model.CheckoutInput) (*BuildResult, error) {
	if in == nil {
		return nil, model.NewValidationError("body", "required")
	}
	if in.Amount <= 0 {
		return nil, model.NewValidationError("amount", "must be a positive integer in centavos")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, model.NewValidationError("description", "required")
	}

	items := buildItems(in.Items, description, in.Amount)

	nonce := uuid.NewString
	if b.NewNonce != nil {
		nonce = b.NewNonce
	}

	base := requestOrigin(origin)
	if base == "" {
		base = requestOrigin(b.DefaultOrigin)
	}
	if base == "" {
		base = FallbackOrigin
	}

	req := &CheckoutLinkRequest{
		Handle:      b.Handle,
		RedirectURL: base + b.SuccessPath,
		CancelURL:   base + b.CancelPath,
		OrderNSU:    nonce(),
		Items:       items,
	}

	res := &BuildResult{Request: req}

	if in.Customer != nil {
		customer, warnings := buildCustomer(in.Customer)
		req.Customer = customer
		res.Warnings = append(res.Warnings, warnings...)
	}

	addr := in.Address
	if addr.IsZero() && in.Customer != nil {
		addr = in.Customer.Address
	}
	if !addr.IsZero() {
		req.Address = buildAddress(addr)
		if req.Address == nil {
			res.Warnings = append(res.Warnings, "address omitted: postal code is not 8 digits")
		}
	}

	return res, nil
}

// buildItems normalizes cart lines. With no lines, a single item covering
// the whole amount is synthesized.
// Blank names fall back to the checkout description.
func buildItems(inputs []model.ItemInput, description string, amount int64) []LinkItem {
	if len(inputs) == 0 {
		return []LinkItem{{Quantity: 1, Price: amount, Description: description}}
	}

	items := make([]LinkItem, 0, len(inputs))
	for _, in := range inputs {
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		quantity := int(decimal.NewFromFloat(qty).Round(0).IntPart())
		if quantity < 1 {
			quantity = 1
		}

		price := model.ToMinorUnits(in.Price)
		if price < 1 {
			price = 1
		}

		desc := strings.TrimSpace(in.Name)
		if desc == "" {
			desc = description
		}

		items = append(items, LinkItem{Quantity: quantity, Price: price, Description: desc})
	}
	return items
}

// buildCustomer copies only non-empty fields; the block is nil when nothing is left.
func buildCustomer(c *model.Customer) (*LinkCustomer, []string) {
	var warnings []string
	out := &LinkCustomer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
	}
	if phone, short := NormalizePhone(c.Phone); phone != "" {
		out.PhoneNumber = phone
		if short {
			warnings = append(warnings, "customer phone has fewer than 10 digits")
		}
	}
	if *out == (LinkCustomer{}) {
		return nil, warnings
	}
	return out, warnings
}

// buildAddress returns nil when the postal code does not normalize to 8 digits.
func buildAddress(a *model.Address) *LinkAddress {
	cep := NormalizePostalCode(a.PostalCode)
	if len(cep) != postalCodeLen {
		return nil
	}

	return &LinkAddress{
		CEP:        cep,
		Number:     strings.TrimSpace(a.Number),
		Complement: complement(a),
	}
}

// complement renders "street, city - STATE", skipping blank parts.
func complement(a *model.Address) string {
	var parts []string
	for _, p := range []string{a.Street, a.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, ", ")
	state := strings.ToUpper(strings.TrimSpace(a.State))
	switch {
	case state == "":
		return out
	case out == "":
		return state
	}
	return out + " - " + state
}

// NormalizeHandle strips whitespace and the leading "$" InfiniteTags are often written with.
func NormalizeHandle(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
}

// NormalizePhone returns "+55DDDNUMBER" and whether the local number looked too
// short (fewer than 10 digits). Empty input yields "".
func NormalizePhone(raw string) (phone string, short bool) {
	digits := onlyDigits(raw)
	if digits == "" {
		return "", false
	}
	short = len(digits) < minPhoneLen
	if !strings.HasPrefix(digits, CountryCode) {
		digits = CountryCode + digits
	}
	return "+" + digits, short
}

// NormalizePostalCode keeps digits and left-pads or truncates to 8.
// Input without digits yields "".
func NormalizePostalCode(raw string) string {
	digits := onlyDigits(raw)
	if digits == "" {
		return ""
	}
	if len(digits) > postalCodeLen {
		return digits[:postalCodeLen]
	}
	return strings.Repeat("0", postalCodeLen-len(digits)) + digits
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// requestOrigin returns scheme://host for a usable http(s) origin, else "".
func requestOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	if strings.IndexFunc(u.Host, unicode.IsSpace) >= 0 {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
