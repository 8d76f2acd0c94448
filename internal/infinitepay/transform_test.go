package infinitepay

import (
	"testing"

	"github.com/shopspring/decimal"

	"checkout-relay/internal/model"
)

func newTestBuilder() *Builder {
	return &Builder{
		Handle:        "mystore",
		DefaultOrigin: "https://loja.example.com",
		SuccessPath:   "/checkout/success",
		CancelPath:    "/checkout/cancel",
		NewNonce:      func() string { return "nonce-1" },
	}
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		in   *model.CheckoutInput
	}{
		{name: "nil input", in: nil},
		{name: "zero amount", in: &model.CheckoutInput{Amount: 0, Description: "x"}},
		{name: "negative amount", in: &model.CheckoutInput{Amount: -10, Description: "x"}},
		{name: "blank description", in: &model.CheckoutInput{Amount: 100, Description: "   "}},
	}

	b := newTestBuilder()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Build("", tc.in)
			if err == nil {
				t.Fatal("expected error")
			}
			apiErr, ok := err.(*model.APIError)
			if !ok {
				t.Fatalf("error type = %T, want *model.APIError", err)
			}
			if apiErr.StatusCode != 400 {
				t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
			}
		})
	}
}

func TestBuildSynthesizesSingleItem(t *testing.T) {
	res, err := newTestBuilder().Build("", &model.CheckoutInput{Amount: 5000, Description: "Curso de bordado"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	items := res.Request.Items
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].Price != 5000 || items[0].Quantity != 1 {
		t.Errorf("item = %+v, want price 5000 qty 1", items[0])
	}
	if items[0].Description != "Curso de bordado" {
		t.Errorf("description = %q", items[0].Description)
	}
}

func TestBuildItemsNormalization(t *testing.T) {
	in := &model.CheckoutInput{
		Amount:      1000,
		Description: "Pedido",
		Items: []model.ItemInput{
			{Name: "Linha", Price: decimal.RequireFromString("12.5"), Quantity: 2},
			{Name: "", Price: decimal.Zero, Quantity: 0},
			{Name: "Agulha", Price: decimal.RequireFromString("0.004"), Quantity: -3},
			{Name: "Tecido", Price: decimal.RequireFromString("9.999"), Quantity: 1.6},
		},
	}

	res, err := newTestBuilder().Build("", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []LinkItem{
		{Quantity: 2, Price: 1250, Description: "Linha"},
		{Quantity: 1, Price: 1, Description: "Pedido"},
		{Quantity: 1, Price: 1, Description: "Agulha"},
		{Quantity: 2, Price: 1000, Description: "Tecido"},
	}
	if len(res.Request.Items) != len(want) {
		t.Fatalf("len(items) = %d, want %d", len(res.Request.Items), len(want))
	}
	for i, got := range res.Request.Items {
		if got != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, got, want[i])
		}
		if got.Quantity < 1 || got.Price < 1 {
			t.Errorf("items[%d] violates minimums: %+v", i, got)
		}
	}
}

func TestBuildRedirects(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		wantSuccess string
	}{
		{"origin header", "https://shop.example.org", "https://shop.example.org/checkout/success"},
		{"origin with path", "https://shop.example.org/some/page", "https://shop.example.org/checkout/success"},
		{"no origin", "", "https://loja.example.com/checkout/success"},
		{"null origin", "null", "https://loja.example.com/checkout/success"},
		{"non http origin", "file:///tmp", "https://loja.example.com/checkout/success"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := newTestBuilder().Build(tc.origin, &model.CheckoutInput{Amount: 100, Description: "x"})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if res.Request.RedirectURL != tc.wantSuccess {
				t.Errorf("RedirectURL = %q, want %q", res.Request.RedirectURL, tc.wantSuccess)
			}
		})
	}
}

func TestBuildRedirectsWithoutDefaultOrigin(t *testing.T) {
	tests := []struct {
		name          string
		defaultOrigin string
	}{
		{"empty", ""},
		{"relative", "/loja"},
		{"null", "null"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBuilder()
			b.DefaultOrigin = tc.defaultOrigin
			res, err := b.Build("", &model.CheckoutInput{Amount: 100, Description: "x"})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if want := FallbackOrigin + "/checkout/success"; res.Request.RedirectURL != want {
				t.Errorf("RedirectURL = %q, want %q", res.Request.RedirectURL, want)
			}
			if want := FallbackOrigin + "/checkout/cancel"; res.Request.CancelURL != want {
				t.Errorf("CancelURL = %q, want %q", res.Request.CancelURL, want)
			}
		})
	}
}

func TestComplement(t *testing.T) {
	tests := []struct {
		name string
		addr model.Address
		want string
	}{
		{"all parts", model.Address{Street: "Rua A", City: "Recife", State: "pe"}, "Rua A, Recife - PE"},
		{"no state", model.Address{Street: "Rua A", City: "Recife"}, "Rua A, Recife"},
		{"state only", model.Address{State: " rj "}, "RJ"},
		{"no city", model.Address{Street: "Rua A", State: "SP"}, "Rua A - SP"},
		{"blank", model.Address{Street: " "}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := complement(&tc.addr); got != tc.want {
				t.Errorf("complement() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildRequestFields(t *testing.T) {
	in := &model.CheckoutInput{
		Amount:      2500,
		Description: "Pedido",
		Customer: &model.Customer{
			Name:  " Maria ",
			Email: "maria@example.com",
			Phone: "(11) 99999-8888",
			Address: &model.Address{
				Street:     "Rua A",
				Number:     "10",
				City:       "São Paulo",
				State:      "sp",
				PostalCode: "01000-000",
			},
		},
	}

	res, err := newTestBuilder().Build("", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	req := res.Request

	if req.Handle != "mystore" {
		t.Errorf("Handle = %q", req.Handle)
	}
	if req.OrderNSU != "nonce-1" {
		t.Errorf("OrderNSU = %q, want nonce-1", req.OrderNSU)
	}
	if req.Customer == nil {
		t.Fatal("Customer is nil")
	}
	if req.Customer.Name != "Maria" || req.Customer.PhoneNumber != "+5511999998888" {
		t.Errorf("Customer = %+v", req.Customer)
	}
	if req.Address == nil {
		t.Fatal("Address is nil")
	}
	if req.Address.CEP != "01000000" || req.Address.Number != "10" {
		t.Errorf("Address = %+v", req.Address)
	}
	if req.Address.Complement != "Rua A, São Paulo - SP" {
		t.Errorf("Complement = %q", req.Address.Complement)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
}

func TestBuildOmitsEmptyBlocks(t *testing.T) {
	in := &model.CheckoutInput{
		Amount:      100,
		Description: "x",
		Customer:    &model.Customer{Name: "  "},
		Address:     &model.Address{Street: "Rua B"},
	}

	res, err := newTestBuilder().Build("", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Request.Customer != nil {
		t.Errorf("Customer = %+v, want nil", res.Request.Customer)
	}
	if res.Request.Address != nil {
		t.Errorf("Address = %+v, want nil", res.Request.Address)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one address warning", res.Warnings)
	}
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"01000-000", "01000000"},
		{"123", "00000123"},
		{"123456789", "12345678"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range tests {
		if got := NormalizePostalCode(tc.in); got != tc.want {
			t.Errorf("NormalizePostalCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		wantShort bool
	}{
		{"11999998888", "+5511999998888", false},
		{"(11) 99999-8888", "+5511999998888", false},
		{"5511999998888", "+5511999998888", false},
		{"+55 11 99999-8888", "+5511999998888", false},
		{"99998888", "+5599998888", true},
		{"", "", false},
	}
	for _, tc := range tests {
		got, short := NormalizePhone(tc.in)
		if got != tc.want || short != tc.wantShort {
			t.Errorf("NormalizePhone(%q) = %q, %v, want %q, %v", tc.in, got, short, tc.want, tc.wantShort)
		}
	}
}

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"$mytag", "mytag"},
		{"mytag", "mytag"},
		{"  $mytag ", "mytag"},
		{"", ""},
		{"$", ""},
	}
	for _, tc := range tests {
		if got := NormalizeHandle(tc.in); got != tc.want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
