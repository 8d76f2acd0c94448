package model

import (
	"testing"
)

func TestOrderTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		wantErr bool
	}{
		{"pending to paid", OrderPending, OrderPaid, false},
		{"pending to failed", OrderPending, OrderFailed, false},
		{"same state is a no-op", OrderPaid, OrderPaid, false},
		{"paid cannot fail", OrderPaid, OrderFailed, true},
		{"failed cannot be resurrected", OrderFailed, OrderPending, true},
		{"failed cannot be paid", OrderFailed, OrderPaid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{ID: "o1", Status: tt.from}
			err := o.Transition(tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Transition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && o.Status != tt.from {
				t.Errorf("Status = %s after rejected transition, want %s", o.Status, tt.from)
			}
		})
	}
}

func TestProductKindIsCourse(t *testing.T) {
	tests := []struct {
		kind ProductKind
		want bool
	}{
		{KindCourse, true},
		{"Mentoring", true},
		{KindProduct, false},
		{KindService, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.kind.IsCourse(); got != tt.want {
			t.Errorf("ProductKind(%q).IsCourse() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestPaymentMethodFromCapture(t *testing.T) {
	tests := []struct {
		capture string
		want    PaymentMethod
		label   string
	}{
		{"pix", PaymentPix, "Pix"},
		{"credit_card", PaymentCard, "Cartão de crédito"},
		{"CARD", PaymentCard, "Cartão de crédito"},
		{"boleto", "boleto", "boleto"},
	}
	for _, tt := range tests {
		got := PaymentMethodFromCapture(tt.capture)
		if got != tt.want {
			t.Errorf("PaymentMethodFromCapture(%q) = %q, want %q", tt.capture, got, tt.want)
		}
		if got.Label() != tt.label {
			t.Errorf("Label() = %q, want %q", got.Label(), tt.label)
		}
	}
}

func TestAddressOneLine(t *testing.T) {
	a := &Address{Street: "Rua A", Number: " 10 ", City: "São Paulo", State: "sp", PostalCode: "01000-000"}
	want := "Rua A, 10 - São Paulo/SP - CEP 01000-000"
	if got := a.OneLine(); got != want {
		t.Errorf("OneLine() = %q, want %q", got, want)
	}

	var nilAddr *Address
	if got := nilAddr.OneLine(); got != "" {
		t.Errorf("nil OneLine() = %q, want empty", got)
	}
}

func TestConfirmationGuardKey(t *testing.T) {
	if got := (Confirmation{TransactionNSU: "t1", OrderNSU: "o1"}).GuardKey(); got != "txn:t1" {
		t.Errorf("GuardKey() = %q, want txn:t1", got)
	}
	if got := (Confirmation{OrderNSU: "o1"}).GuardKey(); got != "order:o1" {
		t.Errorf("GuardKey() = %q, want order:o1", got)
	}
	if got := (Confirmation{}).GuardKey(); got != "" {
		t.Errorf("GuardKey() = %q, want empty", got)
	}
}

func TestTaskRequestTotal(t *testing.T) {
	amount := int64(7777)
	r := &TaskRequest{
		Items: []TaskItem{{Name: "A", Quantity: 2, Price: FromMinorUnits(1500)}, {Name: "B", Price: FromMinorUnits(1000)}},
	}
	if got := r.Total(); got != 4000 {
		t.Errorf("Total() = %d, want 4000", got)
	}
	r.Amount = &amount
	if got := r.Total(); got != 7777 {
		t.Errorf("Total() with confirmed amount = %d, want 7777", got)
	}
}
