package infinitepay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"checkout-relay/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{
		Handle:        "$mystore",
		BaseURL:       srv.URL,
		DefaultOrigin: "https://loja.example.com",
		SuccessPath:   "/checkout/success",
		CancelPath:    "/checkout/cancel",
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewNonce:      func() string { return "nonce-42" },
	})
	return c, &calls
}

func validInput() *model.CheckoutInput {
	return &model.CheckoutInput{Amount: 5000, Description: "Curso"}
}

func TestCreateLinkSuccess(t *testing.T) {
	var got CheckoutLinkRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathCheckoutLinks {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"https://checkout.infinitepay.io/mystore/abc"}`))
	})

	link, err := c.CreateLink(context.Background(), "", validInput())
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.URL != "https://checkout.infinitepay.io/mystore/abc" {
		t.Errorf("URL = %q", link.URL)
	}
	if link.OrderNSU != "nonce-42" {
		t.Errorf("OrderNSU = %q, want nonce-42", link.OrderNSU)
	}
	if got.Handle != "mystore" {
		t.Errorf("sent handle = %q, want mystore", got.Handle)
	}
	if got.RedirectURL != "https://loja.example.com/checkout/success" {
		t.Errorf("sent redirect_url = %q", got.RedirectURL)
	}
}

func TestCreateLinkLegacyLinkField(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"link":"https://checkout.infinitepay.io/x"}`))
	})
	link, err := c.CreateLink(context.Background(), "", validInput())
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.URL != "https://checkout.infinitepay.io/x" {
		t.Errorf("URL = %q", link.URL)
	}
}

func TestCreateLinkErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "422 with field errors",
			status:     422,
			body:       `{"message":"Unprocessable","errors":{"items":["price must be positive"]}}`,
			wantStatus: 422,
			wantCode:   "PROVIDER_REJECTED",
			wantMsg:    "items: price must be positive",
		},
		{
			name:       "422 with message only",
			status:     422,
			body:       `{"message":"handle not found"}`,
			wantStatus: 422,
			wantCode:   "PROVIDER_REJECTED",
			wantMsg:    "handle not found",
		},
		{
			name:       "422 with list errors",
			status:     422,
			body:       `{"errors":[{"message":"invalid cep"}]}`,
			wantStatus: 422,
			wantCode:   "PROVIDER_REJECTED",
			wantMsg:    "invalid cep",
		},
		{
			name:       "422 unparseable",
			status:     422,
			body:       `<html>oops</html>`,
			wantStatus: 422,
			wantCode:   "PROVIDER_REJECTED",
			wantMsg:    "invalid data",
		},
		{
			name:       "400 passthrough",
			status:     400,
			body:       `{"error":"bad handle"}`,
			wantStatus: 400,
			wantCode:   "PROVIDER_REJECTED",
			wantMsg:    "bad handle",
		},
		{
			name:       "404 unparseable keeps status",
			status:     404,
			body:       `not found`,
			wantStatus: 404,
			wantCode:   "PROVIDER_REJECTED",
		},
		{
			name:       "500 becomes integration error",
			status:     500,
			body:       `{"message":"boom"}`,
			wantStatus: 500,
			wantCode:   "INTEGRATION_ERROR",
		},
		{
			name:       "2xx without url",
			status:     200,
			body:       `{"id":"abc"}`,
			wantStatus: 500,
			wantCode:   "INTEGRATION_ERROR",
		},
		{
			name:       "2xx with relative url",
			status:     200,
			body:       `{"url":"/checkout/abc"}`,
			wantStatus: 500,
			wantCode:   "INTEGRATION_ERROR",
		},
		{
			name:       "2xx invalid json",
			status:     200,
			body:       `not json`,
			wantStatus: 500,
			wantCode:   "INTEGRATION_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := c.CreateLink(context.Background(), "", validInput())
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error type = %T, want *model.APIError", err)
			}
			if apiErr.StatusCode != tc.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tc.wantStatus)
			}
			if apiErr.Code != tc.wantCode {
				t.Errorf("Code = %s, want %s", apiErr.Code, tc.wantCode)
			}
			if tc.wantMsg != "" && apiErr.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tc.wantMsg)
			}
		})
	}
}

func TestCreateLinkMissingHandle(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"https://x.example"}`))
	})
	c.builder.Handle = ""

	if err := c.CheckConfig(); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("CheckConfig = %v, want configuration error", err)
	}
	_, err := c.CreateLink(context.Background(), "", validInput())
	if !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("CreateLink error = %v, want configuration error", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestCreateLinkValidationBeforeCall(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.CreateLink(context.Background(), "", &model.CheckoutInput{Amount: 0, Description: "x"})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("error = %v, want invalid request", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestCreateLinkTransportFailure(t *testing.T) {
	c := New(Config{Handle: "mystore", BaseURL: "http://127.0.0.1:1", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	_, err := c.CreateLink(context.Background(), "", validInput())
	if !errors.Is(err, model.ErrIntegration) {
		t.Errorf("error = %v, want integration error", err)
	}
}
