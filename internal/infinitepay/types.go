package infinitepay

import "encoding/json"

// =============================================================================
// INFINITEPAY CHECKOUT LINK TYPES
// =============================================================================
//
// The public checkout-links endpoint creates a hosted payment page for a
// merchant identified by its InfiniteTag handle. Amounts are integer
// centavos. After payment the buyer is redirected to redirect_url with
// receipt_url, order_nsu, slug, capture_method, transaction_nsu and amount
// appended as query parameters.
// =============================================================================

// CheckoutLinkRequest is the body of POST /invoices/public/checkout/links.
type CheckoutLinkRequest struct {
	Handle      string        `json:"handle"`
	RedirectURL string        `json:"redirect_url"`
	CancelURL   string        `json:"cancel_url,omitempty"`
	OrderNSU    string        `json:"order_nsu"`
	Items       []LinkItem    `json:"items"`
	Customer    *LinkCustomer `json:"customer,omitempty"`
	Address     *LinkAddress  `json:"address,omitempty"`
}

// LinkItem is one priced line on the hosted checkout. Price is in centavos.
type LinkItem struct {
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

// LinkCustomer pre-fills the payer form. PhoneNumber is "+55DDDNUMBER".
type LinkCustomer struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// LinkAddress pre-fills the delivery address. CEP is exactly 8 digits.
type LinkAddress struct {
	CEP        string `json:"cep"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
}

// CheckoutLinkResponse is the success body. Older API versions used "link".
type CheckoutLinkResponse struct {
	URL  string `json:"url"`
	Link string `json:"link,omitempty"`
}

// ErrorResponse covers the error shapes the API returns.
// Errors may be a field→messages map or a list; see firstMessage.
type ErrorResponse struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}
