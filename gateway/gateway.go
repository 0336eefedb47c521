package gateway

import (
	"context"
	"errors"
)

var (
	// ErrInvalidSignature is returned when a webhook's hash does not match
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrNotConfigured is returned when a gateway is used before Initialize
	ErrNotConfigured = errors.New("gateway is not configured")
)

// BuyerInfo identifies the paying customer
type BuyerInfo struct {
	UserID  string
	Name    string
	Email   string
	IP      string
	Address string
	City    string
	Phone   string
	ZipCode string
	Country string
}

// BasketLine is one basket entry sent to the gateway:
// product name, unit price in the smallest currency unit, quantity
type BasketLine struct {
	Name   string
	Price  int64
	Amount int
}

// CheckoutRequest carries everything a gateway needs to open a payment page
type CheckoutRequest struct {
	MerchantOID string
	Amount      int64 // smallest currency unit (kurus)
	Currency    string
	Buyer       BuyerInfo
	Basket      []BasketLine
	OkURL       string
	FailURL     string
	TestMode    bool
}

// CheckoutResult is what the frontend needs to continue the payment.
// Token-based gateways fill Token and RedirectURL; form-post gateways
// fill RedirectURL and FormFields for a self-submitting form.
type CheckoutResult struct {
	Token       string            `json:"token,omitempty"`
	RedirectURL string            `json:"redirectURL,omitempty"`
	FormFields  map[string]string `json:"formFields,omitempty"`
	MerchantOID string            `json:"merchantOID"`
}

// WebhookResult is the verified outcome of a payment notification
type WebhookResult struct {
	MerchantOID string
	PaymentID   string
	Status      string // "success" or "failed"
	Amount      int64
	FailReason  string
}

// Webhook status values
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// PaymentGateway is the interface all payment gateways must implement
type PaymentGateway interface {
	// Name returns the registered gateway name
	Name() string

	// Initialize sets up the gateway with credentials and URLs
	Initialize(conf map[string]string) error

	// CreateCheckout opens a payment session with the gateway and returns
	// the token or redirect URL the frontend needs
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)

	// VerifyWebhook authenticates an incoming payment notification and
	// extracts its outcome. Returns ErrInvalidSignature when the hash
	// does not match.
	VerifyWebhook(data map[string]string, headers map[string]string) (*WebhookResult, error)
}
