package shopier

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/murat7074/elisishop/gateway"
)

const (
	paymentURL = "https://www.shopier.com/ShowProduct/api_pay4.php"

	// Shopier currency codes
	currencyTL  = "0"
	currencyUSD = "1"
	currencyEUR = "2"
)

// Gateway implements gateway.PaymentGateway for Shopier's form-post API.
// Shopier has no server-side session endpoint: the checkout is a signed
// form the buyer's browser posts to Shopier directly.
type Gateway struct {
	apiKey       string
	apiSecret    string
	websiteIndex string
	formURL      string
}

// New creates a new Shopier payment gateway
func New() gateway.PaymentGateway {
	return &Gateway{
		formURL: paymentURL,
	}
}

// Name returns the gateway identifier
func (g *Gateway) Name() string {
	return "shopier"
}

// Initialize sets up the Shopier gateway with API credentials
func (g *Gateway) Initialize(conf map[string]string) error {
	g.apiKey = conf["apiKey"]
	g.apiSecret = conf["apiSecret"]
	g.websiteIndex = conf["websiteIndex"]

	if g.apiKey == "" || g.apiSecret == "" {
		return errors.New("shopier: apiKey and apiSecret are required")
	}
	if g.websiteIndex == "" {
		g.websiteIndex = "1"
	}

	if formURL, ok := conf["formURL"]; ok && formURL != "" {
		g.formURL = formURL
	}

	return nil
}

// CreateCheckout builds the signed form fields for Shopier's payment page.
// No network call is made; the browser submits the form.
func (g *Gateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	if g.apiKey == "" {
		return nil, gateway.ErrNotConfigured
	}
	if req.Amount <= 0 {
		return nil, errors.New("shopier: amount must be greater than 0")
	}
	if req.Buyer.Email == "" {
		return nil, errors.New("shopier: buyer email is required")
	}

	randomNr, err := randomNumber()
	if err != nil {
		return nil, fmt.Errorf("shopier: failed to generate random number: %w", err)
	}

	totalValue := formatAmount(req.Amount)
	currency := currencyOf(req.Currency)

	name, surname := splitName(req.Buyer.Name)

	fields := map[string]string{
		"API_key":           g.apiKey,
		"website_index":     g.websiteIndex,
		"platform_order_id": req.MerchantOID,
		"product_name":      productName(req.Basket),
		"product_type":      "0",
		"buyer_name":        name,
		"buyer_surname":     surname,
		"buyer_email":       req.Buyer.Email,
		"buyer_phone":       req.Buyer.Phone,
		"buyer_address":     req.Buyer.Address,
		"buyer_city":        req.Buyer.City,
		"buyer_country":     req.Buyer.Country,
		"buyer_postcode":    req.Buyer.ZipCode,
		"billing_address":   req.Buyer.Address,
		"billing_city":      req.Buyer.City,
		"billing_country":   req.Buyer.Country,
		"billing_postcode":  req.Buyer.ZipCode,
		"shipping_address":  req.Buyer.Address,
		"shipping_city":     req.Buyer.City,
		"shipping_country":  req.Buyer.Country,
		"shipping_postcode": req.Buyer.ZipCode,
		"total_order_value": totalValue,
		"currency":          currency,
		"platform":          "0",
		"is_in_frame":       "0",
		"current_language":  "0",
		"modul_version":     "1.0.4",
		"random_nr":         randomNr,
	}
	fields["signature"] = g.signCheckout(randomNr, req.MerchantOID, totalValue, currency)

	return &gateway.CheckoutResult{
		RedirectURL: g.formURL,
		FormFields:  fields,
		MerchantOID: req.MerchantOID,
	}, nil
}

// VerifyWebhook authenticates a Shopier payment callback
func (g *Gateway) VerifyWebhook(data map[string]string, headers map[string]string) (*gateway.WebhookResult, error) {
	if g.apiSecret == "" {
		return nil, gateway.ErrNotConfigured
	}

	orderID, ok := data["platform_order_id"]
	if !ok {
		return nil, errors.New("shopier: missing platform_order_id in webhook data")
	}
	randomNr, ok := data["random_nr"]
	if !ok {
		return nil, errors.New("shopier: missing random_nr in webhook data")
	}
	signature, ok := data["signature"]
	if !ok {
		return nil, errors.New("shopier: missing signature in webhook data")
	}

	expected := g.signWebhook(randomNr, orderID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, gateway.ErrInvalidSignature
	}

	result := &gateway.WebhookResult{
		MerchantOID: orderID,
		PaymentID:   data["payment_id"],
	}
	if result.PaymentID == "" {
		result.PaymentID = orderID
	}
	if total, err := strconv.ParseFloat(data["total_order_value"], 64); err == nil {
		result.Amount = int64(total * 100)
	}

	if strings.EqualFold(data["status"], "success") {
		result.Status = gateway.StatusSuccess
	} else {
		result.Status = gateway.StatusFailed
		result.FailReason = data["status"]
	}

	return result, nil
}

// signCheckout signs the outgoing payment form:
// HMAC-SHA256 over random_nr + platform_order_id + total_order_value +
// currency, keyed with the API secret, base64 encoded
func (g *Gateway) signCheckout(randomNr, orderID, totalValue, currency string) string {
	return hmacBase64(g.apiSecret, randomNr+orderID+totalValue+currency)
}

// signWebhook builds the expected callback signature:
// HMAC-SHA256 over random_nr + platform_order_id, keyed with the API secret
func (g *Gateway) signWebhook(randomNr, orderID string) string {
	return hmacBase64(g.apiSecret, randomNr+orderID)
}

func hmacBase64(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func randomNumber() (string, error) {
	// Shopier expects a 6-digit random number
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func formatAmount(kurus int64) string {
	return strconv.FormatFloat(float64(kurus)/100, 'f', 2, 64)
}

func currencyOf(currency string) string {
	switch strings.ToUpper(currency) {
	case "USD":
		return currencyUSD
	case "EUR":
		return currencyEUR
	default:
		return currencyTL
	}
}

// productName joins basket line names into Shopier's single product label
func productName(lines []gateway.BasketLine) string {
	if len(lines) == 0 {
		return "Siparis"
	}
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, line.Name)
	}
	joined := strings.Join(names, ", ")
	if len(joined) > 100 {
		joined = joined[:97] + "..."
	}
	return joined
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "Misafir", "Musteri"
	case 1:
		return parts[0], "Musteri"
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
