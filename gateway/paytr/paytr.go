package paytr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/murat7074/elisishop/gateway"
)

const (
	apiBaseURL         = "https://www.paytr.com"
	endpointToken      = "/odeme/api/get-token"
	endpointIFrame     = "/odeme/guvenlik"
	defaultCurrency    = "TL"
	defaultTimeout     = 30 * time.Second
	defaultUserName    = "Test User"
	defaultUserAddress = "Test Address"
	defaultUserPhone   = "5555555555"
)

// Gateway implements gateway.PaymentGateway for PayTR's iFrame API
type Gateway struct {
	merchantID   string
	merchantKey  string
	merchantSalt string
	baseURL      string
	client       *http.Client
}

// New creates a new PayTR payment gateway
func New() gateway.PaymentGateway {
	return &Gateway{
		baseURL: apiBaseURL,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Name returns the gateway identifier
func (g *Gateway) Name() string {
	return "paytr"
}

// Initialize sets up the PayTR gateway with merchant credentials
func (g *Gateway) Initialize(conf map[string]string) error {
	g.merchantID = conf["merchantId"]
	g.merchantKey = conf["merchantKey"]
	g.merchantSalt = conf["merchantSalt"]

	if g.merchantID == "" || g.merchantKey == "" || g.merchantSalt == "" {
		return errors.New("paytr: merchantId, merchantKey and merchantSalt are required")
	}

	if baseURL, ok := conf["baseURL"]; ok && baseURL != "" {
		g.baseURL = baseURL
	}

	return nil
}

// CreateCheckout requests an iFrame token from PayTR
func (g *Gateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	if g.merchantKey == "" {
		return nil, gateway.ErrNotConfigured
	}
	if req.Amount <= 0 {
		return nil, errors.New("paytr: amount must be greater than 0")
	}
	if req.Buyer.Email == "" {
		return nil, errors.New("paytr: buyer email is required")
	}
	if req.Buyer.IP == "" {
		return nil, errors.New("paytr: buyer IP is required")
	}

	userBasket, err := buildUserBasket(req.Basket)
	if err != nil {
		return nil, fmt.Errorf("paytr: failed to build basket: %w", err)
	}

	testMode := "0"
	if req.TestMode {
		testMode = "1"
	}

	data := map[string]string{
		"merchant_id":       g.merchantID,
		"user_ip":           req.Buyer.IP,
		"merchant_oid":      req.MerchantOID,
		"email":             req.Buyer.Email,
		"payment_amount":    strconv.FormatInt(req.Amount, 10),
		"user_basket":       userBasket,
		"no_installment":    "0",
		"max_installment":   "0",
		"currency":          currencyOf(req.Currency),
		"test_mode":         testMode,
		"merchant_ok_url":   req.OkURL,
		"merchant_fail_url": req.FailURL,
		"user_name":         userNameOf(req.Buyer),
		"user_address":      userAddressOf(req.Buyer),
		"user_phone":        userPhoneOf(req.Buyer),
	}
	data["paytr_token"] = g.generateCheckoutToken(data)

	response, err := g.sendRequest(ctx, endpointToken, data)
	if err != nil {
		return nil, fmt.Errorf("paytr: failed to get iframe token: %w", err)
	}

	if status, _ := response["status"].(string); status != "success" {
		reason, _ := response["reason"].(string)
		return nil, fmt.Errorf("paytr: token request rejected: %s", reason)
	}

	token, _ := response["token"].(string)
	if token == "" {
		return nil, errors.New("paytr: response did not contain a token")
	}

	return &gateway.CheckoutResult{
		Token:       token,
		RedirectURL: fmt.Sprintf("%s%s/%s", g.baseURL, endpointIFrame, token),
		MerchantOID: req.MerchantOID,
	}, nil
}

// VerifyWebhook authenticates a PayTR payment notification
func (g *Gateway) VerifyWebhook(data map[string]string, headers map[string]string) (*gateway.WebhookResult, error) {
	if g.merchantSalt == "" {
		return nil, gateway.ErrNotConfigured
	}

	merchantOid, ok := data["merchant_oid"]
	if !ok {
		return nil, errors.New("paytr: missing merchant_oid in webhook data")
	}
	status, ok := data["status"]
	if !ok {
		return nil, errors.New("paytr: missing status in webhook data")
	}
	totalAmount, ok := data["total_amount"]
	if !ok {
		return nil, errors.New("paytr: missing total_amount in webhook data")
	}
	hash, ok := data["hash"]
	if !ok {
		return nil, errors.New("paytr: missing hash in webhook data")
	}

	expected := g.generateWebhookHash(merchantOid, status, totalAmount)
	if !hmac.Equal([]byte(hash), []byte(expected)) {
		return nil, gateway.ErrInvalidSignature
	}

	result := &gateway.WebhookResult{
		MerchantOID: merchantOid,
		PaymentID:   merchantOid,
	}
	if transactionID, ok := data["payment_id"]; ok && transactionID != "" {
		result.PaymentID = transactionID
	}
	if amount, err := strconv.ParseInt(totalAmount, 10, 64); err == nil {
		result.Amount = amount
	}

	if status == "success" {
		result.Status = gateway.StatusSuccess
	} else {
		result.Status = gateway.StatusFailed
		result.FailReason = data["failed_reason_msg"]
	}

	return result, nil
}

// buildUserBasket encodes basket lines as PayTR's nested JSON array:
// [[name, unit price in kurus, quantity], ...]
func buildUserBasket(lines []gateway.BasketLine) (string, error) {
	if len(lines) == 0 {
		return "", errors.New("basket is empty")
	}

	basket := make([][]any, 0, len(lines))
	for _, line := range lines {
		basket = append(basket, []any{line.Name, line.Price, line.Amount})
	}

	jsonData, err := json.Marshal(basket)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func currencyOf(currency string) string {
	switch strings.ToUpper(currency) {
	case "", "TRY", "TL":
		return defaultCurrency
	case "USD":
		return "USD"
	case "EUR":
		return "EUR"
	default:
		return defaultCurrency
	}
}

func userNameOf(b gateway.BuyerInfo) string {
	if b.Name != "" {
		return b.Name
	}
	return defaultUserName
}

func userAddressOf(b gateway.BuyerInfo) string {
	if b.Address != "" {
		return fmt.Sprintf("%s, %s, %s", b.Address, b.City, b.Country)
	}
	return defaultUserAddress
}

func userPhoneOf(b gateway.BuyerInfo) string {
	if b.Phone != "" {
		return b.Phone
	}
	return defaultUserPhone
}

// Hash generation

// generateCheckoutToken builds the paytr_token for the get-token request:
// HMAC-SHA256 over merchant_id + user_ip + merchant_oid + email +
// payment_amount + user_basket + no_installment + currency + test_mode +
// merchant_salt, keyed with merchant_key, base64 encoded
func (g *Gateway) generateCheckoutToken(data map[string]string) string {
	hashStr := data["merchant_id"] + data["user_ip"] + data["merchant_oid"] + data["email"] +
		data["payment_amount"] + data["user_basket"] + data["no_installment"] +
		data["currency"] + data["test_mode"] + g.merchantSalt

	return hmacBase64(g.merchantKey, hashStr)
}

// generateWebhookHash builds the expected notification hash:
// HMAC-SHA256 over merchant_oid + merchant_salt + status + total_amount,
// keyed with merchant_salt, base64 encoded
func (g *Gateway) generateWebhookHash(merchantOid, status, totalAmount string) string {
	hashStr := merchantOid + g.merchantSalt + status + totalAmount
	return hmacBase64(g.merchantSalt, hashStr)
}

func hmacBase64(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// sendRequest posts URL-encoded form data to the PayTR API
func (g *Gateway) sendRequest(ctx context.Context, endpoint string, data map[string]string) (map[string]any, error) {
	formData := url.Values{}
	for key, value := range data {
		formData.Set(key, value)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+endpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Elisishop/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d, response: %s", resp.StatusCode, string(body))
	}

	var responseData map[string]any
	if err := json.Unmarshal(body, &responseData); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return responseData, nil
}
