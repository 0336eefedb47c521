package iyzico

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/murat7074/elisishop/gateway"
)

const (
	apiSandboxURL    = "https://sandbox-api.iyzipay.com"
	apiProductionURL = "https://api.iyzipay.com"

	endpointCheckoutForm = "/payment/iyzipos/checkoutform/initialize/auth/ecom"

	defaultLocale   = "tr"
	defaultCurrency = "TRY"
	defaultTimeout  = 30 * time.Second
)

// Gateway implements gateway.PaymentGateway for Iyzico's checkout form API
type Gateway struct {
	apiKey    string
	secretKey string
	baseURL   string
	client    *http.Client
}

// New creates a new Iyzico payment gateway
func New() gateway.PaymentGateway {
	return &Gateway{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Name returns the gateway identifier
func (g *Gateway) Name() string {
	return "iyzico"
}

// Initialize sets up the Iyzico gateway with API credentials
func (g *Gateway) Initialize(conf map[string]string) error {
	g.apiKey = conf["apiKey"]
	g.secretKey = conf["secretKey"]

	if g.apiKey == "" || g.secretKey == "" {
		return errors.New("iyzico: apiKey and secretKey are required")
	}

	if baseURL, ok := conf["baseURL"]; ok && baseURL != "" {
		g.baseURL = baseURL
	} else if conf["testMode"] == "false" {
		g.baseURL = apiProductionURL
	} else {
		g.baseURL = apiSandboxURL
	}

	return nil
}

// CreateCheckout initializes an Iyzico checkout form session
func (g *Gateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	if g.apiKey == "" {
		return nil, gateway.ErrNotConfigured
	}
	if req.Amount <= 0 {
		return nil, errors.New("iyzico: amount must be greater than 0")
	}
	if req.Buyer.Email == "" {
		return nil, errors.New("iyzico: buyer email is required")
	}
	if len(req.Basket) == 0 {
		return nil, errors.New("iyzico: basket is empty")
	}

	price := formatAmount(req.Amount)
	address := map[string]any{
		"contactName": buyerName(req.Buyer),
		"city":        nonEmpty(req.Buyer.City, "Istanbul"),
		"country":     nonEmpty(req.Buyer.Country, "Turkey"),
		"address":     nonEmpty(req.Buyer.Address, "N/A"),
		"zipCode":     req.Buyer.ZipCode,
	}

	basketItems := make([]map[string]any, 0, len(req.Basket))
	for i, line := range req.Basket {
		// Iyzico requires per-item price, quantity is flattened into it
		basketItems = append(basketItems, map[string]any{
			"id":        fmt.Sprintf("%s-%d", req.MerchantOID, i),
			"name":      line.Name,
			"category1": "Urunler",
			"itemType":  "PHYSICAL",
			"price":     formatAmount(line.Price * int64(line.Amount)),
		})
	}

	requestData := map[string]any{
		"locale":              defaultLocale,
		"conversationId":      req.MerchantOID,
		"price":               price,
		"paidPrice":           price,
		"currency":            currencyOf(req.Currency),
		"basketId":            req.MerchantOID,
		"paymentGroup":        "PRODUCT",
		"callbackUrl":         req.OkURL,
		"enabledInstallments": []int{1},
		"buyer": map[string]any{
			"id":                  nonEmpty(req.Buyer.UserID, "guest"),
			"name":                buyerName(req.Buyer),
			"surname":             buyerSurname(req.Buyer),
			"email":               req.Buyer.Email,
			"identityNumber":      "11111111111",
			"registrationAddress": nonEmpty(req.Buyer.Address, "N/A"),
			"ip":                  req.Buyer.IP,
			"city":                nonEmpty(req.Buyer.City, "Istanbul"),
			"country":             nonEmpty(req.Buyer.Country, "Turkey"),
		},
		"shippingAddress": address,
		"billingAddress":  address,
		"basketItems":     basketItems,
	}

	response, err := g.sendRequest(ctx, endpointCheckoutForm, requestData)
	if err != nil {
		return nil, fmt.Errorf("iyzico: checkout form initialization failed: %w", err)
	}

	if status, _ := response["status"].(string); status != "success" {
		errMsg, _ := response["errorMessage"].(string)
		return nil, fmt.Errorf("iyzico: checkout form rejected: %s", errMsg)
	}

	token, _ := response["token"].(string)
	pageURL, _ := response["paymentPageUrl"].(string)
	if token == "" {
		return nil, errors.New("iyzico: response did not contain a token")
	}

	return &gateway.CheckoutResult{
		Token:       token,
		RedirectURL: pageURL,
		MerchantOID: req.MerchantOID,
	}, nil
}

// VerifyWebhook authenticates an Iyzico payment notification via the
// X-Iyz-Signature header
func (g *Gateway) VerifyWebhook(data map[string]string, headers map[string]string) (*gateway.WebhookResult, error) {
	if g.secretKey == "" {
		return nil, gateway.ErrNotConfigured
	}

	eventType, ok := data["iyziEventType"]
	if !ok {
		return nil, errors.New("iyzico: missing iyziEventType in webhook data")
	}
	token, ok := data["token"]
	if !ok {
		return nil, errors.New("iyzico: missing token in webhook data")
	}
	conversationID, ok := data["paymentConversationId"]
	if !ok {
		return nil, errors.New("iyzico: missing paymentConversationId in webhook data")
	}

	signature := headers["X-Iyz-Signature"]
	if signature == "" {
		return nil, errors.New("iyzico: missing X-Iyz-Signature header")
	}

	expected := g.generateWebhookSignature(eventType, token)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, gateway.ErrInvalidSignature
	}

	result := &gateway.WebhookResult{
		MerchantOID: conversationID,
		PaymentID:   data["paymentId"],
	}
	if result.PaymentID == "" {
		result.PaymentID = token
	}
	if amount, err := strconv.ParseInt(data["paidPrice"], 10, 64); err == nil {
		result.Amount = amount
	}

	if strings.EqualFold(data["status"], "SUCCESS") {
		result.Status = gateway.StatusSuccess
	} else {
		result.Status = gateway.StatusFailed
		result.FailReason = data["errorMessage"]
	}

	return result, nil
}

// sendRequest posts JSON to the Iyzico API with the IYZWS auth header
func (g *Gateway) sendRequest(ctx context.Context, endpoint string, requestData map[string]any) (map[string]any, error) {
	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+endpoint, strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", g.generateAuthString(endpoint, string(jsonData)))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var responseData map[string]any
	if err := json.Unmarshal(body, &responseData); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return responseData, nil
}

// generateAuthString generates the Iyzico authentication string using HMAC-SHA1
func (g *Gateway) generateAuthString(uri string, body string) string {
	hash := hmac.New(sha1.New, []byte(g.secretKey))
	hash.Write([]byte(g.apiKey + uri + sortAndConcatRequest(body) + g.secretKey))
	hmacDigest := base64.StdEncoding.EncodeToString(hash.Sum(nil))

	return fmt.Sprintf("IYZWS %s:%s", g.apiKey, hmacDigest)
}

// generateWebhookSignature builds the expected notification signature:
// HMAC-SHA1 over iyziEventType + token, keyed with the secret key
func (g *Gateway) generateWebhookSignature(eventType, token string) string {
	hash := hmac.New(sha1.New, []byte(g.secretKey))
	hash.Write([]byte(eventType + token))
	return base64.StdEncoding.EncodeToString(hash.Sum(nil))
}

// sortAndConcatRequest sorts and concatenates request fields for HMAC calculation
func sortAndConcatRequest(jsonString string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(jsonString), &data); err != nil {
		return ""
	}

	var keys []string
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var result string
	for _, key := range keys {
		value := fmt.Sprintf("%v", data[key])
		if value != "" && value != "[]" && value != "{}" {
			result += key + value
		}
	}

	return result
}

// formatAmount converts kurus to Iyzico's decimal string format
func formatAmount(kurus int64) string {
	return strconv.FormatFloat(float64(kurus)/100, 'f', 2, 64)
}

func currencyOf(currency string) string {
	switch strings.ToUpper(currency) {
	case "", "TL", "TRY":
		return defaultCurrency
	default:
		return strings.ToUpper(currency)
	}
}

func buyerName(b gateway.BuyerInfo) string {
	if b.Name == "" {
		return "Misafir"
	}
	return b.Name
}

func buyerSurname(b gateway.BuyerInfo) string {
	parts := strings.Fields(b.Name)
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return "Musteri"
}

func nonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
