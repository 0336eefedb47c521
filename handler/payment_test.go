package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murat7074/elisishop/checkout"
	"github.com/murat7074/elisishop/gateway"
	"github.com/murat7074/elisishop/infra/config"
	"github.com/murat7074/elisishop/notify"
	"github.com/murat7074/elisishop/store"
)

type fakeGW struct {
	webhookResult *gateway.WebhookResult
	webhookErr    error
}

func (f *fakeGW) Name() string                            { return "testpay" }
func (f *fakeGW) Initialize(conf map[string]string) error { return nil }

func (f *fakeGW) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	return &gateway.CheckoutResult{Token: "pay-token", MerchantOID: req.MerchantOID}, nil
}

func (f *fakeGW) VerifyWebhook(data, headers map[string]string) (*gateway.WebhookResult, error) {
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	if f.webhookResult != nil {
		return f.webhookResult, nil
	}
	// Echo the form fields so tests can drive outcomes through the wire
	result := &gateway.WebhookResult{
		MerchantOID: data["merchant_oid"],
		PaymentID:   data["payment_id"],
	}
	if data["status"] == "success" {
		result.Status = gateway.StatusSuccess
	} else {
		result.Status = gateway.StatusFailed
	}
	return result, nil
}

type testApp struct {
	router *chi.Mux
	store  *store.Store
	gw     *fakeGW
	sender *notify.Recorder
	svc    *checkout.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gw := &fakeGW{}
	gateway.Register("testpay", func() gateway.PaymentGateway { return gw })

	gateways := config.NewGatewayConfig()
	gateways.Set("testpay", map[string]string{
		"okUrl":    "https://shop.example.com/ok",
		"failUrl":  "https://shop.example.com/fail",
		"testMode": "true",
	})

	sender := &notify.Recorder{}
	svc, err := checkout.NewService(checkout.Options{
		Store:       st,
		Gateways:    gateways,
		Sender:      sender,
		Provider:    "testpay",
		SellerEmail: "seller@example.com",
		SellerName:  "Seller",
	})
	require.NoError(t, err)

	h := NewPaymentHandler(svc)
	router := chi.NewRouter()
	router.Post("/payment/checkout_session", h.CheckoutSession)
	router.Post("/payment/webhook", h.Webhook)
	router.Post("/payment/webhook/{provider}", h.Webhook)
	router.Get("/health", Health)

	return &testApp{router: router, store: st, gw: gw, sender: sender, svc: svc}
}

func seedProduct(t *testing.T, st *store.Store, stock int) {
	t.Helper()
	require.NoError(t, st.SaveProduct(context.Background(), &store.Product{
		ID:    "p1",
		Name:  "Orgu Canta",
		Stock: stock,
		Colors: []store.ColorVariant{
			{ColorID: "c1", Color: "Kirmizi", Stock: stock},
		},
	}))
}

func checkoutBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"itemsPrice":     300,
		"taxAmount":      24,
		"shippingAmount": 26,
		"totalAmount":    350,
		"paymentMethod":  "card",
		"orderItems": []map[string]any{
			{"product": "p1", "productColorID": "c1", "name": "Orgu Canta", "price": 150, "amount": 2},
		},
		"shippingInfo": map[string]any{
			"address": "Ataturk Cad. No:1",
			"city":    "Istanbul",
			"phoneNo": "5551234567",
			"zipCode": "34000",
			"country": "Turkey",
		},
	})
	return body
}

func postCheckout(t *testing.T, app *testApp, withIdentity bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/payment/checkout_session", bytes.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	if withIdentity {
		req.Header.Set("X-User-Id", "user-1")
		req.Header.Set("X-User-Name", "Ayse Yilmaz")
		req.Header.Set("X-User-Email", "ayse@example.com")
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func postWebhook(t *testing.T, app *testApp, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/payment/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func sessionOID(t *testing.T, app *testApp) string {
	t.Helper()
	w := postCheckout(t, app, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data gateway.CheckoutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.MerchantOID)
	return resp.Data.MerchantOID
}

func TestCheckoutSession(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 5)

	w := postCheckout(t, app, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    gateway.CheckoutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pay-token", resp.Data.Token)
	assert.True(t, strings.HasPrefix(resp.Data.MerchantOID, "oid_"))
}

func TestCheckoutSession_MissingIdentity(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 5)

	w := postCheckout(t, app, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutSession_InsufficientStock(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 1) // Basket wants 2

	w := postCheckout(t, app, true)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Errors  []struct {
			Msg            string `json:"msg"`
			Color          string `json:"color"`
			ProductColorID string `json:"productColorID"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Msg, "Stokta yeterli miktarda ürün yok")
	assert.Equal(t, "Kirmizi", resp.Errors[0].Color)
	assert.Equal(t, "c1", resp.Errors[0].ProductColorID)
}

func TestCheckoutSession_InvalidBody(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/payment/checkout_session", strings.NewReader("not-json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Email", "ayse@example.com")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_Success(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 5)
	oid := sessionOID(t, app)

	w := postWebhook(t, app, url.Values{
		"merchant_oid": {oid},
		"status":       {"success"},
		"payment_id":   {"pay-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	// Stock decremented 5 -> 3
	c, err := app.store.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Stock)

	// Order persisted, emails sent
	order, err := app.store.GetOrderByMerchantOID(context.Background(), oid)
	require.NoError(t, err)
	assert.Equal(t, "paid", order.PaymentStatus)
	assert.Len(t, app.sender.Sent(), 2)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 5)
	oid := sessionOID(t, app)

	form := url.Values{
		"merchant_oid": {oid},
		"status":       {"success"},
		"payment_id":   {"pay-1"},
	}

	w := postWebhook(t, app, form)
	require.Equal(t, http.StatusOK, w.Code)

	// Redelivery is acknowledged without side effects
	w = postWebhook(t, app, form)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	c, err := app.store.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Stock)
	assert.Len(t, app.sender.Sent(), 2)
}

func TestWebhook_InvalidHash(t *testing.T) {
	app := newTestApp(t)
	app.gw.webhookErr = gateway.ErrInvalidSignature

	w := postWebhook(t, app, url.Values{"merchant_oid": {"oid_1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid Hash", strings.TrimSpace(w.Body.String()))
}

func TestWebhook_PaymentFailed(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 5)
	oid := sessionOID(t, app)

	w := postWebhook(t, app, url.Values{
		"merchant_oid": {oid},
		"status":       {"failed"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Payment Failed", strings.TrimSpace(w.Body.String()))

	sess, err := app.store.GetSession(context.Background(), oid)
	require.NoError(t, err)
	assert.Equal(t, store.SessionFailed, sess.Status)
}

func TestWebhook_UnknownOrder(t *testing.T) {
	app := newTestApp(t)

	w := postWebhook(t, app, url.Values{
		"merchant_oid": {"oid_ghost"},
		"status":       {"success"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", strings.TrimSpace(w.Body.String()))
}

func TestWebhook_ProviderRoute(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app.store, 5)
	oid := sessionOID(t, app)

	form := url.Values{
		"merchant_oid": {oid},
		"status":       {"success"},
	}
	req := httptest.NewRequest("POST", "/payment/webhook/testpay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}
