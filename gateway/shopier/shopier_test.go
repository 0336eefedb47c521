package shopier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murat7074/elisishop/gateway"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	g := New().(*Gateway)
	require.NoError(t, g.Initialize(map[string]string{
		"apiKey":       "test-key",
		"apiSecret":    "test-secret",
		"websiteIndex": "1",
	}))
	return g
}

func sign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestInitialize(t *testing.T) {
	g := New().(*Gateway)
	assert.Error(t, g.Initialize(map[string]string{"apiKey": "k"}))

	require.NoError(t, g.Initialize(map[string]string{"apiKey": "k", "apiSecret": "s"}))
	assert.Equal(t, "1", g.websiteIndex)
}

func TestCreateCheckout(t *testing.T) {
	g := testGateway(t)

	result, err := g.CreateCheckout(context.Background(), gateway.CheckoutRequest{
		MerchantOID: "oid_77",
		Amount:      35000,
		Currency:    "TRY",
		Buyer: gateway.BuyerInfo{
			Name:    "Ayse Yilmaz",
			Email:   "ayse@example.com",
			City:    "Istanbul",
			Country: "Turkey",
		},
		Basket: []gateway.BasketLine{
			{Name: "Orgu Canta", Price: 15000, Amount: 2},
			{Name: "Patik", Price: 5000, Amount: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, paymentURL, result.RedirectURL)
	assert.Equal(t, "oid_77", result.MerchantOID)
	require.NotNil(t, result.FormFields)

	fields := result.FormFields
	assert.Equal(t, "test-key", fields["API_key"])
	assert.Equal(t, "oid_77", fields["platform_order_id"])
	assert.Equal(t, "350.00", fields["total_order_value"])
	assert.Equal(t, "0", fields["currency"])
	assert.Equal(t, "Orgu Canta, Patik", fields["product_name"])
	assert.Equal(t, "Ayse", fields["buyer_name"])
	assert.Equal(t, "Yilmaz", fields["buyer_surname"])
	assert.Len(t, fields["random_nr"], 6)

	expected := sign("test-secret",
		fields["random_nr"]+fields["platform_order_id"]+fields["total_order_value"]+fields["currency"])
	assert.Equal(t, expected, fields["signature"])
}

func TestCreateCheckout_Validation(t *testing.T) {
	g := testGateway(t)

	_, err := g.CreateCheckout(context.Background(), gateway.CheckoutRequest{
		MerchantOID: "oid_1",
		Buyer:       gateway.BuyerInfo{Email: "a@b.c"},
	})
	assert.Error(t, err)

	_, err = g.CreateCheckout(context.Background(), gateway.CheckoutRequest{
		MerchantOID: "oid_1",
		Amount:      1000,
	})
	assert.Error(t, err)
}

func TestVerifyWebhook(t *testing.T) {
	g := testGateway(t)

	data := map[string]string{
		"platform_order_id": "oid_77",
		"random_nr":         "123456",
		"status":            "success",
		"payment_id":        "shp-555",
		"total_order_value": "350.00",
	}
	data["signature"] = sign("test-secret", "123456oid_77")

	result, err := g.VerifyWebhook(data, nil)
	require.NoError(t, err)
	assert.Equal(t, "oid_77", result.MerchantOID)
	assert.Equal(t, "shp-555", result.PaymentID)
	assert.Equal(t, gateway.StatusSuccess, result.Status)
	assert.Equal(t, int64(35000), result.Amount)
}

func TestVerifyWebhook_InvalidSignature(t *testing.T) {
	g := testGateway(t)

	data := map[string]string{
		"platform_order_id": "oid_77",
		"random_nr":         "123456",
		"signature":         sign("wrong-secret", "123456oid_77"),
	}

	_, err := g.VerifyWebhook(data, nil)
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestVerifyWebhook_MissingFields(t *testing.T) {
	g := testGateway(t)

	for _, omit := range []string{"platform_order_id", "random_nr", "signature"} {
		t.Run("missing "+omit, func(t *testing.T) {
			data := map[string]string{
				"platform_order_id": "oid_77",
				"random_nr":         "123456",
			}
			data["signature"] = sign("test-secret", data["random_nr"]+data["platform_order_id"])
			delete(data, omit)
			_, err := g.VerifyWebhook(data, nil)
			assert.Error(t, err)
		})
	}
}
