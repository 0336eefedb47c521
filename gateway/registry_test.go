package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct{ name string }

func (f *fakeGateway) Name() string                          { return f.name }
func (f *fakeGateway) Initialize(conf map[string]string) error { return nil }
func (f *fakeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	return &CheckoutResult{MerchantOID: req.MerchantOID}, nil
}
func (f *fakeGateway) VerifyWebhook(data, headers map[string]string) (*WebhookResult, error) {
	return &WebhookResult{Status: StatusSuccess}, nil
}

func TestRegistry(t *testing.T) {
	Register("fake", func() PaymentGateway { return &fakeGateway{name: "fake"} })

	gw, err := Get("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", gw.Name())

	_, err = Get("nonexistent")
	assert.Error(t, err)

	assert.Contains(t, Registered(), "fake")
}

func TestGetReturnsFreshInstance(t *testing.T) {
	Register("fresh", func() PaymentGateway { return &fakeGateway{name: "fresh"} })

	a, err := Get("fresh")
	require.NoError(t, err)
	b, err := Get("fresh")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
}
