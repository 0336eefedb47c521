package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/murat7074/elisishop/gateway"
)

const defaultCurrency = "try"

// Gateway implements gateway.PaymentGateway for Stripe Checkout.
// It is registered but not active in any current deployment.
type Gateway struct {
	secretKey     string
	webhookSecret string
}

// New creates a new Stripe payment gateway
func New() gateway.PaymentGateway {
	return &Gateway{}
}

// Name returns the gateway identifier
func (g *Gateway) Name() string {
	return "stripe"
}

// Initialize sets up the Stripe gateway with API credentials
func (g *Gateway) Initialize(conf map[string]string) error {
	g.secretKey = conf["secretKey"]
	g.webhookSecret = conf["webhookSecret"]

	if g.secretKey == "" {
		return errors.New("stripe: secretKey is required")
	}

	stripeapi.Key = g.secretKey
	return nil
}

// CreateCheckout opens a Stripe Checkout session
func (g *Gateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	if g.secretKey == "" {
		return nil, gateway.ErrNotConfigured
	}
	if req.Amount <= 0 {
		return nil, errors.New("stripe: amount must be greater than 0")
	}
	if len(req.Basket) == 0 {
		return nil, errors.New("stripe: basket is empty")
	}

	lineItems := make([]*stripeapi.CheckoutSessionLineItemParams, 0, len(req.Basket))
	for _, line := range req.Basket {
		lineItems = append(lineItems, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(currencyOf(req.Currency)),
				UnitAmount: stripeapi.Int64(line.Price),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(line.Name),
				},
			},
			Quantity: stripeapi.Int64(int64(line.Amount)),
		})
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(req.OkURL),
		CancelURL:         stripeapi.String(req.FailURL),
		CustomerEmail:     stripeapi.String(req.Buyer.Email),
		ClientReferenceID: stripeapi.String(req.MerchantOID),
		LineItems:         lineItems,
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	return &gateway.CheckoutResult{
		Token:       sess.ID,
		RedirectURL: sess.URL,
		MerchantOID: req.MerchantOID,
	}, nil
}

// VerifyWebhook authenticates a Stripe event. The raw request body is
// expected under data["payload"] and the signature in the
// Stripe-Signature header.
func (g *Gateway) VerifyWebhook(data map[string]string, headers map[string]string) (*gateway.WebhookResult, error) {
	if g.webhookSecret == "" {
		return nil, gateway.ErrNotConfigured
	}

	payload, ok := data["payload"]
	if !ok {
		return nil, errors.New("stripe: missing raw payload in webhook data")
	}
	signature := headers["Stripe-Signature"]
	if signature == "" {
		return nil, errors.New("stripe: missing Stripe-Signature header")
	}

	// Events keep the API version of the account, not the library
	event, err := webhook.ConstructEventWithOptions([]byte(payload), signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse session object: %w", err)
		}

		result := &gateway.WebhookResult{
			MerchantOID: sess.ClientReferenceID,
			PaymentID:   sess.ID,
			Status:      gateway.StatusSuccess,
			Amount:      sess.AmountTotal,
		}
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			result.PaymentID = sess.PaymentIntent.ID
		}
		return result, nil

	case "checkout.session.expired":
		var sess stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("stripe: failed to parse session object: %w", err)
		}
		return &gateway.WebhookResult{
			MerchantOID: sess.ClientReferenceID,
			PaymentID:   sess.ID,
			Status:      gateway.StatusFailed,
			FailReason:  "checkout session expired",
		}, nil

	default:
		return nil, fmt.Errorf("stripe: unhandled event type: %s", event.Type)
	}
}

func currencyOf(currency string) string {
	switch strings.ToUpper(currency) {
	case "", "TL", "TRY":
		return defaultCurrency
	default:
		return strings.ToLower(currency)
	}
}
