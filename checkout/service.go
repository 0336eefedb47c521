package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/murat7074/elisishop/gateway"
	"github.com/murat7074/elisishop/infra/config"
	"github.com/murat7074/elisishop/infra/logger"
	"github.com/murat7074/elisishop/infra/opensearch"
	"github.com/murat7074/elisishop/notify"
	"github.com/murat7074/elisishop/store"
)

// ErrPaymentFailed is returned when a verified notification reports an
// unsuccessful payment
var ErrPaymentFailed = errors.New("payment failed")

// Service orchestrates the checkout and payment reconciliation workflow
type Service struct {
	store       *store.Store
	gateways    *config.GatewayConfig
	sender      notify.Sender
	events      *opensearch.Logger
	validate    *validator.Validate
	provider    string
	sellerEmail string
	sellerName  string
}

// Options configures a checkout service
type Options struct {
	Store       *store.Store
	Gateways    *config.GatewayConfig
	Sender      notify.Sender
	Events      *opensearch.Logger
	Validate    *validator.Validate
	Provider    string
	SellerEmail string
	SellerName  string
}

// NewService creates a checkout service
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("checkout: store is required")
	}
	if opts.Gateways == nil {
		return nil, errors.New("checkout: gateway config is required")
	}
	if opts.Provider == "" {
		return nil, errors.New("checkout: active provider is required")
	}
	if opts.Validate == nil {
		opts.Validate = validator.New()
	}

	return &Service{
		store:       opts.Store,
		gateways:    opts.Gateways,
		sender:      opts.Sender,
		events:      opts.Events,
		validate:    opts.Validate,
		provider:    opts.Provider,
		sellerEmail: opts.SellerEmail,
		sellerName:  opts.SellerName,
	}, nil
}

// ShippingInput is the delivery address submitted by the frontend
type ShippingInput struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	PhoneNo string `json:"phoneNo" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// CheckoutInput is a checkout session request
type CheckoutInput struct {
	ItemsPrice     float64          `json:"itemsPrice" validate:"required,gt=0"`
	TaxAmount      float64          `json:"taxAmount" validate:"gte=0"`
	ShippingAmount float64          `json:"shippingAmount" validate:"gte=0"`
	TotalAmount    float64          `json:"totalAmount" validate:"required,gt=0"`
	PaymentMethod  string           `json:"paymentMethod"`
	OrderItems     []OrderItemInput `json:"orderItems" validate:"required,min=1,dive"`
	ShippingInfo   ShippingInput    `json:"shippingInfo" validate:"required"`
}

// UserInfo identifies the authenticated customer making the request
type UserInfo struct {
	ID    string
	Name  string
	Email string
	IP    string
}

// CreateSession validates the basket against live inventory, opens a
// payment session with the active gateway and persists the basket
// snapshot for later reconciliation.
//
// A non-empty StockError slice means the basket failed validation; the
// gateway was not contacted.
func (s *Service) CreateSession(ctx context.Context, user UserInfo, input CheckoutInput) (*gateway.CheckoutResult, []StockError, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("invalid checkout request: %w", err)
	}
	if user.Email == "" {
		return nil, nil, errors.New("checkout: user email is required")
	}

	stockErrors, err := s.ValidateStock(ctx, input.OrderItems)
	if err != nil {
		return nil, nil, err
	}
	if len(stockErrors) > 0 {
		logger.Warn("checkout rejected by stock validation", logger.LogContext{
			Gateway: s.provider,
			Fields:  map[string]any{"errors": len(stockErrors), "user": user.ID},
		})
		return nil, stockErrors, nil
	}

	gw, conf, err := s.activeGateway()
	if err != nil {
		return nil, nil, err
	}

	merchantOID := fmt.Sprintf("oid_%d", time.Now().UnixMilli())
	amount := int64(math.Round(input.ItemsPrice * 100))

	basket := make([]gateway.BasketLine, 0, len(input.OrderItems))
	items := make([]store.BasketItem, 0, len(input.OrderItems))
	for _, item := range input.OrderItems {
		basket = append(basket, gateway.BasketLine{
			Name:   item.Name,
			Price:  int64(math.Round(item.Price * 100)),
			Amount: item.Amount,
		})

		color, err := s.store.GetProductColor(ctx, item.ProductID, item.ProductColorID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve basket color: %w", err)
		}
		items = append(items, store.BasketItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Amount:    item.Amount,
			Image:     item.Image,
			Colors: []store.ItemColor{{
				ColorID: item.ProductColorID,
				Color:   color.Color,
				Amount:  item.Amount,
			}},
		})
	}

	result, err := gw.CreateCheckout(ctx, gateway.CheckoutRequest{
		MerchantOID: merchantOID,
		Amount:      amount,
		Currency:    "TRY",
		Buyer: gateway.BuyerInfo{
			UserID:  user.ID,
			Name:    user.Name,
			Email:   user.Email,
			IP:      user.IP,
			Address: input.ShippingInfo.Address,
			City:    input.ShippingInfo.City,
			Phone:   input.ShippingInfo.PhoneNo,
			ZipCode: input.ShippingInfo.ZipCode,
			Country: input.ShippingInfo.Country,
		},
		Basket:   basket,
		OkURL:    conf["okUrl"],
		FailURL:  conf["failUrl"],
		TestMode: conf["testMode"] == "true",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gateway checkout failed: %w", err)
	}

	sess := &store.CheckoutSession{
		MerchantOID:    merchantOID,
		UserID:         user.ID,
		UserName:       user.Name,
		Email:          user.Email,
		Provider:       s.provider,
		PaymentMethod:  input.PaymentMethod,
		ItemsPrice:     input.ItemsPrice,
		TaxAmount:      input.TaxAmount,
		ShippingAmount: input.ShippingAmount,
		TotalAmount:    input.TotalAmount,
		Items:          items,
		Shipping: store.ShippingInfo{
			Address: input.ShippingInfo.Address,
			City:    input.ShippingInfo.City,
			PhoneNo: input.ShippingInfo.PhoneNo,
			ZipCode: input.ShippingInfo.ZipCode,
			Country: input.ShippingInfo.Country,
		},
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("failed to persist checkout session: %w", err)
	}

	logger.Info("checkout session created", logger.LogContext{
		Gateway: s.provider,
		Fields:  map[string]any{"merchant_oid": merchantOID, "amount": amount},
	})
	s.logEvent(ctx, opensearch.PaymentEvent{
		Event:         "checkout_created",
		MerchantOID:   merchantOID,
		Amount:        float64(amount) / 100,
		Currency:      "TRY",
		CustomerEmail: user.Email,
	})

	return result, nil, nil
}

// WebhookOutcome is the result of processing a verified notification
type WebhookOutcome struct {
	Order     *store.Order
	Skips     []store.StockSkip
	Duplicate bool
}

// HandleWebhook verifies a payment notification and, on success, creates
// the order, decrements stock and sends notification emails. A duplicate
// delivery returns a Duplicate outcome without side effects. An empty
// provider means the configured default.
func (s *Service) HandleWebhook(ctx context.Context, provider string, data, headers map[string]string) (*WebhookOutcome, error) {
	if provider == "" {
		provider = s.provider
	}
	gw, _, err := s.gatewayFor(provider)
	if err != nil {
		return nil, err
	}

	result, err := gw.VerifyWebhook(data, headers)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			logger.Warn("webhook rejected: signature mismatch", logger.LogContext{Gateway: s.provider})
			s.logEvent(ctx, opensearch.PaymentEvent{
				Event:  "webhook_rejected",
				Status: "invalid_signature",
			})
		}
		return nil, err
	}

	s.logEvent(ctx, opensearch.PaymentEvent{
		Event:       "webhook_verified",
		MerchantOID: result.MerchantOID,
		PaymentID:   result.PaymentID,
		Status:      result.Status,
	})

	if result.Status != gateway.StatusSuccess {
		logger.Info("payment failed notification received", logger.LogContext{
			Gateway: s.provider,
			Fields:  map[string]any{"merchant_oid": result.MerchantOID, "reason": result.FailReason},
		})
		if err := s.store.MarkSessionStatus(ctx, result.MerchantOID, store.SessionFailed); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Error("failed to mark session failed", err, logger.LogContext{Gateway: s.provider})
		}
		return nil, ErrPaymentFailed
	}

	sess, err := s.store.GetSession(ctx, result.MerchantOID)
	if err != nil {
		return nil, err
	}

	order, skips, err := s.store.FinalizeOrder(ctx, sess, result.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyProcessed) {
			logger.Info("duplicate webhook delivery ignored", logger.LogContext{
				Gateway: s.provider,
				Fields:  map[string]any{"merchant_oid": result.MerchantOID},
			})
			return &WebhookOutcome{Duplicate: true}, nil
		}
		return nil, err
	}

	s.reportSkips(ctx, order, skips)

	s.logEvent(ctx, opensearch.PaymentEvent{
		Event:         "order_created",
		MerchantOID:   order.MerchantOID,
		OrderID:       order.ID,
		PaymentID:     order.PaymentID,
		Status:        order.PaymentStatus,
		Amount:        order.TotalAmount,
		Currency:      "TRY",
		CustomerEmail: sess.Email,
	})

	s.sendOrderEmails(ctx, order, sess)

	return &WebhookOutcome{Order: order, Skips: skips}, nil
}

// reportSkips logs stock lines that could not be decremented. Missing
// products and drained stock are logged separately so they can be
// alerted on independently.
func (s *Service) reportSkips(ctx context.Context, order *store.Order, skips []store.StockSkip) {
	for _, skip := range skips {
		fields := map[string]any{
			"merchant_oid": order.MerchantOID,
			"product_id":   skip.ProductID,
			"color_id":     skip.ColorID,
			"amount":       skip.Amount,
		}
		switch skip.Reason {
		case store.SkipMissingProduct:
			logger.Warn("stock decrement skipped: product no longer exists", logger.LogContext{
				Gateway: s.provider, Fields: fields,
			})
		default:
			logger.Warn("stock decrement skipped: insufficient stock", logger.LogContext{
				Gateway: s.provider, Fields: fields,
			})
		}

		s.logEvent(ctx, opensearch.PaymentEvent{
			Event:       "stock_skipped",
			MerchantOID: order.MerchantOID,
			OrderID:     order.ID,
			Status:      skip.Reason,
			Fields:      fields,
		})
	}
}

// sendOrderEmails notifies the buyer and the seller. Delivery failures
// are logged but never fail the webhook: the order is already committed.
func (s *Service) sendOrderEmails(ctx context.Context, order *store.Order, sess *store.CheckoutSession) {
	if s.sender == nil {
		return
	}

	if email, err := notify.CustomerOrderEmail(order, sess.Email, sess.UserName); err == nil {
		if err := s.sender.Send(ctx, email); err != nil {
			logger.Error("failed to send customer email", err, logger.LogContext{Gateway: s.provider})
		}
	} else {
		logger.Error("failed to build customer email", err, logger.LogContext{Gateway: s.provider})
	}

	if email, err := notify.SellerOrderEmail(order, s.sellerEmail, s.sellerName, sess.UserName); err == nil {
		if err := s.sender.Send(ctx, email); err != nil {
			logger.Error("failed to send seller email", err, logger.LogContext{Gateway: s.provider})
		}
	} else {
		logger.Error("failed to build seller email", err, logger.LogContext{Gateway: s.provider})
	}
}

// activeGateway builds and initializes the configured default gateway
func (s *Service) activeGateway() (gateway.PaymentGateway, map[string]string, error) {
	return s.gatewayFor(s.provider)
}

func (s *Service) gatewayFor(provider string) (gateway.PaymentGateway, map[string]string, error) {
	conf, err := s.gateways.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	gw, err := gateway.Get(provider)
	if err != nil {
		return nil, nil, err
	}
	if err := gw.Initialize(conf); err != nil {
		return nil, nil, err
	}

	return gw, conf, nil
}

func (s *Service) logEvent(ctx context.Context, event opensearch.PaymentEvent) {
	if s.events == nil {
		return
	}

	event.Timestamp = time.Now()
	event.EventID = uuid.New().String()
	event.Gateway = s.provider
	if err := s.events.LogPaymentEvent(ctx, event); err != nil {
		logger.Debug("failed to index payment event", logger.LogContext{Gateway: s.provider})
	}
}
