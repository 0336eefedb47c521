package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/murat7074/elisishop/checkout"
	"github.com/murat7074/elisishop/gateway"
	"github.com/murat7074/elisishop/infra/logger"
	"github.com/murat7074/elisishop/infra/middle"
	"github.com/murat7074/elisishop/infra/response"
	"github.com/murat7074/elisishop/store"
)

// PaymentHandler serves the checkout and webhook endpoints
type PaymentHandler struct {
	service *checkout.Service
}

// NewPaymentHandler creates a payment handler
func NewPaymentHandler(service *checkout.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// CheckoutSession handles POST /payment/checkout_session.
// The authenticating proxy injects the customer identity as headers.
func (h *PaymentHandler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	var input checkout.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user := checkout.UserInfo{
		ID:    r.Header.Get("X-User-Id"),
		Name:  r.Header.Get("X-User-Name"),
		Email: r.Header.Get("X-User-Email"),
		IP:    middle.GetClientIP(r),
	}
	if user.Email == "" {
		response.Error(w, http.StatusUnauthorized, "Missing user identity", nil)
		return
	}

	result, stockErrors, err := h.service.CreateSession(r.Context(), user, input)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.Error(w, http.StatusBadRequest, "Invalid checkout request", err)
			return
		}
		logger.Error("checkout session failed", err)
		response.Error(w, http.StatusInternalServerError, "Failed to create checkout session", err)
		return
	}

	if len(stockErrors) > 0 {
		response.ValidationErrors(w, stockErrors)
		return
	}

	response.Success(w, http.StatusOK, "Checkout session created", result)
}

// Webhook handles POST /payment/webhook and /payment/webhook/{provider}.
// Responses are plain text because that is what the gateways expect.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	data, headers, err := parseWebhookRequest(r)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.HandleWebhook(r.Context(), provider, data, headers)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidSignature):
			http.Error(w, "Invalid Hash", http.StatusBadRequest)
		case errors.Is(err, checkout.ErrPaymentFailed):
			http.Error(w, "Payment Failed", http.StatusBadRequest)
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		default:
			logger.Error("webhook processing failed", err, logger.LogContext{Gateway: provider})
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	if outcome.Duplicate {
		logger.Debug("acknowledging duplicate webhook delivery", logger.LogContext{Gateway: provider})
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// parseWebhookRequest flattens a gateway notification into string maps.
// Form posts become field maps directly; JSON bodies are flattened and
// additionally kept raw under "payload" for gateways that verify the
// exact signed bytes.
func parseWebhookRequest(r *http.Request) (map[string]string, map[string]string, error) {
	data := make(map[string]string)

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, nil, err
		}
		for key := range r.PostForm {
			data[key] = r.PostForm.Get(key)
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1024*1024))
		if err != nil {
			return nil, nil, err
		}
		data["payload"] = string(body)

		var flat map[string]any
		if err := json.Unmarshal(body, &flat); err == nil {
			for key, value := range flat {
				switch v := value.(type) {
				case string:
					data[key] = v
				case float64:
					data[key] = strconv.FormatFloat(v, 'f', -1, 64)
				case bool:
					data[key] = fmt.Sprintf("%t", v)
				}
			}
		}
	}

	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	return data, headers, nil
}
