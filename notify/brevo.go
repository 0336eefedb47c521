package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	brevoAPIURL    = "https://api.brevo.com/v3/smtp/email"
	defaultTimeout = 15 * time.Second
)

// BrevoSender sends transactional emails through the Brevo HTTP API
type BrevoSender struct {
	apiKey    string
	apiURL    string
	fromName  string
	fromEmail string
	client    *http.Client
}

// NewBrevoSender creates a Brevo-backed email sender
func NewBrevoSender(apiKey, fromName, fromEmail string) (*BrevoSender, error) {
	if apiKey == "" {
		return nil, errors.New("brevo: api key is required")
	}
	if fromEmail == "" {
		return nil, errors.New("brevo: sender email is required")
	}

	return &BrevoSender{
		apiKey:    apiKey,
		apiURL:    brevoAPIURL,
		fromName:  fromName,
		fromEmail: fromEmail,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoRecipient   `json:"sender"`
	To          []brevoRecipient `json:"to"`
	Subject     string           `json:"subject"`
	HTMLContent string           `json:"htmlContent"`
}

// Send delivers one email via the Brevo API
func (b *BrevoSender) Send(ctx context.Context, email Email) error {
	payload := brevoRequest{
		Sender:      brevoRecipient{Email: b.fromEmail, Name: b.fromName},
		To:          []brevoRecipient{{Email: email.To, Name: email.ToName}},
		Subject:     email.Subject,
		HTMLContent: email.HTML,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("brevo: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("brevo: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo: HTTP error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
