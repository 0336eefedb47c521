package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Session status values
const (
	SessionPending   = "pending"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// ShippingInfo is the delivery address captured at checkout
type ShippingInfo struct {
	Address string `json:"address"`
	City    string `json:"city"`
	PhoneNo string `json:"phoneNo"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// ItemColor is the chosen color and quantity within one basket line
type ItemColor struct {
	ColorID string `json:"colorID"`
	Color   string `json:"color"`
	Amount  int    `json:"amount"`
}

// BasketItem is one line of the basket snapshot held by a checkout session
type BasketItem struct {
	ProductID string      `json:"productID"`
	Name      string      `json:"name"`
	Price     float64     `json:"price"`
	Amount    int         `json:"amount"`
	Image     string      `json:"image"`
	Colors    []ItemColor `json:"colors"`
}

// CheckoutSession is the pending payment state keyed by merchant_oid.
// The basket is snapshotted here so the webhook can build the order
// without trusting anything the gateway echoes back.
type CheckoutSession struct {
	MerchantOID    string       `json:"merchantOID"`
	UserID         string       `json:"userID"`
	UserName       string       `json:"userName"`
	Email          string       `json:"email"`
	Provider       string       `json:"provider"`
	PaymentMethod  string       `json:"paymentMethod"`
	ItemsPrice     float64      `json:"itemsPrice"`
	TaxAmount      float64      `json:"taxAmount"`
	ShippingAmount float64      `json:"shippingAmount"`
	TotalAmount    float64      `json:"totalAmount"`
	Items          []BasketItem `json:"items"`
	Shipping       ShippingInfo `json:"shipping"`
	Status         string       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// SaveSession persists a pending checkout session
func (s *Store) SaveSession(ctx context.Context, sess *CheckoutSession) error {
	basketJSON, err := json.Marshal(sess.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal basket: %w", err)
	}
	shippingJSON, err := json.Marshal(sess.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping info: %w", err)
	}

	if sess.Status == "" {
		sess.Status = SessionPending
	}

	return s.retryOperation(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO checkout_sessions
				(merchant_oid, user_id, user_name, email, provider, payment_method,
				 items_price, tax_amount, shipping_amount, total_amount,
				 basket_json, shipping_json, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.MerchantOID, sess.UserID, sess.UserName, sess.Email,
			sess.Provider, sess.PaymentMethod,
			sess.ItemsPrice, sess.TaxAmount, sess.ShippingAmount, sess.TotalAmount,
			string(basketJSON), string(shippingJSON), sess.Status)
		if err != nil {
			return fmt.Errorf("failed to save checkout session: %w", err)
		}
		return nil
	}, 3)
}

// GetSession retrieves a checkout session by merchant_oid
func (s *Store) GetSession(ctx context.Context, merchantOID string) (*CheckoutSession, error) {
	sess := &CheckoutSession{}
	var basketJSON, shippingJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT merchant_oid, user_id, user_name, email, provider, payment_method,
		       items_price, tax_amount, shipping_amount, total_amount,
		       basket_json, shipping_json, status, created_at
		FROM checkout_sessions WHERE merchant_oid = ?`, merchantOID).
		Scan(&sess.MerchantOID, &sess.UserID, &sess.UserName, &sess.Email,
			&sess.Provider, &sess.PaymentMethod,
			&sess.ItemsPrice, &sess.TaxAmount, &sess.ShippingAmount, &sess.TotalAmount,
			&basketJSON, &shippingJSON, &sess.Status, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	if err := json.Unmarshal([]byte(basketJSON), &sess.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal basket: %w", err)
	}
	if err := json.Unmarshal([]byte(shippingJSON), &sess.Shipping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping info: %w", err)
	}

	return sess, nil
}

// MarkSessionStatus updates the status of a checkout session
func (s *Store) MarkSessionStatus(ctx context.Context, merchantOID, status string) error {
	return s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE checkout_sessions SET status = ? WHERE merchant_oid = ?`,
			status, merchantOID)
		if err != nil {
			return fmt.Errorf("failed to update session status: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	}, 3)
}
