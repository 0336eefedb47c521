package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order is a confirmed purchase created from a verified payment notification
type Order struct {
	ID             string       `json:"id"`
	MerchantOID    string       `json:"merchantOID"`
	UserID         string       `json:"userID"`
	ItemsPrice     float64      `json:"itemsPrice"`
	TaxAmount      float64      `json:"taxAmount"`
	ShippingAmount float64      `json:"shippingAmount"`
	TotalAmount    float64      `json:"totalAmount"`
	PaymentID      string       `json:"paymentID"`
	PaymentStatus  string       `json:"paymentStatus"`
	PaymentMethod  string       `json:"paymentMethod"`
	Items          []BasketItem `json:"items"`
	Shipping       ShippingInfo `json:"shipping"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// StockSkip records a basket line whose stock could not be decremented
// during order finalization. The order is still created because the
// payment has already been captured.
type StockSkip struct {
	ProductID string
	ColorID   string
	Amount    int
	Reason    string
}

// Skip reasons
const (
	SkipMissingProduct    = "product_missing"
	SkipInsufficientStock = "insufficient_stock"
)

// FinalizeOrder creates an order from a completed checkout session and
// decrements stock, all within a single transaction. A second call with
// the same merchant_oid returns ErrAlreadyProcessed without side effects.
func (s *Store) FinalizeOrder(ctx context.Context, sess *CheckoutSession, paymentID string) (*Order, []StockSkip, error) {
	var order *Order
	var skips []StockSkip

	err := s.retryOperation(func() error {
		var opErr error
		order, skips, opErr = s.finalizeOrderTx(ctx, sess, paymentID)
		return opErr
	}, 3)
	if err != nil {
		return nil, nil, err
	}

	return order, skips, nil
}

func (s *Store) finalizeOrderTx(ctx context.Context, sess *CheckoutSession, paymentID string) (*Order, []StockSkip, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Idempotency check: a previous delivery of the same notification
	// already created this order
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE merchant_oid = ?`, sess.MerchantOID).Scan(&existing)
	if err == nil {
		return nil, nil, ErrAlreadyProcessed
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("failed to check existing order: %w", err)
	}

	order := &Order{
		ID:             uuid.New().String(),
		MerchantOID:    sess.MerchantOID,
		UserID:         sess.UserID,
		ItemsPrice:     sess.ItemsPrice,
		TaxAmount:      sess.TaxAmount,
		ShippingAmount: sess.ShippingAmount,
		TotalAmount:    sess.TotalAmount,
		PaymentID:      paymentID,
		PaymentStatus:  "paid",
		PaymentMethod:  sess.PaymentMethod,
		Items:          sess.Items,
		Shipping:       sess.Shipping,
		CreatedAt:      time.Now(),
	}

	shippingJSON, err := json.Marshal(sess.Shipping)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal shipping info: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, merchant_oid, user_id, items_price, tax_amount, shipping_amount,
			 total_amount, payment_id, payment_status, payment_method, shipping_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.MerchantOID, order.UserID,
		order.ItemsPrice, order.TaxAmount, order.ShippingAmount, order.TotalAmount,
		order.PaymentID, order.PaymentStatus, order.PaymentMethod, string(shippingJSON))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert order: %w", err)
	}

	var skips []StockSkip

	for _, item := range sess.Items {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, price, amount, image)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Name, item.Price, item.Amount, item.Image)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert order item: %w", err)
		}
		itemID, err := result.LastInsertId()
		if err != nil {
			return nil, nil, err
		}

		for _, c := range item.Colors {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_item_colors (order_item_id, color_id, color, amount)
				VALUES (?, ?, ?, ?)`,
				itemID, c.ColorID, c.Color, c.Amount)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to insert order item color: %w", err)
			}

			skip, err := decrementStock(ctx, tx, item.ProductID, c)
			if err != nil {
				return nil, nil, err
			}
			if skip != nil {
				skips = append(skips, *skip)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = ? WHERE merchant_oid = ?`,
		SessionCompleted, sess.MerchantOID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark session completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return order, skips, nil
}

// decrementStock conditionally decrements a color variant's stock. The
// decrement only applies when enough stock remains, so a concurrent
// purchase that drained the variant results in a skip rather than a
// negative quantity.
func decrementStock(ctx context.Context, tx *sql.Tx, productID string, c ItemColor) (*StockSkip, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE product_colors SET stock = stock - ?
		WHERE product_id = ? AND color_id = ? AND stock >= ?`,
		c.Amount, productID, c.ColorID, c.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement color stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM product_colors WHERE product_id = ? AND color_id = ?`,
			productID, c.ColorID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect variant: %w", err)
		}

		reason := SkipInsufficientStock
		if exists == 0 {
			reason = SkipMissingProduct
		}
		return &StockSkip{
			ProductID: productID,
			ColorID:   c.ColorID,
			Amount:    c.Amount,
			Reason:    reason,
		}, nil
	}

	// Keep the product-level total in sync with the variant
	_, err = tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - ?
		WHERE id = ? AND stock >= ?`,
		c.Amount, productID, c.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement product stock: %w", err)
	}

	return nil, nil
}

// GetOrderByMerchantOID retrieves an order and its items by merchant_oid
func (s *Store) GetOrderByMerchantOID(ctx context.Context, merchantOID string) (*Order, error) {
	order := &Order{}
	var shippingJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, merchant_oid, user_id, items_price, tax_amount, shipping_amount,
		       total_amount, payment_id, payment_status, payment_method, shipping_json, created_at
		FROM orders WHERE merchant_oid = ?`, merchantOID).
		Scan(&order.ID, &order.MerchantOID, &order.UserID,
			&order.ItemsPrice, &order.TaxAmount, &order.ShippingAmount, &order.TotalAmount,
			&order.PaymentID, &order.PaymentStatus, &order.PaymentMethod,
			&shippingJSON, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	// Shipping address is denormalized JSON on the order row
	if err := json.Unmarshal([]byte(shippingJSON), &order.Shipping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping info: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, name, price, amount, image
		FROM order_items WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var itemIDs []int64
	for rows.Next() {
		var itemID int64
		var item BasketItem
		if err := rows.Scan(&itemID, &item.ProductID, &item.Name, &item.Price, &item.Amount, &item.Image); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
		itemIDs = append(itemIDs, itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, itemID := range itemIDs {
		colorRows, err := s.db.QueryContext(ctx, `
			SELECT color_id, color, amount
			FROM order_item_colors WHERE order_item_id = ?`, itemID)
		if err != nil {
			return nil, fmt.Errorf("failed to get order item colors: %w", err)
		}
		for colorRows.Next() {
			var c ItemColor
			if err := colorRows.Scan(&c.ColorID, &c.Color, &c.Amount); err != nil {
				colorRows.Close()
				return nil, fmt.Errorf("failed to scan order item color: %w", err)
			}
			order.Items[i].Colors = append(order.Items[i].Colors, c)
		}
		colorRows.Close()
		if err := colorRows.Err(); err != nil {
			return nil, err
		}
	}

	return order, nil
}
