package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Product represents a sellable product with per-color stock
type Product struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Stock  int            `json:"stock"`
	Colors []ColorVariant `json:"colors"`
}

// ColorVariant is one color option of a product with its own stock
type ColorVariant struct {
	ColorID string `json:"colorID"`
	Color   string `json:"color"`
	Stock   int    `json:"stock"`
}

// SaveProduct inserts or replaces a product and its color variants
func (s *Store) SaveProduct(ctx context.Context, p *Product) error {
	return s.retryOperation(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO products (id, name, stock) VALUES (?, ?, ?)`,
			p.ID, p.Name, p.Stock)
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM product_colors WHERE product_id = ?`, p.ID)
		if err != nil {
			return fmt.Errorf("failed to clear product colors: %w", err)
		}

		for _, c := range p.Colors {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO product_colors (product_id, color_id, color, stock) VALUES (?, ?, ?, ?)`,
				p.ID, c.ColorID, c.Color, c.Stock)
			if err != nil {
				return fmt.Errorf("failed to save product color: %w", err)
			}
		}

		return tx.Commit()
	}, 3)
}

// GetProduct retrieves a product with all its color variants
func (s *Store) GetProduct(ctx context.Context, productID string) (*Product, error) {
	p := &Product{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, stock FROM products WHERE id = ?`, productID).
		Scan(&p.ID, &p.Name, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT color_id, color, stock FROM product_colors WHERE product_id = ? ORDER BY color_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product colors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ColorVariant
		if err := rows.Scan(&c.ColorID, &c.Color, &c.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product color: %w", err)
		}
		p.Colors = append(p.Colors, c)
	}

	return p, rows.Err()
}

// GetProductColor retrieves a single color variant of a product.
// Returns ErrNotFound when either the product or the variant does not exist.
func (s *Store) GetProductColor(ctx context.Context, productID, colorID string) (*ColorVariant, error) {
	var c ColorVariant
	err := s.db.QueryRowContext(ctx,
		`SELECT color_id, color, stock FROM product_colors WHERE product_id = ? AND color_id = ?`,
		productID, colorID).
		Scan(&c.ColorID, &c.Color, &c.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product color: %w", err)
	}
	return &c, nil
}
