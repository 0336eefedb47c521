package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/murat7074/elisishop/store"
)

// StockError describes one basket line that failed inventory validation
type StockError struct {
	Msg            string `json:"msg"`
	Color          string `json:"color"`
	ProductColorID string `json:"productColorID"`
}

// OrderItemInput is one basket line submitted by the frontend
type OrderItemInput struct {
	ProductID      string  `json:"product" validate:"required"`
	ProductColorID string  `json:"productColorID" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Price          float64 `json:"price" validate:"required,gt=0"`
	Amount         int     `json:"amount" validate:"required,gt=0"`
	Image          string  `json:"image"`
}

// ValidateStock checks every basket line against live inventory and
// collects all failures instead of stopping at the first one, so the
// frontend can show the customer everything that is wrong at once.
func (s *Service) ValidateStock(ctx context.Context, items []OrderItemInput) ([]StockError, error) {
	var stockErrors []StockError

	for _, item := range items {
		color, err := s.store.GetProductColor(ctx, item.ProductID, item.ProductColorID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				stockErrors = append(stockErrors, StockError{
					Msg:            fmt.Sprintf("Ürün bulunamadı: %s", item.Name),
					Color:          "",
					ProductColorID: item.ProductColorID,
				})
				continue
			}
			return nil, fmt.Errorf("stock validation failed: %w", err)
		}

		if color.Stock < item.Amount {
			stockErrors = append(stockErrors, StockError{
				Msg:            fmt.Sprintf("Stokta yeterli miktarda ürün yok: %s", item.Name),
				Color:          color.Color,
				ProductColorID: item.ProductColorID,
			})
		}
	}

	return stockErrors, nil
}
