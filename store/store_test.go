package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedProduct(t *testing.T, s *Store, id string, colorStocks map[string]int) {
	t.Helper()
	total := 0
	var colors []ColorVariant
	for colorID, stock := range colorStocks {
		colors = append(colors, ColorVariant{ColorID: colorID, Color: "renk-" + colorID, Stock: stock})
		total += stock
	}
	require.NoError(t, s.SaveProduct(context.Background(), &Product{
		ID:     id,
		Name:   "Test Urun " + id,
		Stock:  total,
		Colors: colors,
	}))
}

func testSession(merchantOID string, items []BasketItem) *CheckoutSession {
	itemsPrice := 0.0
	for _, it := range items {
		itemsPrice += it.Price * float64(it.Amount)
	}
	return &CheckoutSession{
		MerchantOID: merchantOID,
		UserID:      "user-1",
		UserName:    "Ayse Yilmaz",
		Email:       "ayse@example.com",
		Provider:    "paytr",
		ItemsPrice:  itemsPrice,
		TotalAmount: itemsPrice,
		Items:       items,
		Shipping: ShippingInfo{
			Address: "Ataturk Cad. No:1",
			City:    "Istanbul",
			PhoneNo: "5551234567",
			ZipCode: "34000",
			Country: "Turkey",
		},
	}
}

func TestSaveAndGetProduct(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", map[string]int{"c1": 5, "c2": 3})

	p, err := s.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, 8, p.Stock)
	assert.Len(t, p.Colors, 2)

	_, err = s.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProductColor(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", map[string]int{"c1": 5})

	c, err := s.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Stock)

	_, err = s.GetProductColor(context.Background(), "p1", "c9")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetProductColor(context.Background(), "missing", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sess := testSession("oid_1000", []BasketItem{
		{ProductID: "p1", Name: "Canta", Price: 150.0, Amount: 2,
			Colors: []ItemColor{{ColorID: "c1", Color: "Kirmizi", Amount: 2}}},
	})

	require.NoError(t, s.SaveSession(context.Background(), sess))

	got, err := s.GetSession(context.Background(), "oid_1000")
	require.NoError(t, err)
	assert.Equal(t, SessionPending, got.Status)
	assert.Equal(t, "ayse@example.com", got.Email)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Canta", got.Items[0].Name)
	require.Len(t, got.Items[0].Colors, 1)
	assert.Equal(t, "Kirmizi", got.Items[0].Colors[0].Color)
	assert.Equal(t, "Istanbul", got.Shipping.City)

	require.NoError(t, s.MarkSessionStatus(context.Background(), "oid_1000", SessionFailed))
	got, err = s.GetSession(context.Background(), "oid_1000")
	require.NoError(t, err)
	assert.Equal(t, SessionFailed, got.Status)

	assert.ErrorIs(t, s.MarkSessionStatus(context.Background(), "oid_nope", SessionFailed), ErrNotFound)

	_, err = s.GetSession(context.Background(), "oid_nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeOrder_DecrementsStock(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", map[string]int{"c1": 5})

	sess := testSession("oid_2000", []BasketItem{
		{ProductID: "p1", Name: "Canta", Price: 150.0, Amount: 2,
			Colors: []ItemColor{{ColorID: "c1", Color: "Kirmizi", Amount: 2}}},
	})
	require.NoError(t, s.SaveSession(context.Background(), sess))

	order, skips, err := s.FinalizeOrder(context.Background(), sess, "pay_123")
	require.NoError(t, err)
	assert.Empty(t, skips)
	assert.Equal(t, "oid_2000", order.MerchantOID)
	assert.Equal(t, "pay_123", order.PaymentID)
	assert.Equal(t, "paid", order.PaymentStatus)

	c, err := s.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Stock)

	p, err := s.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	got, err := s.GetSession(context.Background(), "oid_2000")
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, got.Status)

	loaded, err := s.GetOrderByMerchantOID(context.Background(), "oid_2000")
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 2, loaded.Items[0].Amount)
	require.Len(t, loaded.Items[0].Colors, 1)
	assert.Equal(t, "c1", loaded.Items[0].Colors[0].ColorID)
}

func TestFinalizeOrder_Idempotent(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", map[string]int{"c1": 5})

	sess := testSession("oid_3000", []BasketItem{
		{ProductID: "p1", Name: "Canta", Price: 150.0, Amount: 1,
			Colors: []ItemColor{{ColorID: "c1", Color: "Kirmizi", Amount: 1}}},
	})
	require.NoError(t, s.SaveSession(context.Background(), sess))

	_, _, err := s.FinalizeOrder(context.Background(), sess, "pay_1")
	require.NoError(t, err)

	_, _, err = s.FinalizeOrder(context.Background(), sess, "pay_1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// Stock was only decremented once
	c, err := s.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Stock)
}

func TestFinalizeOrder_InsufficientStock(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", map[string]int{"c1": 1})

	sess := testSession("oid_4000", []BasketItem{
		{ProductID: "p1", Name: "Canta", Price: 150.0, Amount: 2,
			Colors: []ItemColor{{ColorID: "c1", Color: "Kirmizi", Amount: 2}}},
	})
	require.NoError(t, s.SaveSession(context.Background(), sess))

	order, skips, err := s.FinalizeOrder(context.Background(), sess, "pay_1")
	require.NoError(t, err)
	assert.NotNil(t, order)
	require.Len(t, skips, 1)
	assert.Equal(t, SkipInsufficientStock, skips[0].Reason)
	assert.Equal(t, "p1", skips[0].ProductID)

	// Stock untouched, never negative
	c, err := s.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stock)
}

func TestFinalizeOrder_MissingProduct(t *testing.T) {
	s := newTestStore(t)

	sess := testSession("oid_5000", []BasketItem{
		{ProductID: "ghost", Name: "Silinmis Urun", Price: 90.0, Amount: 1,
			Colors: []ItemColor{{ColorID: "c1", Color: "Mavi", Amount: 1}}},
	})
	require.NoError(t, s.SaveSession(context.Background(), sess))

	order, skips, err := s.FinalizeOrder(context.Background(), sess, "pay_1")
	require.NoError(t, err)
	assert.NotNil(t, order)
	require.Len(t, skips, 1)
	assert.Equal(t, SkipMissingProduct, skips[0].Reason)
}

func TestFinalizeOrder_ConcurrentDeliveries(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", map[string]int{"c1": 10})

	sess := testSession("oid_6000", []BasketItem{
		{ProductID: "p1", Name: "Canta", Price: 150.0, Amount: 1,
			Colors: []ItemColor{{ColorID: "c1", Color: "Kirmizi", Amount: 1}}},
	})
	require.NoError(t, s.SaveSession(context.Background(), sess))

	const workers = 5
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = s.FinalizeOrder(context.Background(), sess, "pay_1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
		}
	}
	assert.Equal(t, 1, succeeded)

	c, err := s.GetProductColor(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 9, c.Stock)
}
