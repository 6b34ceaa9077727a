package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type stubOrders struct {
	orders []domain.Order
	err    error
}

func (s stubOrders) ListOrders(context.Context) ([]domain.Order, error) {
	return s.orders, s.err
}

type stubProducts []domain.Product

func (s stubProducts) ListAll(context.Context) ([]domain.Product, error) {
	return s, nil
}

func line(productID, name, seller string, qty int, price int64) domain.LineItem {
	p := decimal.NewFromInt(price)
	return domain.LineItem{
		ProductID:           productID,
		ProductName:         name,
		SellerID:            seller,
		Quantity:            qty,
		UnitPriceAtPurchase: p,
		Subtotal:            p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestSupplierSales(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	orders := stubOrders{orders: []domain.Order{
		{ID: "o-3", PlacedAt: t2, LineItems: []domain.LineItem{line("p-1", "Mate", "s-1", 1, 1000)}},
		{ID: "o-2", PlacedAt: t1, LineItems: []domain.LineItem{
			line("p-1", "Mate", "s-1", 2, 1000),
			line("p-9", "Taza", "s-2", 5, 200),
		}},
		{ID: "o-1", PlacedAt: t1, LineItems: []domain.LineItem{line("p-2", "Bombilla", "s-1", 3, 500)}},
	}}
	products := stubProducts{{ID: "p-1", Name: "Mate imperial"}}

	report, err := NewView(orders, products).SupplierSales(context.Background(), "s-1")
	require.NoError(t, err)

	require.Equal(t, 3, report.Count)
	require.Equal(t, 6, report.Units)
	require.True(t, report.Revenue.Equal(decimal.NewFromInt(4500)), "revenue %s", report.Revenue)

	ids := []string{report.Rows[0].SaleID, report.Rows[1].SaleID, report.Rows[2].SaleID}
	require.Equal(t, []string{"o-1", "o-2", "o-3"}, ids)

	// Товар удалён из каталога: остаётся имя на момент покупки.
	require.Equal(t, "Bombilla", report.Rows[0].ProductName)
	// Товар ещё в каталоге: показываем текущее имя.
	require.Equal(t, "Mate imperial", report.Rows[1].ProductName)
}

func TestSupplierSalesEmpty(t *testing.T) {
	report, err := NewView(stubOrders{}, nil).SupplierSales(context.Background(), "s-1")
	require.NoError(t, err)
	require.Zero(t, report.Count)
	require.NotNil(t, report.Rows)
	require.True(t, report.Revenue.IsZero())
}

func TestSupplierSalesErrors(t *testing.T) {
	_, err := NewView(stubOrders{}, nil).SupplierSales(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrValidation)

	boom := errors.New("boom")
	_, err = NewView(stubOrders{err: boom}, nil).SupplierSales(context.Background(), "s-1")
	require.ErrorIs(t, err, boom)
}
