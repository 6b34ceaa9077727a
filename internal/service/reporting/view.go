// Package reporting строит отчёты по журналу продаж только для чтения.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OrderReader отдаёт журнал заказов.
type OrderReader interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// ProductReader отдаёт текущий каталог.
type ProductReader interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
}

// SaleRow — одна проданная позиция поставщика.
type SaleRow struct {
	SaleID      string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	PlacedAt    time.Time
}

// SupplierReport — продажи поставщика с итогами.
type SupplierReport struct {
	SellerID string
	Rows     []SaleRow
	Count    int
	Units    int
	Revenue  decimal.Decimal
}

// View собирает отчёты из журнала и каталога.
type View struct {
	orders   OrderReader
	products ProductReader
}

// NewView создаёт представление отчётов.
func NewView(orders OrderReader, products ProductReader) *View {
	return &View{orders: orders, products: products}
}

// SupplierSales возвращает строки журнала, проданные поставщиком sellerID,
// в порядке PlacedAt, затем идентификатора продажи.
func (v *View) SupplierSales(ctx context.Context, sellerID string) (SupplierReport, error) {
	report := SupplierReport{SellerID: sellerID, Rows: []SaleRow{}, Revenue: decimal.Zero}
	if sellerID == "" {
		return report, domain.NewValidationError("seller_id", "is required")
	}

	orders, err := v.orders.ListOrders(ctx)
	if err != nil {
		return report, fmt.Errorf("load orders: %w", err)
	}
	names, err := v.currentNames(ctx)
	if err != nil {
		return report, err
	}

	for _, order := range orders {
		for _, item := range order.LineItems {
			if item.SellerID != sellerID {
				continue
			}
			name := item.ProductName
			if current, ok := names[item.ProductID]; ok {
				name = current
			}
			report.Rows = append(report.Rows, SaleRow{
				SaleID:      order.ID,
				ProductID:   item.ProductID,
				ProductName: name,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPriceAtPurchase,
				Subtotal:    item.Subtotal,
				PlacedAt:    order.PlacedAt,
			})
			report.Units += item.Quantity
			report.Revenue = report.Revenue.Add(item.Subtotal)
		}
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if !a.PlacedAt.Equal(b.PlacedAt) {
			return a.PlacedAt.Before(b.PlacedAt)
		}
		return a.SaleID < b.SaleID
	})
	report.Count = len(report.Rows)
	return report, nil
}

func (v *View) currentNames(ctx context.Context) (map[string]string, error) {
	if v.products == nil {
		return map[string]string{}, nil
	}
	products, err := v.products.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}
