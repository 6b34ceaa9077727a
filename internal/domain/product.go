package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога вместе с текущим остатком на складе.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	// StockQuantity — количество доступных единиц; меняется только через CatalogManager.
	StockQuantity int    `json:"stock_quantity"`
	Category      string `json:"category"`
	ImageRef      string `json:"image_ref,omitempty"`
	// OwnerID указывает поставщика, которому принадлежит товар. Пустое значение — товар магазина.
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет поля товара и возвращает список нарушений.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrPriceNegative)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}

// ProductFields задаёт набор полей для создания или частичного обновления товара.
// Nil-поле означает «не менять».
type ProductFields struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	Category      *string
	ImageRef      *string
	OwnerID       *string
}

// Apply переносит заданные поля в товар.
func (f ProductFields) Apply(p *Product) {
	if f.Name != nil {
		p.Name = strings.TrimSpace(*f.Name)
	}
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Price != nil {
		p.Price = *f.Price
	}
	if f.StockQuantity != nil {
		p.StockQuantity = *f.StockQuantity
	}
	if f.Category != nil {
		p.Category = *f.Category
	}
	if f.ImageRef != nil {
		p.ImageRef = *f.ImageRef
	}
	if f.OwnerID != nil {
		p.OwnerID = *f.OwnerID
	}
}

// Ptr возвращает указатель на значение; удобно для заполнения ProductFields.
func Ptr[T any](v T) *T {
	return &v
}

// CartLine — позиция корзины: товар и количество (всегда > 0).
type CartLine struct {
	ProductID string
	Quantity  int
}
