// Package cart — корзина одной сессии. Не сохраняется и не синхронизируется:
// ей владеет ровно одна сессия.
package cart

import (
	"math"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Cart отображает идентификатор товара в количество. Нулевых и отрицательных количеств не бывает.
// Нулевое значение Cart готово к использованию.
type Cart struct {
	items map[string]int
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{items: make(map[string]int)}
}

// Add увеличивает количество товара. qty<=0 игнорируется; сумма упирается в math.MaxInt.
func (c *Cart) Add(productID string, qty int) {
	if productID == "" || qty <= 0 {
		return
	}
	current := c.items[productID]
	if current > math.MaxInt-qty {
		c.Set(productID, math.MaxInt)
		return
	}
	c.Set(productID, current+qty)
}

// Remove уменьшает количество; позиция удаляется, когда количество становится <= 0.
func (c *Cart) Remove(productID string, qty int) {
	if qty <= 0 {
		return
	}
	c.Set(productID, c.items[productID]-qty)
}

// Set задаёт количество; qty<=0 удаляет позицию.
func (c *Cart) Set(productID string, qty int) {
	if qty <= 0 {
		delete(c.items, productID)
		return
	}
	if productID == "" {
		return
	}
	if c.items == nil {
		c.items = make(map[string]int)
	}
	c.items[productID] = qty
}

// Quantity возвращает количество товара в корзине.
func (c *Cart) Quantity(productID string) int {
	return c.items[productID]
}

// Lines возвращает позиции, отсортированные по идентификатору товара.
func (c *Cart) Lines() []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(c.items))
	for id, qty := range c.items {
		lines = append(lines, domain.CartLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// Len возвращает число различных товаров.
func (c *Cart) Len() int {
	return len(c.items)
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	clear(c.items)
}
