// Package discount сопоставляет коды скидок со ставками.
package discount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// StaticResolver — неизменяемая таблица код → ставка. Коды сравниваются без учёта регистра.
type StaticResolver struct {
	rates map[string]decimal.Decimal
}

// NewStaticResolver проверяет ставки (0 ≤ r ≤ 1) и строит таблицу.
func NewStaticResolver(rates map[string]decimal.Decimal) (*StaticResolver, error) {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		key := normalize(code)
		if key == "" {
			return nil, domain.NewValidationError("discount_code", "must not be empty")
		}
		if !domain.ValidDiscountRate(rate) {
			return nil, fmt.Errorf("%w: code %s rate %s", domain.ErrDiscountRateInvalid, code, rate)
		}
		normalized[key] = rate
	}
	return &StaticResolver{rates: normalized}, nil
}

// ParseRates разбирает ставки из строк (как они приходят из конфигурации).
func ParseRates(raw map[string]string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(raw))
	for code, value := range raw {
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: code %s: %w", domain.ErrDiscountRateInvalid, code, err)
		}
		rates[code] = rate
	}
	return rates, nil
}

// Rate возвращает ставку для кода. Пустой код означает отсутствие скидки.
func (r *StaticResolver) Rate(code string) (decimal.Decimal, error) {
	key := normalize(code)
	if key == "" {
		return decimal.Zero, nil
	}
	rate, ok := r.rates[key]
	if !ok {
		return decimal.Zero, domain.ErrUnknownDiscountCode
	}
	return rate, nil
}

// Codes возвращает известные коды в алфавитном порядке.
func (r *StaticResolver) Codes() []string {
	codes := make([]string, 0, len(r.rates))
	for code := range r.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var _ domain.DiscountResolver = (*StaticResolver)(nil)
