package domain

import "github.com/shopspring/decimal"

// NetTotal применяет скидку к сумме и округляет вниз до scale знаков после запятой
// (минимальной денежной единицы магазина).
func NetTotal(gross, rate decimal.Decimal, scale int32) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(rate)
	return gross.Mul(factor).RoundFloor(scale)
}

// ValidDiscountRate проверяет, что ставка лежит в [0, 1].
func ValidDiscountRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(decimal.NewFromInt(1))
}
