package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod — способ оплаты, выбранный покупателем при оформлении.
type PaymentMethod string

const (
	PaymentMethodWebPay        PaymentMethod = "webpay"
	PaymentMethodMach          PaymentMethod = "mach"
	PaymentMethodBancoEstado   PaymentMethod = "bancoestado"
	PaymentMethodTransferencia PaymentMethod = "transferencia"
)

// Valid сообщает, поддерживается ли способ оплаты.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodWebPay, PaymentMethodMach, PaymentMethodBancoEstado, PaymentMethodTransferencia:
		return true
	default:
		return false
	}
}

// ParsePaymentMethod разбирает способ оплаты без учёта регистра.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrPaymentMethodInvalid
	}
	return m, nil
}

// ShippingInfo — данные доставки, которые покупатель вводит при оформлении.
type ShippingInfo struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code,omitempty"`
	NationalID string `json:"national_id,omitempty"`
}

// Validate проверяет обязательные поля доставки.
func (s ShippingInfo) Validate() []error {
	var errs []error

	if strings.TrimSpace(s.FullName) == "" {
		errs = append(errs, ErrShippingNameRequired)
	}
	if strings.TrimSpace(s.Address) == "" {
		errs = append(errs, ErrShippingAddrRequired)
	}

	return errs
}

// LineItem — позиция зафиксированного заказа. Цена и продавец снимаются в момент покупки
// и дальше не зависят от каталога.
type LineItem struct {
	ProductID           string          `json:"product_id"`
	ProductName         string          `json:"product_name"`
	SellerID            string          `json:"seller_id,omitempty"`
	Quantity            int             `json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `json:"unit_price_at_purchase"`
	Subtotal            decimal.Decimal `json:"subtotal"`
}

// Order — запись журнала продаж. После записи не изменяется; статусы хранятся отдельно.
type Order struct {
	ID             string          `json:"id"`
	BuyerID        string          `json:"buyer_id"`
	LineItems      []LineItem      `json:"line_items"`
	Shipping       ShippingInfo    `json:"shipping"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	DiscountCode   string          `json:"discount_code,omitempty"`
	DiscountRate   decimal.Decimal `json:"discount_rate"`
	GrossTotal     decimal.Decimal `json:"gross_total"`
	NetTotal       decimal.Decimal `json:"net_total"`
	Currency       string          `json:"currency"`
	PaymentRef     string          `json:"payment_ref,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	PlacedAt       time.Time       `json:"placed_at"`
}

// Units возвращает суммарное количество единиц в заказе.
func (o *Order) Units() int {
	total := 0
	for _, item := range o.LineItems {
		total += item.Quantity
	}
	return total
}

// ValidateInvariants проверяет инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if len(o.LineItems) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	calc := decimal.Zero
	for _, item := range o.LineItems {
		if item.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if item.UnitPriceAtPurchase.IsNegative() {
			errs = append(errs, ErrPriceNegative)
		}
		if !item.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity))).Equal(item.Subtotal) {
			errs = append(errs, ErrSubtotalMismatch)
		}
		calc = calc.Add(item.Subtotal)
	}
	if !calc.Equal(o.GrossTotal) {
		errs = append(errs, ErrAmountMismatch)
	}
	if o.NetTotal.IsNegative() || o.NetTotal.GreaterThan(o.GrossTotal) {
		errs = append(errs, ErrNetTotalInvalid)
	}
	if o.DiscountRate.IsNegative() || o.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, ErrDiscountRateInvalid)
	}

	return errs
}

// CheckoutState описывает состояние одной попытки оформления заказа.
type CheckoutState string

const (
	CheckoutStatePriced     CheckoutState = "priced"
	CheckoutStateReserved   CheckoutState = "reserved"
	CheckoutStateCommitted  CheckoutState = "committed"
	CheckoutStateRolledBack CheckoutState = "rolled_back"
	CheckoutStateFailed     CheckoutState = "failed"
)

// CheckoutStep задаёт константы шагов оформления для метрик и логов.
type CheckoutStep string

const (
	CheckoutStepPrice     CheckoutStep = "price"
	CheckoutStepReserve   CheckoutStep = "reserve"
	CheckoutStepAuthorize CheckoutStep = "authorize"
	CheckoutStepCommit    CheckoutStep = "commit"
	CheckoutStepRelease   CheckoutStep = "release"
	CheckoutStepVoid      CheckoutStep = "void"
)
