package domain

import (
	"errors"
	"fmt"
)

// Базовые категории ошибок. Все конкретные ошибки оборачивают одну из них,
// поэтому вызывающий код проверяет категорию через errors.Is.
var (
	// ErrValidation — некорректный ввод, пользователь может исправить данные.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound — запрошенная сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock — на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAuthenticationFailed — неверная пара email/пароль.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrStorageFailure — ошибка ввода-вывода хранилища документов.
	ErrStorageFailure = errors.New("storage failure")
	// ErrPersistenceFailure — заказ не удалось зафиксировать, изменения откатены.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrUnknownProduct — корзина ссылается на удалённый или несуществующий товар.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrForbidden — у аккаунта нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrPaymentDeclined — платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentTemporary — временная ошибка платёжного провайдера, можно повторить.
	ErrPaymentTemporary = errors.New("payment temporary error")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

var (
	ErrNameRequired         = validation("name", "is required")
	ErrPriceNegative        = validation("price", "must be non-negative")
	ErrStockNegative        = validation("stock", "must be non-negative")
	ErrQuantityInvalid      = validation("quantity", "must be greater than zero")
	ErrNationalIDInvalid    = validation("national_id", "check digit does not match")
	ErrNationalIDTaken      = validation("national_id", "is already registered")
	ErrEmailInvalid         = validation("email", "has an invalid format")
	ErrEmailTaken           = validation("email", "is already registered")
	ErrPasswordWeak         = validation("password", "must have at least 6 characters, one uppercase letter and one digit")
	ErrPasswordTooLong      = validation("password", "must not exceed 72 bytes")
	ErrRoleInvalid          = validation("role", "must be one of customer, supplier, admin")
	ErrBuyerRequired        = validation("buyer_id", "is required")
	ErrItemsRequired        = validation("line_items", "order must contain at least one line")
	ErrSubtotalMismatch     = validation("subtotal", "does not match unit price times quantity")
	ErrAmountMismatch       = validation("gross_total", "does not match line subtotals")
	ErrNetTotalInvalid      = validation("net_total", "must be between zero and gross total")
	ErrEmptyCart            = validation("cart", "is empty")
	ErrShippingNameRequired = validation("shipping.full_name", "is required")
	ErrShippingAddrRequired = validation("shipping.address", "is required")
	ErrPaymentMethodInvalid = validation("payment_method", "must be one of webpay, mach, bancoestado, transferencia")
	ErrUnknownDiscountCode  = validation("discount_code", "is not recognised")
	ErrDiscountRateInvalid  = validation("discount_rate", "must be between 0 and 1")
	ErrStatusInvalid        = validation("status", "is not a known fulfillment status")
	ErrCollectionInvalid    = validation("collection", "name must be lowercase letters, digits or underscores")
)

// ValidationError описывает конкретную причину отказа, пригодную для показа пользователю.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NewValidationError создаёт ошибку валидации для произвольного поля.
func NewValidationError(field, reason string) error {
	return validation(field, reason)
}

// IsValidation проверяет, относится ли ошибка к ошибкам валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound проверяет, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StorageError оборачивает ошибку ввода-вывода в ErrStorageFailure с указанием операции.
func StorageError(op, collection string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorageFailure, op, collection, err)
}
