package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// MockService — конфигурируемая заглушка PaymentService. Используется в тестах и как песочница
// платёжного шлюза при локальном запуске.
type MockService struct {
	mu sync.Mutex

	AuthorizeStatus domain.PaymentStatus
	AuthorizeErr    error
	// TransientErrors возвращаются по одной перед AuthorizeErr/AuthorizeStatus.
	TransientErrors []error
	// DeclineAbove — суммы строго больше порога отклоняются. Ноль отключает порог.
	DeclineAbove decimal.Decimal
	VoidErr      error

	AuthorizeCalls int
	VoidCalls      int
	Voided         []string
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{AuthorizeStatus: domain.PaymentStatusAuthorized}
}

// Authorize возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) Authorize(_ context.Context, amount decimal.Decimal, method domain.PaymentMethod, _ map[string]string) (domain.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AuthorizeCalls++
	if len(m.TransientErrors) > 0 {
		err := m.TransientErrors[0]
		m.TransientErrors = m.TransientErrors[1:]
		return domain.PaymentResult{}, err
	}
	if m.AuthorizeErr != nil {
		return domain.PaymentResult{}, m.AuthorizeErr
	}
	if !method.Valid() {
		return domain.PaymentResult{}, domain.ErrPaymentMethodInvalid
	}
	if m.DeclineAbove.IsPositive() && amount.GreaterThan(m.DeclineAbove) {
		return domain.PaymentResult{Status: domain.PaymentStatusDeclined}, nil
	}
	if m.AuthorizeStatus != domain.PaymentStatusAuthorized {
		return domain.PaymentResult{Status: m.AuthorizeStatus}, nil
	}
	return domain.PaymentResult{
		Status:    domain.PaymentStatusAuthorized,
		Reference: fmt.Sprintf("%s-%s", method, uuid.NewString()),
	}, nil
}

// Void отменяет авторизацию и запоминает ссылку.
func (m *MockService) Void(_ context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VoidCalls++
	if m.VoidErr != nil {
		return m.VoidErr
	}
	m.Voided = append(m.Voided, reference)
	return nil
}

var _ domain.PaymentService = (*MockService)(nil)
