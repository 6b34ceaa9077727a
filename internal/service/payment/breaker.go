package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ErrCircuitOpen возвращается, пока breaker не пропускает вызовы.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker — простая реализация circuit breaker.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	lastFailure  time.Time
	state        CircuitState
	logger       *log.Entry
	now          func() time.Time
}

// NewCircuitBreaker создаёт breaker, открывающийся после maxFailures ошибок подряд.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
		now:          time.Now,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет операцию через circuit breaker.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("circuit breaker opened")
		}
		return err
	}

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.logger.WithField("operation", operation).Info("circuit breaker closed")
	}
	cb.failures = 0
	return nil
}

// GuardedService защищает платёжный шлюз circuit breaker'ом. Отказ провайдера не считается
// сбоем; открытый breaker отдаётся как временная ошибка.
type GuardedService struct {
	next    domain.PaymentService
	breaker *CircuitBreaker
}

// NewGuardedService оборачивает next.
func NewGuardedService(next domain.PaymentService, breaker *CircuitBreaker) *GuardedService {
	return &GuardedService{next: next, breaker: breaker}
}

// Authorize вызывает шлюз через breaker.
func (g *GuardedService) Authorize(ctx context.Context, amount decimal.Decimal, method domain.PaymentMethod, details map[string]string) (domain.PaymentResult, error) {
	var result domain.PaymentResult
	err := g.breaker.Execute("authorize", func() error {
		var err error
		result, err = g.next.Authorize(ctx, amount, method, details)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return domain.PaymentResult{}, fmt.Errorf("%w: %w", domain.ErrPaymentTemporary, err)
	}
	return result, err
}

// Void вызывает шлюз через breaker.
func (g *GuardedService) Void(ctx context.Context, reference string) error {
	err := g.breaker.Execute("void", func() error {
		return g.next.Void(ctx, reference)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", domain.ErrPaymentTemporary, err)
	}
	return err
}

var _ domain.PaymentService = (*GuardedService)(nil)
