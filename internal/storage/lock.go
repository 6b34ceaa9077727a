package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// DefaultLockTimeout — ожидание захвата по умолчанию.
const DefaultLockTimeout = 5 * time.Second

// Lock — взаимное исключение для цикла load-mutate-save над одной коллекцией.
// В отличие от sync.Mutex захват ограничен по времени и отменяется через ctx.
type Lock struct {
	name    string
	sem     chan struct{}
	timeout time.Duration
}

// NewLock создаёт блокировку коллекции. timeout<=0 означает DefaultLockTimeout.
func NewLock(name string, timeout time.Duration) *Lock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Lock{name: name, sem: make(chan struct{}, 1), timeout: timeout}
}

// Acquire захватывает блокировку и возвращает функцию освобождения.
// Если захват не удался за отведённое время, возвращается ошибка, оборачивающая ErrPersistenceFailure.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: lock %s not acquired within %s", domain.ErrPersistenceFailure, l.name, l.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: lock %s: %w", domain.ErrPersistenceFailure, l.name, ctx.Err())
	}
}

// Do выполняет fn под блокировкой.
func (l *Lock) Do(ctx context.Context, fn func() error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
