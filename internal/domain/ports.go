package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentResult — ответ платёжного провайдера на авторизацию.
type PaymentResult struct {
	Status PaymentStatus
	// Reference — идентификатор авторизации у провайдера, нужен для отмены.
	Reference string
}

// Approved сообщает, одобрен ли платёж.
func (r PaymentResult) Approved() bool {
	return r.Status == PaymentStatusAuthorized
}

// PaymentService описывает взаимодействие с платёжным провайдером.
type PaymentService interface {
	// Authorize резервирует сумму. Отказ провайдера возвращается как PaymentStatusDeclined,
	// временные сбои — как ErrPaymentTemporary.
	Authorize(ctx context.Context, amount decimal.Decimal, method PaymentMethod, details map[string]string) (PaymentResult, error)
	// Void отменяет ранее выданную авторизацию (компенсация).
	Void(ctx context.Context, reference string) error
}

// DiscountResolver сопоставляет код скидки со ставкой из [0, 1].
type DiscountResolver interface {
	Rate(code string) (decimal.Decimal, error)
}

// ImageStore удаляет сохранённые изображения товаров.
type ImageStore interface {
	Remove(ref string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}
