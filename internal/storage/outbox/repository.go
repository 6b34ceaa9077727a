// Package outbox хранит transactional outbox в коллекции документного хранилища.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

const defaultPullLimit = 100

// Repository — outbox поверх storage.Store. Все изменения идут под собственной блокировкой коллекции.
type Repository struct {
	coll *storage.Collection[domain.OutboxMessage]
	lock *storage.Lock
	now  func() time.Time
}

// NewRepository создаёт outbox-репозиторий над коллекцией outbox.
func NewRepository(store storage.Store, lockTimeout time.Duration) *Repository {
	return &Repository{
		coll: storage.NewCollection[domain.OutboxMessage](store, storage.CollectionOutbox),
		lock: storage.NewLock(storage.CollectionOutbox, lockTimeout),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue сохраняет событие со статусом pending.
func (r *Repository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := r.now()
	msg.Status = domain.OutboxStatusPending
	msg.Attempts = 0
	msg.CreatedAt = now
	msg.UpdatedAt = now

	err := r.lock.Do(ctx, func() error {
		return r.coll.Append(ctx, msg)
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом pending в порядке постановки.
func (r *Repository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultPullLimit
	}

	all, err := r.coll.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.OutboxMessage, 0, min(limit, len(all)))
	for _, msg := range all {
		if msg.Status != domain.OutboxStatusPending {
			continue
		}
		result = append(result, msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер backlog и время самой старой pending-записи.
func (r *Repository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	all, err := r.coll.Load(ctx)
	if err != nil {
		return domain.OutboxStats{}, err
	}

	var stats domain.OutboxStats
	for _, msg := range all {
		if msg.Status != domain.OutboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || msg.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = msg.CreatedAt
		}
	}
	return stats, nil
}

// MarkSent фиксирует успешную публикацию.
func (r *Repository) MarkSent(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.OutboxStatusSent)
}

// MarkFailed фиксирует исчерпание попыток публикации.
func (r *Repository) MarkFailed(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.OutboxStatusFailed)
}

// Requeue возвращает failed-сообщение в pending для повторной публикации.
func (r *Repository) Requeue(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.OutboxStatusPending)
}

func (r *Repository) setStatus(ctx context.Context, id string, status domain.OutboxStatus) error {
	return r.lock.Do(ctx, func() error {
		all, err := r.coll.Load(ctx)
		if err != nil {
			return err
		}

		for i := range all {
			if all[i].ID != id {
				continue
			}
			all[i].Status = status
			if status != domain.OutboxStatusPending {
				all[i].Attempts++
			}
			all[i].UpdatedAt = r.now()
			return r.coll.Save(ctx, all)
		}
		return fmt.Errorf("%w: outbox message %s", domain.ErrNotFound, id)
	})
}

var _ domain.OutboxRepository = (*Repository)(nil)
