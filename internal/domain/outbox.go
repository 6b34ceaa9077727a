package domain

import "time"

// OutboxStatus — состояние записи transactional outbox.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// AggregateTypeOrder — тип агрегата для событий заказа.
const AggregateTypeOrder = "order"

// EventOrderPlaced — тип события о новом заказе.
const EventOrderPlaced = "order.placed"

// EventOrderStatusChanged — тип события о смене статуса заказа.
const EventOrderStatusChanged = "order.status_changed"

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string       `json:"id"`
	AggregateType string       `json:"aggregate_type"`
	AggregateID   string       `json:"aggregate_id"`
	EventType     string       `json:"event_type"`
	Payload       []byte       `json:"payload"`
	Status        OutboxStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
