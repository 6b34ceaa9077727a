// Package storage описывает документное хранилище: именованные коллекции JSON-документов,
// которые целиком читаются и целиком перезаписываются.
package storage

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Имена коллекций.
const (
	CollectionProducts    = "products"
	CollectionAccounts    = "accounts"
	CollectionOrders      = "orders"
	CollectionOrderStatus = "order_status"
	CollectionOutbox      = "outbox"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Store — хранилище коллекций документов.
//
// Load на отсутствующей или пустой коллекции возвращает пустой срез без ошибки.
// Save полностью заменяет содержимое коллекции либо завершается ошибкой,
// не повреждая предыдущее содержимое. Ошибки ввода-вывода оборачивают domain.ErrStorageFailure.
// Store не синхронизирует цикл load-mutate-save между вызывающими: для этого есть Lock.
type Store interface {
	Load(ctx context.Context, collection string) ([]json.RawMessage, error)
	Save(ctx context.Context, collection string, docs []json.RawMessage) error
	Ping(ctx context.Context) error
	Close() error
}

// ValidateCollection проверяет имя коллекции: строчные латинские буквы, цифры и подчёркивания.
func ValidateCollection(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return domain.ErrCollectionInvalid
	}
	return nil
}

// CloneDocs возвращает глубокую копию документов.
func CloneDocs(docs []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		out[i] = append(json.RawMessage(nil), doc...)
	}
	return out
}
