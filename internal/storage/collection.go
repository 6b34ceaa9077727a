package storage

import (
	"context"
	"encoding/json"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Collection — типизированная обёртка над коллекцией Store, отвечающая за JSON-кодирование.
type Collection[T any] struct {
	store Store
	name  string
}

// NewCollection создаёт обёртку над коллекцией name.
func NewCollection[T any](store Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

// Name возвращает имя коллекции.
func (c *Collection[T]) Name() string {
	return c.name
}

// Load читает и декодирует все документы коллекции.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	docs, err := c.store.Load(ctx, c.name)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc, &item); err != nil {
			return nil, domain.StorageError("decode", c.name, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Save кодирует элементы и полностью заменяет коллекцию.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	docs, err := encodeAll(c.name, items)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, c.name, docs)
}

// Append дописывает элементы в конец коллекции, не декодируя уже сохранённые документы.
func (c *Collection[T]) Append(ctx context.Context, items ...T) error {
	docs, err := c.store.Load(ctx, c.name)
	if err != nil {
		return err
	}
	extra, err := encodeAll(c.name, items)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, c.name, append(docs, extra...))
}

func encodeAll[T any](name string, items []T) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return nil, domain.StorageError("encode", name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
