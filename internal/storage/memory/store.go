package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

// Store — in-memory реализация документного хранилища для тестов и локального запуска.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]json.RawMessage
	saveErrs    map[string]error
	saves       map[string]int
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		collections: make(map[string][]json.RawMessage),
		saveErrs:    make(map[string]error),
		saves:       make(map[string]int),
	}
}

// Load возвращает копию документов коллекции.
func (s *Store) Load(_ context.Context, collection string) ([]json.RawMessage, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.CloneDocs(s.collections[collection]), nil
}

// Save заменяет коллекцию копией docs. Ошибка, заданная через FailSaves, возвращается
// без изменения содержимого.
func (s *Store) Save(_ context.Context, collection string, docs []json.RawMessage) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveErrs[collection]; err != nil {
		return domain.StorageError("save", collection, err)
	}
	s.collections[collection] = storage.CloneDocs(docs)
	s.saves[collection]++
	return nil
}

// FailSaves заставляет все последующие Save в коллекцию возвращать err. nil снимает сбой.
func (s *Store) FailSaves(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.saveErrs, collection)
		return
	}
	s.saveErrs[collection] = err
}

// SaveCount возвращает число успешных Save в коллекцию.
func (s *Store) SaveCount(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.saves[collection]
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close ничего не делает.
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
