// Package catalog владеет коллекцией товаров: создание, правка, удаление и резервирование остатков.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

// Manager — единственный владелец коллекции products. Каждая мутация выполняется
// циклом load-mutate-save под блокировкой коллекции.
type Manager struct {
	products *storage.Collection[domain.Product]
	lock     *storage.Lock
	images   domain.ImageStore
	logger   *log.Entry
	now      func() time.Time
}

// Option настраивает Manager.
type Option func(*Manager)

// WithImageStore задаёт хранилище изображений для очистки при удалении товара.
func WithImageStore(images domain.ImageStore) Option {
	return func(m *Manager) {
		m.images = images
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager создаёт менеджер каталога.
func NewManager(store storage.Store, lock *storage.Lock, opts ...Option) *Manager {
	m := &Manager{
		products: storage.NewCollection[domain.Product](store, storage.CollectionProducts),
		lock:     lock,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.New().WithField("component", "catalog")
	}
	if m.lock == nil {
		m.lock = storage.NewLock(storage.CollectionProducts, 0)
	}
	return m
}

// AddProduct создаёт товар со свежим идентификатором.
func (m *Manager) AddProduct(ctx context.Context, fields domain.ProductFields) (domain.Product, error) {
	now := m.now()
	product := domain.Product{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	fields.Apply(&product)
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	err := m.lock.Do(ctx, func() error {
		return m.products.Append(ctx, product)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("add product: %w", err)
	}

	m.logger.WithFields(log.Fields{"product_id": product.ID, "owner_id": product.OwnerID}).Info("product added")
	return product, nil
}

// UpdateProduct применяет частичное обновление. Валидация та же, что при создании.
func (m *Manager) UpdateProduct(ctx context.Context, id string, fields domain.ProductFields) (domain.Product, error) {
	var updated domain.Product

	err := m.mutate(ctx, func(products []domain.Product) ([]domain.Product, error) {
		idx := indexOf(products, id)
		if idx < 0 {
			return nil, productNotFound(id)
		}

		candidate := products[idx]
		fields.Apply(&candidate)
		if errs := candidate.Validate(); len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		candidate.UpdatedAt = m.now()
		products[idx] = candidate
		updated = candidate
		return products, nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	return updated, nil
}

// DeleteProduct удаляет товар и после сохранения пытается удалить его изображение.
// Ошибка удаления изображения только логируется.
func (m *Manager) DeleteProduct(ctx context.Context, id string) error {
	var removed domain.Product

	err := m.mutate(ctx, func(products []domain.Product) ([]domain.Product, error) {
		idx := indexOf(products, id)
		if idx < 0 {
			return nil, productNotFound(id)
		}
		removed = products[idx]
		return append(products[:idx], products[idx+1:]...), nil
	})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	m.removeImage(removed)
	m.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// DeleteByOwner удаляет все товары поставщика и возвращает их количество.
func (m *Manager) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, nil
	}

	var removed []domain.Product
	err := m.mutate(ctx, func(products []domain.Product) ([]domain.Product, error) {
		kept := products[:0]
		for _, p := range products {
			if p.OwnerID == ownerID {
				removed = append(removed, p)
				continue
			}
			kept = append(kept, p)
		}
		return kept, nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete products of owner %s: %w", ownerID, err)
	}

	for _, p := range removed {
		m.removeImage(p)
	}
	if len(removed) > 0 {
		m.logger.WithFields(log.Fields{"owner_id": ownerID, "count": len(removed)}).Info("owner products deleted")
	}
	return len(removed), nil
}

// ReserveStock атомарно проверяет остаток и списывает qty единиц.
// Это единственная точка сериализации, защищающая от перепродажи.
func (m *Manager) ReserveStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return domain.ErrQuantityInvalid
	}

	return m.mutate(ctx, func(products []domain.Product) ([]domain.Product, error) {
		idx := indexOf(products, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, id)
		}
		if products[idx].StockQuantity < qty {
			return nil, fmt.Errorf("%w: product %s has %d, requested %d",
				domain.ErrInsufficientStock, id, products[idx].StockQuantity, qty)
		}
		products[idx].StockQuantity -= qty
		return products, nil
	})
}

// ReleaseStock возвращает qty единиц на склад (компенсация резерва).
func (m *Manager) ReleaseStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return domain.ErrQuantityInvalid
	}

	return m.mutate(ctx, func(products []domain.Product) ([]domain.Product, error) {
		idx := indexOf(products, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, id)
		}
		products[idx].StockQuantity += qty
		return products, nil
	})
}

// Get возвращает товар по идентификатору.
func (m *Manager) Get(ctx context.Context, id string) (domain.Product, error) {
	products, err := m.products.Load(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	idx := indexOf(products, id)
	if idx < 0 {
		return domain.Product{}, productNotFound(id)
	}
	return products[idx], nil
}

// ListAll возвращает все товары, отсортированные по имени.
func (m *Manager) ListAll(ctx context.Context) ([]domain.Product, error) {
	products, err := m.products.Load(ctx)
	if err != nil {
		return nil, err
	}
	sortByName(products)
	return products, nil
}

// ListByOwner возвращает товары поставщика, отсортированные по имени.
func (m *Manager) ListByOwner(ctx context.Context, ownerID string) ([]domain.Product, error) {
	products, err := m.products.Load(ctx)
	if err != nil {
		return nil, err
	}

	owned := make([]domain.Product, 0)
	for _, p := range products {
		if p.OwnerID == ownerID {
			owned = append(owned, p)
		}
	}
	sortByName(owned)
	return owned, nil
}

func (m *Manager) mutate(ctx context.Context, fn func([]domain.Product) ([]domain.Product, error)) error {
	return m.lock.Do(ctx, func() error {
		products, err := m.products.Load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(products)
		if err != nil {
			return err
		}
		return m.products.Save(ctx, next)
	})
}

func (m *Manager) removeImage(p domain.Product) {
	if m.images == nil || p.ImageRef == "" {
		return
	}
	if err := m.images.Remove(p.ImageRef); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"product_id": p.ID,
			"image_ref":  p.ImageRef,
		}).Warn("failed to remove product image")
	}
}

func indexOf(products []domain.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func productNotFound(id string) error {
	return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
}

func sortByName(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Name == products[j].Name {
			return products[i].ID < products[j].ID
		}
		return products[i].Name < products[j].Name
	})
}
