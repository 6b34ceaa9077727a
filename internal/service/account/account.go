// Package account владеет коллекцией аккаунтов: регистрация, аутентификация и администрирование.
package account

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/validate"
)

// ProductRemover удаляет товары поставщика при удалении его аккаунта.
type ProductRemover interface {
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)
}

// RegisterRequest — данные регистрации.
type RegisterRequest struct {
	NationalID  string
	Email       string
	Password    string
	Role        domain.Role
	DisplayName string
}

// BootstrapAdmin описывает администратора, который создаётся при первом запуске.
type BootstrapAdmin struct {
	ID          string
	NationalID  string
	Email       string
	Password    string
	DisplayName string
}

// DefaultBootstrapAdmin возвращает известную запись администратора с заданным паролем.
func DefaultBootstrapAdmin(password string) BootstrapAdmin {
	return BootstrapAdmin{
		ID:          "admin-001",
		NationalID:  "11111111-1",
		Email:       "admin@sistema.com",
		Password:    password,
		DisplayName: "Administrador del Sistema",
	}
}

// Manager — владелец коллекции accounts.
type Manager struct {
	accounts *storage.Collection[domain.Account]
	lock     *storage.Lock
	products ProductRemover
	logger   *log.Entry
	hashCost int
	now      func() time.Time
}

// Option настраивает Manager.
type Option func(*Manager)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithProductRemover задаёт каскадное удаление товаров поставщика.
func WithProductRemover(products ProductRemover) Option {
	return func(m *Manager) {
		m.products = products
	}
}

// WithHashCost задаёт стоимость bcrypt; в тестах используется bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(m *Manager) {
		m.hashCost = cost
	}
}

// NewManager создаёт менеджер аккаунтов.
func NewManager(store storage.Store, lock *storage.Lock, opts ...Option) *Manager {
	m := &Manager{
		accounts: storage.NewCollection[domain.Account](store, storage.CollectionAccounts),
		lock:     lock,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.New().WithField("component", "accounts")
	}
	if m.lock == nil {
		m.lock = storage.NewLock(storage.CollectionAccounts, 0)
	}
	return m
}

// Register проверяет данные, сохраняет аккаунт с хешем пароля и возвращает его идентификатор.
// Администратора нельзя зарегистрировать самостоятельно.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (string, error) {
	nationalID, ok := validate.RUT(req.NationalID)
	if !ok {
		return "", domain.ErrNationalIDInvalid
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		return "", domain.ErrEmailInvalid
	}
	if validate.PasswordTooLong(req.Password) {
		return "", domain.ErrPasswordTooLong
	}
	if !validate.Password(req.Password) {
		return "", domain.ErrPasswordWeak
	}
	if !req.Role.Valid() {
		return "", domain.ErrRoleInvalid
	}
	if req.Role == domain.RoleAdmin {
		return "", domain.NewValidationError("role", "admin accounts cannot be self-registered")
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return "", domain.ErrNameRequired
	}

	hash, err := hashPassword(req.Password, m.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	now := m.now()
	acc := domain.Account{
		ID:             uuid.NewString(),
		NationalID:     nationalID,
		Email:          email,
		CredentialHash: hash,
		Role:           req.Role,
		DisplayName:    name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = m.lock.Do(ctx, func() error {
		accounts, err := m.accounts.Load(ctx)
		if err != nil {
			return err
		}
		if err := checkUnique(accounts, acc); err != nil {
			return err
		}
		return m.accounts.Save(ctx, append(accounts, acc))
	})
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	m.logger.WithFields(log.Fields{"account_id": acc.ID, "role": acc.Role}).Info("account registered")
	return acc.ID, nil
}

// Authenticate ищет аккаунт по email (с учётом регистра) и сверяет пароль.
// Неизвестный email и неверный пароль неразличимы для вызывающего.
// Успешный вход по старому SHA-256 хешу переводит аккаунт на bcrypt.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (domain.Account, error) {
	accounts, err := m.accounts.Load(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	email = strings.TrimSpace(email)
	for _, acc := range accounts {
		if acc.Email != email {
			continue
		}
		if !checkPassword(acc.CredentialHash, password) {
			break
		}
		if err := checkStoredRole(acc); err != nil {
			return domain.Account{}, err
		}
		if isLegacyHash(acc.CredentialHash) {
			m.upgradeHash(ctx, acc.ID, password)
		}
		return acc, nil
	}

	m.logger.WithField("email", email).Info("authentication failed")
	return domain.Account{}, domain.ErrAuthenticationFailed
}

func (m *Manager) upgradeHash(ctx context.Context, id, password string) {
	hash, err := hashPassword(password, m.hashCost)
	if err == nil {
		err = m.update(ctx, id, func(acc *domain.Account) error {
			acc.CredentialHash = hash
			return nil
		})
	}
	if err != nil {
		m.logger.WithError(err).WithField("account_id", id).Warn("failed to upgrade legacy credential hash")
	}
}

// Get возвращает аккаунт по идентификатору.
func (m *Manager) Get(ctx context.Context, id string) (domain.Account, error) {
	accounts, err := m.accounts.Load(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	for _, acc := range accounts {
		if acc.ID == id {
			if err := checkStoredRole(acc); err != nil {
				return domain.Account{}, err
			}
			return acc, nil
		}
	}
	return domain.Account{}, accountNotFound(id)
}

// ListByRole возвращает аккаунты с ролью role, отсортированные по имени.
func (m *Manager) ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	if !role.Valid() {
		return nil, domain.ErrRoleInvalid
	}
	accounts, err := m.accounts.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Account, 0)
	for _, acc := range accounts {
		if acc.Role == role {
			result = append(result, acc)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].DisplayName < result[j].DisplayName })
	return result, nil
}

// Delete удаляет аккаунт по решению администратора. Удаление поставщика каскадно
// удаляет его товары; администраторов удалить нельзя. Товары удаляются до записи
// аккаунтов: если каскад не удался, аккаунт остаётся и Delete можно повторить.
func (m *Manager) Delete(ctx context.Context, actor domain.Account, id string) error {
	if actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: only admins can delete accounts", domain.ErrForbidden)
	}

	var (
		removed         domain.Account
		productsRemoved int
	)
	err := m.lock.Do(ctx, func() error {
		accounts, err := m.accounts.Load(ctx)
		if err != nil {
			return err
		}
		for i, acc := range accounts {
			if acc.ID != id {
				continue
			}
			if acc.Role == domain.RoleAdmin {
				return fmt.Errorf("%w: admin accounts cannot be deleted", domain.ErrForbidden)
			}
			if acc.Role == domain.RoleSupplier && m.products != nil {
				n, err := m.products.DeleteByOwner(ctx, id)
				if err != nil {
					return fmt.Errorf("delete products of supplier %s: %w", id, err)
				}
				productsRemoved = n
			}
			removed = acc
			return m.accounts.Save(ctx, append(accounts[:i], accounts[i+1:]...))
		}
		return accountNotFound(id)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	m.logger.WithFields(log.Fields{
		"account_id":       id,
		"role":             removed.Role,
		"actor_id":         actor.ID,
		"products_removed": productsRemoved,
	}).Info("account deleted")
	return nil
}

// UpdateStoreProfile обновляет витрину поставщика.
func (m *Manager) UpdateStoreProfile(ctx context.Context, supplierID string, profile domain.StoreProfile) (domain.Account, error) {
	if strings.TrimSpace(profile.StoreName) == "" {
		return domain.Account{}, domain.NewValidationError("store_name", "is required")
	}

	var updated domain.Account
	err := m.update(ctx, supplierID, func(acc *domain.Account) error {
		if acc.Role != domain.RoleSupplier {
			return fmt.Errorf("%w: store profile is available to suppliers only", domain.ErrForbidden)
		}
		p := profile
		acc.Store = &p
		acc.UpdatedAt = m.now()
		updated = *acc
		return nil
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("update store profile: %w", err)
	}
	return updated, nil
}

// EnsureBootstrapAdmin создаёт администратора, если аккаунта с его email ещё нет.
// Возвращает true, если запись была создана.
func (m *Manager) EnsureBootstrapAdmin(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	if admin.Password == "" {
		return false, domain.NewValidationError("admin.password", "is required to seed the admin account")
	}
	if validate.PasswordTooLong(admin.Password) {
		return false, domain.ErrPasswordTooLong
	}
	nationalID, ok := validate.RUT(admin.NationalID)
	if !ok {
		return false, domain.ErrNationalIDInvalid
	}

	hash, err := hashPassword(admin.Password, m.hashCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}

	created := false
	err = m.lock.Do(ctx, func() error {
		accounts, err := m.accounts.Load(ctx)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			if acc.Email == admin.Email || acc.ID == admin.ID {
				return nil
			}
		}

		now := m.now()
		created = true
		return m.accounts.Save(ctx, append(accounts, domain.Account{
			ID:             admin.ID,
			NationalID:     nationalID,
			Email:          admin.Email,
			CredentialHash: hash,
			Role:           domain.RoleAdmin,
			DisplayName:    admin.DisplayName,
			CreatedAt:      now,
			UpdatedAt:      now,
		}))
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	if created {
		m.logger.WithField("account_id", admin.ID).Info("bootstrap admin created")
	}
	return created, nil
}

func (m *Manager) update(ctx context.Context, id string, fn func(*domain.Account) error) error {
	return m.lock.Do(ctx, func() error {
		accounts, err := m.accounts.Load(ctx)
		if err != nil {
			return err
		}
		for i := range accounts {
			if accounts[i].ID != id {
				continue
			}
			if err := fn(&accounts[i]); err != nil {
				return err
			}
			return m.accounts.Save(ctx, accounts)
		}
		return accountNotFound(id)
	})
}

func checkUnique(accounts []domain.Account, candidate domain.Account) error {
	for _, acc := range accounts {
		if normalized, ok := validate.NormalizeRUT(acc.NationalID); ok && normalized == candidate.NationalID {
			return domain.ErrNationalIDTaken
		}
		if acc.Email == candidate.Email {
			return domain.ErrEmailTaken
		}
	}
	return nil
}

// checkStoredRole отклоняет запись с ролью вне перечисления (например, правленную вручную).
func checkStoredRole(acc domain.Account) error {
	if acc.Role.Valid() {
		return nil
	}
	return fmt.Errorf("%w: account %s has unknown role %q", domain.ErrStorageFailure, acc.ID, acc.Role)
}

func accountNotFound(id string) error {
	return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
}
