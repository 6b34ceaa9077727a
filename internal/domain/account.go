package domain

import "time"

// Role — закрытый набор ролей аккаунта.
type Role string

const (
	// RoleCustomer — покупатель, оформляет заказы.
	RoleCustomer Role = "customer"
	// RoleSupplier — поставщик, управляет своими товарами и видит свои продажи.
	RoleSupplier Role = "supplier"
	// RoleAdmin — администратор магазина.
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSupplier, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole разбирает строковое представление роли.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrRoleInvalid
	}
	return r, nil
}

// StoreProfile хранит витрину поставщика.
type StoreProfile struct {
	StoreName        string `json:"store_name"`
	StoreDescription string `json:"store_description"`
	ContactPhone     string `json:"contact_phone"`
}

// Account — зарегистрированный пользователь. Пароль хранится только в виде хеша.
type Account struct {
	ID             string        `json:"id"`
	NationalID     string        `json:"national_id"`
	Email          string        `json:"email"`
	CredentialHash string        `json:"credential_hash"`
	Role           Role          `json:"role"`
	DisplayName    string        `json:"display_name"`
	Store          *StoreProfile `json:"store,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CanManageCatalog сообщает, может ли аккаунт создавать и править товары.
func (a Account) CanManageCatalog() bool {
	return a.Role == RoleSupplier || a.Role == RoleAdmin
}

// CanManageProduct проверяет права на конкретный товар: админ управляет любым,
// поставщик только своими.
func (a Account) CanManageProduct(p Product) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleSupplier:
		return p.OwnerID == a.ID
	default:
		return false
	}
}
