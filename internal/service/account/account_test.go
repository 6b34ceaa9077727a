package account

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fakeRemover struct {
	owners []string
	err    error
}

func (f *fakeRemover) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	f.owners = append(f.owners, ownerID)
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	opts = append([]Option{WithLogger(loggerForTests()), WithHashCost(bcrypt.MinCost)}, opts...)
	return NewManager(store, storage.NewLock(storage.CollectionAccounts, time.Second), opts...), store
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		NationalID:  "12.345.678-5",
		Email:       "ana@tienda.cl",
		Password:    "Secret1",
		Role:        domain.RoleCustomer,
		DisplayName: "Ana",
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	id, err := m.Register(ctx, validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	acc, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "12345678-5", acc.NationalID)
	require.True(t, strings.HasPrefix(acc.CredentialHash, "$2"))

	docs, err := store.Load(ctx, storage.CollectionAccounts)
	require.NoError(t, err)
	require.NotContains(t, string(docs[0]), "Secret1", "plaintext must never be persisted")

	got, err := m.Authenticate(ctx, "ana@tienda.cl", "Secret1")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)

	_, err = m.Authenticate(ctx, "ana@tienda.cl", "Wrong1")
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	_, err = m.Authenticate(ctx, "ANA@tienda.cl", "Secret1")
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	_, err = m.Authenticate(ctx, "nobody@tienda.cl", "Secret1")
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(r *RegisterRequest)
		want error
	}{
		{name: "bad check digit", mut: func(r *RegisterRequest) { r.NationalID = "12345678-4" }, want: domain.ErrNationalIDInvalid},
		{name: "bad email", mut: func(r *RegisterRequest) { r.Email = "ana@" }, want: domain.ErrEmailInvalid},
		{name: "short password", mut: func(r *RegisterRequest) { r.Password = "Ab1" }, want: domain.ErrPasswordWeak},
		{name: "no uppercase", mut: func(r *RegisterRequest) { r.Password = "secret1" }, want: domain.ErrPasswordWeak},
		{name: "no digit", mut: func(r *RegisterRequest) { r.Password = "Secreto" }, want: domain.ErrPasswordWeak},
		{name: "password over bcrypt limit", mut: func(r *RegisterRequest) { r.Password = "Secret1" + strings.Repeat("x", 75) }, want: domain.ErrPasswordTooLong},
		{name: "unknown role", mut: func(r *RegisterRequest) { r.Role = "root" }, want: domain.ErrRoleInvalid},
		{name: "admin", mut: func(r *RegisterRequest) { r.Role = domain.RoleAdmin }, want: domain.ErrValidation},
		{name: "no name", mut: func(r *RegisterRequest) { r.DisplayName = " " }, want: domain.ErrNameRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m, store := newTestManager(t)

			req := validRequest()
			tc.mut(&req)
			_, err := m.Register(ctx, req)
			require.ErrorIs(t, err, tc.want)
			require.True(t, domain.IsValidation(err))

			docs, err := store.Load(ctx, storage.CollectionAccounts)
			require.NoError(t, err)
			require.Empty(t, docs, "no account must be created")
		})
	}
}

func TestRegisterUniqueness(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	_, err := m.Register(ctx, validRequest())
	require.NoError(t, err)

	dupRUT := validRequest()
	dupRUT.Email = "otra@tienda.cl"
	dupRUT.NationalID = "123456785"
	_, err = m.Register(ctx, dupRUT)
	require.ErrorIs(t, err, domain.ErrNationalIDTaken)

	leadingZero := validRequest()
	leadingZero.Email = "cero@tienda.cl"
	leadingZero.NationalID = "012.345.678-5"
	_, err = m.Register(ctx, leadingZero)
	require.ErrorIs(t, err, domain.ErrNationalIDTaken)

	dupEmail := validRequest()
	dupEmail.NationalID = "7654321-6"
	_, err = m.Register(ctx, dupEmail)
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	otherCase := validRequest()
	otherCase.NationalID = "7654321-6"
	otherCase.Email = "Ana@tienda.cl"
	_, err = m.Register(ctx, otherCase)
	require.NoError(t, err, "emails are compared as stored")
}

func TestAuthenticateLegacyHashIsUpgraded(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	legacy := domain.Account{
		ID:             "admin-001",
		NationalID:     "11111111-1",
		Email:          "admin@sistema.com",
		CredentialHash: "ef92b778bafe771e89245b89ecbc08a44a4e166c06659911881f383d4473e94f",
		Role:           domain.RoleAdmin,
		DisplayName:    "Administrador del Sistema",
	}
	doc, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, storage.CollectionAccounts, []json.RawMessage{doc}))

	acc, err := m.Authenticate(ctx, "admin@sistema.com", "password123")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, acc.Role)

	stored, err := m.Get(ctx, "admin-001")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.CredentialHash, "$2"))

	_, err = m.Authenticate(ctx, "admin@sistema.com", "password123")
	require.NoError(t, err)
	_, err = m.Authenticate(ctx, "admin@sistema.com", "password124")
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestDeleteRules(t *testing.T) {
	ctx := context.Background()
	remover := &fakeRemover{}
	m, _ := newTestManager(t, WithProductRemover(remover))

	created, err := m.EnsureBootstrapAdmin(ctx, DefaultBootstrapAdmin("password123"))
	require.NoError(t, err)
	require.True(t, created)
	admin, err := m.Get(ctx, "admin-001")
	require.NoError(t, err)

	supplierReq := validRequest()
	supplierReq.Role = domain.RoleSupplier
	supplierID, err := m.Register(ctx, supplierReq)
	require.NoError(t, err)
	supplier, err := m.Get(ctx, supplierID)
	require.NoError(t, err)

	require.ErrorIs(t, m.Delete(ctx, supplier, admin.ID), domain.ErrForbidden)
	require.ErrorIs(t, m.Delete(ctx, admin, admin.ID), domain.ErrForbidden)
	require.ErrorIs(t, m.Delete(ctx, admin, "missing"), domain.ErrNotFound)

	require.NoError(t, m.Delete(ctx, admin, supplierID))
	require.Equal(t, []string{supplierID}, remover.owners)

	_, err = m.Get(ctx, supplierID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteSupplierKeepsAccountWhenCascadeFails(t *testing.T) {
	ctx := context.Background()
	remover := &fakeRemover{err: fmt.Errorf("%w: products lock timed out", domain.ErrPersistenceFailure)}
	m, _ := newTestManager(t, WithProductRemover(remover))

	_, err := m.EnsureBootstrapAdmin(ctx, DefaultBootstrapAdmin("password123"))
	require.NoError(t, err)
	admin, err := m.Get(ctx, "admin-001")
	require.NoError(t, err)

	supplierReq := validRequest()
	supplierReq.Role = domain.RoleSupplier
	supplierID, err := m.Register(ctx, supplierReq)
	require.NoError(t, err)

	err = m.Delete(ctx, admin, supplierID)
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)

	_, err = m.Get(ctx, supplierID)
	require.NoError(t, err, "supplier must survive a failed cascade")

	remover.err = nil
	require.NoError(t, m.Delete(ctx, admin, supplierID))
	require.Equal(t, []string{supplierID, supplierID}, remover.owners)
	_, err = m.Get(ctx, supplierID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoredAccountWithUnknownRoleIsRejected(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("Secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	doc, err := json.Marshal(domain.Account{
		ID:             "acc-root",
		NationalID:     "12345678-5",
		Email:          "root@tienda.cl",
		CredentialHash: string(hash),
		Role:           "root",
		DisplayName:    "Root",
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, storage.CollectionAccounts, []json.RawMessage{doc}))

	_, err = m.Get(ctx, "acc-root")
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	_, err = m.Authenticate(ctx, "root@tienda.cl", "Secret1")
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	_, err = m.Authenticate(ctx, "root@tienda.cl", "Wrong1")
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestEnsureBootstrapAdminRejectsOverlongPassword(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.EnsureBootstrapAdmin(context.Background(), DefaultBootstrapAdmin(strings.Repeat("P4ss", 20)))
	require.ErrorIs(t, err, domain.ErrPasswordTooLong)
}

func TestEnsureBootstrapAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	created, err := m.EnsureBootstrapAdmin(ctx, DefaultBootstrapAdmin("password123"))
	require.NoError(t, err)
	require.True(t, created)

	created, err = m.EnsureBootstrapAdmin(ctx, DefaultBootstrapAdmin("другой"))
	require.NoError(t, err)
	require.False(t, created)

	admins, err := m.ListByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)

	_, err = m.Authenticate(ctx, "admin@sistema.com", "password123")
	require.NoError(t, err)

	_, err = m.EnsureBootstrapAdmin(ctx, DefaultBootstrapAdmin(""))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateStoreProfile(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	customerID, err := m.Register(ctx, validRequest())
	require.NoError(t, err)

	supplierReq := validRequest()
	supplierReq.Role = domain.RoleSupplier
	supplierReq.NationalID = "7654321-6"
	supplierReq.Email = "bo@tienda.cl"
	supplierID, err := m.Register(ctx, supplierReq)
	require.NoError(t, err)

	profile := domain.StoreProfile{StoreName: "Bo Mates", StoreDescription: "Mates artesanales", ContactPhone: "+56 9 1234 5678"}
	acc, err := m.UpdateStoreProfile(ctx, supplierID, profile)
	require.NoError(t, err)
	require.Equal(t, &profile, acc.Store)

	_, err = m.UpdateStoreProfile(ctx, customerID, profile)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = m.UpdateStoreProfile(ctx, supplierID, domain.StoreProfile{})
	require.ErrorIs(t, err, domain.ErrValidation)

	suppliers, err := m.ListByRole(ctx, domain.RoleSupplier)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	require.Equal(t, "Bo Mates", suppliers[0].Store.StoreName)
}
