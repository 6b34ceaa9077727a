package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

func TestOrderSurvivesFileCollection(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	orders := storage.NewCollection[domain.Order](store, storage.CollectionOrders)

	placed := time.Date(2026, 3, 14, 18, 5, 9, 123456789, time.FixedZone("CLT", -3*3600))
	in := domain.Order{
		ID:      "o-1",
		BuyerID: "acc-1",
		LineItems: []domain.LineItem{
			{
				ProductID:           "p-1",
				ProductName:         "Café de grano",
				SellerID:            "sup-1",
				Quantity:            3,
				UnitPriceAtPurchase: decimal.RequireFromString("4990.50"),
				Subtotal:            decimal.RequireFromString("14971.50"),
			},
			{
				ProductID:           "p-2",
				ProductName:         "Taza",
				Quantity:            1,
				UnitPriceAtPurchase: decimal.RequireFromString("0.01"),
				Subtotal:            decimal.RequireFromString("0.01"),
			},
		},
		Shipping: domain.ShippingInfo{
			FullName:   "Ñandú Pérez",
			Address:    "Av. Providencia 1234, depto 5",
			PostalCode: "7500000",
			NationalID: "12345678-5",
		},
		PaymentMethod:  domain.PaymentMethodMach,
		DiscountCode:   "DESCUENTO15",
		DiscountRate:   decimal.RequireFromString("0.15"),
		GrossTotal:     decimal.RequireFromString("14971.51"),
		NetTotal:       decimal.RequireFromString("12725.7835"),
		Currency:       "CLP",
		PaymentRef:     "pay-77",
		IdempotencyKey: "idem-1",
		PlacedAt:       placed,
	}
	require.NoError(t, orders.Save(ctx, []domain.Order{in}))

	// Повторное открытие каталога имитирует перезапуск процесса.
	reopened, err := Open(store.Dir(), nil)
	require.NoError(t, err)
	loaded, err := storage.NewCollection[domain.Order](reopened, storage.CollectionOrders).Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	out := loaded[0]

	require.Equal(t, in.ID, out.ID)
	require.Equal(t, in.BuyerID, out.BuyerID)
	require.Equal(t, in.Shipping, out.Shipping)
	require.Equal(t, in.PaymentMethod, out.PaymentMethod)
	require.Equal(t, in.DiscountCode, out.DiscountCode)
	require.Equal(t, in.Currency, out.Currency)
	require.Equal(t, in.PaymentRef, out.PaymentRef)
	require.Equal(t, in.IdempotencyKey, out.IdempotencyKey)
	require.True(t, in.DiscountRate.Equal(out.DiscountRate), "discount rate %s", out.DiscountRate)
	require.True(t, in.GrossTotal.Equal(out.GrossTotal), "gross total %s", out.GrossTotal)
	require.True(t, in.NetTotal.Equal(out.NetTotal), "net total %s", out.NetTotal)
	require.True(t, in.PlacedAt.Equal(out.PlacedAt), "placed at %s", out.PlacedAt)

	require.Len(t, out.LineItems, len(in.LineItems))
	for i, want := range in.LineItems {
		got := out.LineItems[i]
		require.Equal(t, want.ProductID, got.ProductID)
		require.Equal(t, want.ProductName, got.ProductName)
		require.Equal(t, want.SellerID, got.SellerID)
		require.Equal(t, want.Quantity, got.Quantity)
		require.True(t, want.UnitPriceAtPurchase.Equal(got.UnitPriceAtPurchase), "line %d unit price %s", i, got.UnitPriceAtPurchase)
		require.True(t, want.Subtotal.Equal(got.Subtotal), "line %d subtotal %s", i, got.Subtotal)
	}
	require.Empty(t, out.ValidateInvariants())

	// Десятичные суммы пишутся строками, чтобы не терять точность на float64.
	raw, err := os.ReadFile(filepath.Join(store.Dir(), "orders.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"net_total": "12725.7835"`)
}

func TestAccountSurvivesFileCollection(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	accounts := storage.NewCollection[domain.Account](store, storage.CollectionAccounts)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	supplier := domain.Account{
		ID:             "sup-1",
		NationalID:     "12345678-5",
		Email:          "tienda@example.cl",
		CredentialHash: "$2a$10$abcdefghijklmnopqrstuuJ2C8pD7cQ3rW0y1Vn5mHbq6gFzXeTiS",
		Role:           domain.RoleSupplier,
		DisplayName:    "Tienda Sur",
		Store: &domain.StoreProfile{
			StoreName:        "Tienda Sur",
			StoreDescription: "Productos del sur",
			ContactPhone:     "+56 9 1234 5678",
		},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}
	customer := domain.Account{
		ID:             "cus-1",
		NationalID:     "11111111-1",
		Email:          "cliente@example.cl",
		CredentialHash: "$2a$10$zyxwvutsrqponmlkjihgfeuJ2C8pD7cQ3rW0y1Vn5mHbq6gFzXeTiS",
		Role:           domain.RoleCustomer,
		DisplayName:    "Cliente",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, accounts.Save(ctx, []domain.Account{supplier}))
	require.NoError(t, accounts.Append(ctx, customer))

	loaded, err := accounts.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Account{supplier, customer}, loaded)
	require.NotNil(t, loaded[0].Store)
	require.Nil(t, loaded[1].Store)
	require.True(t, loaded[0].Role.Valid())

	raw, err := os.ReadFile(filepath.Join(store.Dir(), "accounts.json"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "null")
}
