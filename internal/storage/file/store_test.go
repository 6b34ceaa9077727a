package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestStoreLoadMissingAndEmpty(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	docs, err := store.Load(ctx, "products")
	require.NoError(t, err)
	require.Empty(t, docs)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "accounts.json"), []byte("  \n"), 0o644))
	docs, err = store.Load(ctx, "accounts")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	in := []json.RawMessage{
		json.RawMessage(`{"id":"p-1","price":"1000","stock_quantity":3}`),
		json.RawMessage(`{"id":"p-2","name":"Té","tags":["a","b"]}`),
	}
	require.NoError(t, store.Save(ctx, "products", in))

	out, err := store.Load(ctx, "products")
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		require.JSONEq(t, string(in[i]), string(out[i]))
	}

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStoreCorruptFileIsStorageFailure(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "orders.json"), []byte(`[{"id":`), 0o644))

	_, err := store.Load(context.Background(), "orders")
	require.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestStoreFailedSaveKeepsPreviousContent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, "orders", []json.RawMessage{json.RawMessage(`{"id":"o-1"}`)}))

	// Каталог на месте целевого файла не даёт rename перезаписать его.
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "sales.json"), 0o755))
	err := store.Save(ctx, "sales", []json.RawMessage{json.RawMessage(`{"id":"s-1"}`)})
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	docs, err := store.Load(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 2, "failed save must remove its temp file")
}

func TestStoreRejectsPathTraversal(t *testing.T) {
	store := openTestStore(t)
	err := store.Save(context.Background(), "../escape", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestStoreSaveNilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, "outbox", nil))

	data, err := os.ReadFile(filepath.Join(store.Dir(), "outbox.json"))
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(data))
	require.NoError(t, store.Ping(ctx))
}
