package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.NewStore(), time.Second)

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "o-1", EventType: domain.EventOrderPlaced, Payload: []byte(`{"id":"o-1"}`)})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, domain.OutboxStatusPending, first.Status)

	second, err := repo.Enqueue(ctx, domain.OutboxMessage{ID: "fixed", AggregateID: "o-2", EventType: domain.EventOrderPlaced})
	require.NoError(t, err)
	require.Equal(t, "fixed", second.ID)

	pending, err := repo.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, []byte(`{"id":"o-1"}`), pending[0].Payload)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.True(t, stats.OldestPendingAt.Equal(first.CreatedAt))

	require.NoError(t, repo.MarkSent(ctx, first.ID))
	require.NoError(t, repo.MarkFailed(ctx, second.ID))

	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, repo.Requeue(ctx, second.ID))
	pending, err = repo.PullPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].Attempts)
}

func TestRepositoryMarkUnknown(t *testing.T) {
	repo := NewRepository(memory.NewStore(), time.Second)
	err := repo.MarkSent(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
