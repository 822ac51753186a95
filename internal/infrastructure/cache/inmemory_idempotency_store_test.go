package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *shared.FixedClock) {
	t.Helper()
	clock := shared.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := NewInMemoryIdempotencyStoreWithClock(clock, time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("marks new key", func(t *testing.T) {
		store, _ := newClockedStore(t)

		isNew, err := store.MarkProcessed(ctx, "payment:ref-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("returns false for a marked key", func(t *testing.T) {
		store, _ := newClockedStore(t)

		_, err := store.MarkProcessed(ctx, "payment:ref-2", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "payment:ref-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("allows the key again after expiry", func(t *testing.T) {
		store, clock := newClockedStore(t)

		_, err := store.MarkProcessed(ctx, "payment:ref-3", time.Minute)
		require.NoError(t, err)
		clock.Advance(time.Minute)

		isNew, err := store.MarkProcessed(ctx, "payment:ref-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	ok, err := store.IsProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = store.MarkProcessed(ctx, "k", time.Minute)
	ok, _ = store.IsProcessed(ctx, "k")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	ok, _ = store.IsProcessed(ctx, "k")
	assert.False(t, ok)
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 2, store.Size())

	clock.Advance(5 * time.Minute)
	store.cleanup()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := newClockedStore(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(ctx, "same", time.Hour); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
