package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventHandler is a mock implementation of shared.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_DuplicateEventSkipped(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("OrderCompleted")
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler("notify", inner, store, shared.DefaultIdempotencyConfig(), zap.NewNop())

	for range 3 {
		require.NoError(t, handler.Handle(context.Background(), event))
	}

	inner.AssertExpectations(t)
	stats := handler.Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(2), stats.EventsDuplicate)
}

func TestIdempotentHandler_KeysAreScopedByName(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	event := newTestEvent("OrderCompleted")
	a := newTestHandler("OrderCompleted")
	b := newTestHandler("OrderCompleted")
	cfg := shared.DefaultIdempotencyConfig()

	require.NoError(t, NewIdempotentHandler("notify", a, store, cfg, zap.NewNop()).Handle(context.Background(), event))
	require.NoError(t, NewIdempotentHandler("audit", b, store, cfg, zap.NewNop()).Handle(context.Background(), event))

	assert.Len(t, a.getHandled(), 1)
	assert.Len(t, b.getHandled(), 1)
}

func TestIdempotentHandler_HandlerErrorCounted(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("OrderCancelled")
	inner.On("Handle", mock.Anything, event).Return(errors.New("boom"))

	handler := NewIdempotentHandler("notify", inner, store, shared.DefaultIdempotencyConfig(), zap.NewNop())
	err := handler.Handle(context.Background(), event)

	require.Error(t, err)
	assert.Equal(t, int64(1), handler.Stats().EventsFailed)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newTestEvent("OrderCompleted")

	store.On("MarkProcessed", mock.Anything, "notify:"+event.EventID().String(), mock.Anything).
		Return(false, errors.New("redis unavailable"))
	inner.On("Handle", mock.Anything, event).Return(nil)

	handler := NewIdempotentHandler("notify", inner, store, shared.DefaultIdempotencyConfig(), zap.NewNop())
	require.NoError(t, handler.Handle(context.Background(), event))

	store.AssertExpectations(t)
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newTestEvent("OrderCompleted")
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	handler := NewIdempotentHandler("notify", inner, store, shared.IdempotencyConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_EventTypes(t *testing.T) {
	inner := new(MockEventHandler)
	inner.On("EventTypes").Return([]string{"OrderCompleted", "OrderCancelled"})

	handler := NewIdempotentHandler("notify", inner, new(MockIdempotencyStore), shared.DefaultIdempotencyConfig(), zap.NewNop())
	assert.Equal(t, []string{"OrderCompleted", "OrderCancelled"}, handler.EventTypes())
}

func TestIdempotentHandler_ConcurrentDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := newTestHandler("OrderCompleted")
	handler := NewIdempotentHandler("notify", inner, store, shared.DefaultIdempotencyConfig(), zap.NewNop())
	event := newTestEvent("OrderCompleted")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = handler.Handle(context.Background(), event)
		}()
	}
	wg.Wait()

	assert.Len(t, inner.getHandled(), 1)
	assert.Equal(t, int64(19), handler.Stats().EventsDuplicate)
}
