package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var placedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingCanceller struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (c *recordingCanceller) CancelExpiredPreorder(ctx context.Context, orderID uuid.UUID, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, now)
	return c.err
}

func seedPreorder(t *testing.T, store *memory.Store) *trade.Order {
	t.Helper()
	line, err := trade.PriceLine(trade.LineInput{
		ProductID:    uuid.New(),
		RequestedQty: 1,
		Unit:         "pcs",
		Ratio:        1,
		ListPrice:    decimal.NewFromInt(100),
		Allocations: []trade.LineAllocation{
			{BatchID: uuid.New(), AllocatedBaseQty: 1, EffectivePackPrice: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)
	pricing, err := trade.NewPricing([]trade.OrderLine{line}, decimal.Zero)
	require.NoError(t, err)
	o, err := trade.NewPreorder(trade.GenerateOrderNumber(placedAt), trade.PaymentMethodCash, pricing, 3, placedAt)
	require.NoError(t, err)
	require.NoError(t, store.Orders().Create(context.Background(), o))
	return o
}

func newTestWorker(t *testing.T, canceller apptrade.PreorderCanceller, clock shared.Clock, store *memory.Store) *Worker {
	t.Helper()
	mr := miniredis.RunT(t)
	sweeper := apptrade.NewPreorderSweeper(store.Orders(), canceller, clock, zap.NewNop())
	expiry := appinv.NewBatchExpiryService(store.Batches(), clock, zap.NewNop())

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    zap.NewNop(),
		Handlers:  NewHandlers(sweeper, expiry, zap.NewNop()),
		CronSpec:  "0 2 * * *",
	})
	require.NoError(t, err)
	return w
}

func TestWorker_PreorderSweepUsesClock(t *testing.T) {
	clock := shared.NewFixedClock(placedAt.AddDate(0, 0, 4))
	store := memory.NewStore(clock)
	seedPreorder(t, store)
	canceller := &recordingCanceller{}
	w := newTestWorker(t, canceller, clock, store)

	task, err := NewPreorderSweepTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(context.Background(), task))

	require.Len(t, canceller.calls, 1)
	assert.Equal(t, clock.Now(), canceller.calls[0])
}

func TestWorker_PreorderSweepAtGivenTime(t *testing.T) {
	clock := shared.NewFixedClock(placedAt)
	store := memory.NewStore(clock)
	seedPreorder(t, store)
	canceller := &recordingCanceller{}
	w := newTestWorker(t, canceller, clock, store)

	at := placedAt.AddDate(0, 0, 5)
	task, err := NewPreorderSweepTask(at)
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(context.Background(), task))

	require.Len(t, canceller.calls, 1)
	assert.True(t, at.Equal(canceller.calls[0]))
}

func TestWorker_CancelFailuresDoNotFailTask(t *testing.T) {
	clock := shared.NewFixedClock(placedAt.AddDate(0, 0, 4))
	store := memory.NewStore(clock)
	seedPreorder(t, store)
	w := newTestWorker(t, &recordingCanceller{err: errors.New("db down")}, clock, store)

	task, err := NewPreorderSweepTask(time.Time{})
	require.NoError(t, err)
	assert.NoError(t, w.ProcessTask(context.Background(), task))
}

func TestWorker_BatchExpiry(t *testing.T) {
	clock := shared.NewFixedClock(placedAt)
	w := newTestWorker(t, &recordingCanceller{}, clock, memory.NewStore(clock))

	task, err := NewBatchExpiryTask()
	require.NoError(t, err)
	assert.NoError(t, w.ProcessTask(context.Background(), task))
}

func TestWorker_BadPayloadSkipsRetry(t *testing.T) {
	clock := shared.NewFixedClock(placedAt)
	w := newTestWorker(t, &recordingCanceller{}, clock, memory.NewStore(clock))

	err := w.ProcessTask(context.Background(), asynq.NewTask(TaskPreorderSweep, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewWorker_RequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Logger: zap.NewNop()})
	require.Error(t, err)
}

func TestNewSweepTasks(t *testing.T) {
	task, err := NewBatchExpiryTask()
	require.NoError(t, err)
	assert.Equal(t, TaskBatchExpiry, task.Type())

	task, err = NewPreorderSweepTask(placedAt)
	require.NoError(t, err)
	assert.Equal(t, TaskPreorderSweep, task.Type())
	assert.Contains(t, string(task.Payload()), "2026-03-01T09:00:00Z")
}
