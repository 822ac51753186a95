package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Handlers runs the sweep tasks against the application services
type Handlers struct {
	sweeper *apptrade.PreorderSweeper
	expiry  *appinv.BatchExpiryService
	logger  *zap.Logger
}

// NewHandlers creates the sweep task handlers
func NewHandlers(sweeper *apptrade.PreorderSweeper, expiry *appinv.BatchExpiryService, logger *zap.Logger) *Handlers {
	return &Handlers{
		sweeper: sweeper,
		expiry:  expiry,
		logger:  logger,
	}
}

func decodeSweepPayload(t *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

// HandlePreorderSweep processes TaskPreorderSweep tasks
func (h *Handlers) HandlePreorderSweep(ctx context.Context, t *asynq.Task) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "jobs", "preorder_sweep")
	defer func() { telemetry.EndSpan(span, err) }()

	payload, err := decodeSweepPayload(t)
	if err != nil {
		return err
	}

	var stats *apptrade.SweepStats
	if payload.At.IsZero() {
		stats, err = h.sweeper.Sweep(ctx)
	} else {
		stats, err = h.sweeper.SweepExpiredPreorders(ctx, payload.At)
	}
	if err != nil {
		return fmt.Errorf("preorder sweep: %w", err)
	}

	h.logger.Info("Pre-order sweep task finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("cancelled", stats.Cancelled),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

// HandleBatchExpiry processes TaskBatchExpiry tasks
func (h *Handlers) HandleBatchExpiry(ctx context.Context, t *asynq.Task) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "jobs", "batch_expiry")
	defer func() { telemetry.EndSpan(span, err) }()

	if _, err := decodeSweepPayload(t); err != nil {
		return err
	}

	stats, err := h.expiry.MarkExpiredBatches(ctx)
	if err != nil {
		return fmt.Errorf("batch expiry: %w", err)
	}

	h.logger.Info("Batch expiry task finished",
		zap.Int("expired", stats.Expired),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
