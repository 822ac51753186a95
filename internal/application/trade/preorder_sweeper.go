package trade

import (
	"context"
	"errors"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSweepBatchSize is how many pre-orders one sweep reads per page
const DefaultSweepBatchSize = 200

// PreorderCanceller cancels a single expired pre-order as of a given time
type PreorderCanceller interface {
	CancelExpiredPreorder(ctx context.Context, orderID uuid.UUID, now time.Time) error
}

// PreorderSweeper cancels pre-orders whose pickup deadline has passed
type PreorderSweeper struct {
	orderRepo trade.OrderRepository
	canceller PreorderCanceller
	clock     shared.Clock
	logger    *zap.Logger
	metrics   Metrics
	batchSize int
}

// NewPreorderSweeper creates a new PreorderSweeper
func NewPreorderSweeper(
	orderRepo trade.OrderRepository,
	canceller PreorderCanceller,
	clock shared.Clock,
	logger *zap.Logger,
) *PreorderSweeper {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &PreorderSweeper{
		orderRepo: orderRepo,
		canceller: canceller,
		clock:     clock,
		logger:    logger,
		metrics:   noopMetrics{},
		batchSize: DefaultSweepBatchSize,
	}
}

// SetMetrics sets the metrics sink
func (s *PreorderSweeper) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetBatchSize overrides the page size
func (s *PreorderSweeper) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SweepStats contains statistics about one sweep
type SweepStats struct {
	Scanned     int       `json:"scanned"`
	Cancelled   int       `json:"cancelled"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Sweep runs a sweep at the current clock time
func (s *PreorderSweeper) Sweep(ctx context.Context) (*SweepStats, error) {
	return s.SweepExpiredPreorders(ctx, s.clock.Now())
}

// SweepExpiredPreorders cancels every pending pre-order whose expiration date is not after now.
// It reads batchSize orders per page until a short page, or until a page cancels
// nothing, so orders that keep failing cannot hold the sweep in a loop.
// Orders that changed state since they were listed are skipped.
func (s *PreorderSweeper) SweepExpiredPreorders(ctx context.Context, now time.Time) (*SweepStats, error) {
	stats := &SweepStats{ProcessedAt: now}
	seen := make(map[uuid.UUID]struct{})

	for pages := 0; ctx.Err() == nil; pages++ {
		orders, err := s.orderRepo.FindExpiredPreorders(ctx, now, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to find expired pre-orders", zap.Int("page", pages), zap.Error(err))
			if pages == 0 {
				return nil, err
			}
			break
		}

		cancelled := 0
		for _, o := range orders {
			if ctx.Err() != nil {
				break
			}
			if _, ok := seen[o.ID]; ok {
				continue
			}
			seen[o.ID] = struct{}{}
			stats.Scanned++

			err := s.canceller.CancelExpiredPreorder(ctx, o.ID, now)
			switch {
			case err == nil:
				stats.Cancelled++
				cancelled++
			case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrNotFound):
				stats.Skipped++
			default:
				s.logger.Error("Failed to cancel expired pre-order",
					zap.String("order_id", o.ID.String()),
					zap.String("order_number", o.OrderNumber),
					zap.Error(err),
				)
				stats.Failed++
			}
		}

		if len(orders) < s.batchSize || cancelled == 0 {
			break
		}
	}

	if stats.Scanned == 0 {
		s.logger.Debug("No expired pre-orders found")
		return stats, ctx.Err()
	}

	s.metrics.PreordersSwept(stats.Cancelled, stats.Skipped, stats.Failed)
	s.logger.Info("Completed pre-order sweep",
		zap.Int("scanned", stats.Scanned),
		zap.Int("cancelled", stats.Cancelled),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, ctx.Err()
}
