package inventory

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultExpiryBatchSize bounds how many batches one run expires
const DefaultExpiryBatchSize = 500

// BatchExpiryService takes batches past their expiry date out of allocation
type BatchExpiryService struct {
	batchRepo inventory.BatchRepository
	clock     shared.Clock
	logger    *zap.Logger
	batchSize int
}

// NewBatchExpiryService creates a new BatchExpiryService
func NewBatchExpiryService(batchRepo inventory.BatchRepository, clock shared.Clock, logger *zap.Logger) *BatchExpiryService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &BatchExpiryService{
		batchRepo: batchRepo,
		clock:     clock,
		logger:    logger,
		batchSize: DefaultExpiryBatchSize,
	}
}

// BatchExpiryStats contains statistics about one expiry run
type BatchExpiryStats struct {
	TotalExpirable int       `json:"total_expirable"`
	Expired        int       `json:"expired"`
	Failed         int       `json:"failed"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// MarkExpiredBatches moves every active batch whose expiry date has passed to expired.
// Counters are left untouched.
func (s *BatchExpiryService) MarkExpiredBatches(ctx context.Context) (*BatchExpiryStats, error) {
	now := s.clock.Now()
	stats := &BatchExpiryStats{ProcessedAt: now}

	batches, err := s.batchRepo.FindExpirable(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to find expirable batches", zap.Error(err))
		return nil, err
	}

	stats.TotalExpirable = len(batches)
	if stats.TotalExpirable == 0 {
		s.logger.Debug("No expirable batches found")
		return stats, nil
	}

	for _, b := range batches {
		if err := s.batchRepo.Expire(ctx, b.ID); err != nil {
			s.logger.Error("Failed to expire batch",
				zap.String("batch_id", b.ID.String()),
				zap.String("product_id", b.ProductID.String()),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Expired++
	}

	s.logger.Info("Completed batch expiry run",
		zap.Int("total", stats.TotalExpirable),
		zap.Int("expired", stats.Expired),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
