package inventory

import (
	"context"
	"errors"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// StockQueryService serves read-only stock views
type StockQueryService struct {
	batchRepo    inventory.BatchRepository
	stockRepo    inventory.StockRepository
	movementRepo inventory.MovementRepository
}

// NewStockQueryService creates a new StockQueryService
func NewStockQueryService(
	batchRepo inventory.BatchRepository,
	stockRepo inventory.StockRepository,
	movementRepo inventory.MovementRepository,
) *StockQueryService {
	return &StockQueryService{
		batchRepo:    batchRepo,
		stockRepo:    stockRepo,
		movementRepo: movementRepo,
	}
}

// GetStock returns the stock aggregate of a product. A product that never
// received a batch has an empty aggregate.
func (s *StockQueryService) GetStock(ctx context.Context, productID uuid.UUID) (*StockResponse, error) {
	stock, err := s.stockRepo.FindByProduct(ctx, productID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		return &StockResponse{ProductID: productID}, nil
	}
	return ToStockResponse(stock), nil
}

// ListBatches lists the batches of a product
func (s *StockQueryService) ListBatches(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]BatchResponse, error) {
	batches, err := s.batchRepo.FindByProduct(ctx, productID, filter)
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches), nil
}

// GetBatch returns one batch
func (s *StockQueryService) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// ListMovements lists the movement journal of a batch
func (s *StockQueryService) ListMovements(ctx context.Context, batchID uuid.UUID, filter shared.Filter) ([]MovementResponse, error) {
	movements, err := s.movementRepo.FindByBatch(ctx, batchID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, ToMovementResponse(m))
	}
	return out, nil
}
