package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository is the read side of the catalog collaborator
type ProductRepository interface {
	// FindByID finds a product with its units and discount rules
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds multiple products by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// Save creates or updates a product with its unit and rule tables
	Save(ctx context.Context, product *Product) error
}

// SupplierRepository answers supplier existence checks for batch receipts
type SupplierRepository interface {
	// ExistsByID reports whether the supplier exists
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
}
