package memory

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRepository implements catalog.ProductRepository in memory
type ProductRepository struct {
	store *Store
}

func copyProduct(p catalog.Product) catalog.Product {
	p.Units = append([]catalog.ProductUnit(nil), p.Units...)
	p.DiscountRules = append([]catalog.ExpiryDiscountRule(nil), p.DiscountRules...)
	p.ClearDomainEvents()
	return p
}

// FindByID finds a product by ID
func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.store.view(nil, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return shared.NewNotFoundError("product", id)
		}
		cp := copyProduct(p)
		out = &cp
		return nil
	})
	return out, err
}

// FindByIDs finds the products that exist among ids
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	var out []catalog.Product
	err := r.store.view(nil, func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out = append(out, copyProduct(p))
			}
		}
		return nil
	})
	return out, err
}

// Save creates or replaces a product
func (r *ProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return r.store.view(nil, func(st *state) error {
		st.products[product.ID] = copyProduct(*product)
		return nil
	})
}

// SupplierRepository implements catalog.SupplierRepository in memory
type SupplierRepository struct {
	store *Store
}

// ExistsByID reports whether the supplier was registered
func (r *SupplierRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.store.view(nil, func(st *state) error {
		_, ok = st.suppliers[id]
		return nil
	})
	return ok, err
}

var (
	_ catalog.ProductRepository  = (*ProductRepository)(nil)
	_ catalog.SupplierRepository = (*SupplierRepository)(nil)
)
