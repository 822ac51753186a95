package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
)

// OrderRepository implements trade.OrderRepository in memory
type OrderRepository struct {
	store *Store
	tx    *state
}

func copyOrder(o trade.Order) trade.Order {
	lines := make([]trade.OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		l.Allocations = append([]trade.LineAllocation(nil), l.Allocations...)
		lines[i] = l
	}
	o.Lines = lines
	o.ExpirationDate = copyTime(o.ExpirationDate)
	o.CompletedAt = copyTime(o.CompletedAt)
	o.CancelledAt = copyTime(o.CancelledAt)
	o.ClearDomainEvents()
	return o
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// FindByID finds an order by ID
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	var out *trade.Order
	err := r.store.view(r.tx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return shared.NewNotFoundError("order", id)
		}
		cp := copyOrder(o)
		out = &cp
		return nil
	})
	return out, err
}

// FindByOrderNumber finds an order by number
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, number string) (*trade.Order, error) {
	var out *trade.Order
	err := r.store.view(r.tx, func(st *state) error {
		id, ok := st.orderNumbers[number]
		if !ok {
			return shared.NewNotFoundError("order", number)
		}
		cp := copyOrder(st.orders[id])
		out = &cp
		return nil
	})
	return out, err
}

// FindAll lists orders matching the filter
func (r *OrderRepository) FindAll(ctx context.Context, filter trade.OrderFilter) ([]trade.Order, int64, error) {
	var matched []trade.Order
	err := r.store.view(r.tx, func(st *state) error {
		for _, o := range st.orders {
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if filter.Kind != "" && o.Kind != filter.Kind {
				continue
			}
			matched = append(matched, copyOrder(o))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	desc := !strings.EqualFold(filter.OrderDir, "asc")
	less := func(a, b *trade.Order) bool {
		switch filter.OrderBy {
		case "order_number":
			return a.OrderNumber < b.OrderNumber
		case "final_amount":
			return a.FinalAmount.LessThan(b.FinalAmount)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(&matched[j], &matched[i])
		}
		return less(&matched[i], &matched[j])
	})
	return page(matched, filter.Filter), int64(len(matched)), nil
}

// FindExpiredPreorders lists pending pre-orders past their deadline, oldest deadline first
func (r *OrderRepository) FindExpiredPreorders(ctx context.Context, now time.Time, limit int) ([]trade.Order, error) {
	var out []trade.Order
	err := r.store.view(r.tx, func(st *state) error {
		for _, o := range st.orders {
			if o.IsPreorderExpiredAt(now) {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpirationDate.Equal(*out[j].ExpirationDate) {
			return out[i].ExpirationDate.Before(*out[j].ExpirationDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Create inserts an order; order numbers are unique
func (r *OrderRepository) Create(ctx context.Context, order *trade.Order) error {
	return r.store.view(r.tx, func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return shared.NewConflictError("order %s already exists", order.ID)
		}
		if _, ok := st.orderNumbers[order.OrderNumber]; ok {
			return shared.NewConflictError("order number %s already exists", order.OrderNumber)
		}
		st.orders[order.ID] = copyOrder(*order)
		st.orderNumbers[order.OrderNumber] = order.ID
		return nil
	})
}

// SaveWithLock stores an order whose version matches the stored one
func (r *OrderRepository) SaveWithLock(ctx context.Context, order *trade.Order) error {
	return r.store.view(r.tx, func(st *state) error {
		current, ok := st.orders[order.ID]
		if !ok {
			return shared.NewNotFoundError("order", order.ID)
		}
		if current.Version != order.Version {
			return shared.NewDomainError(shared.CodeConcurrencyConflict,
				"order was modified by another process, please refresh and try again")
		}
		order.IncrementVersion()
		st.orders[order.ID] = copyOrder(*order)
		return nil
	})
}

var _ trade.OrderRepository = (*OrderRepository)(nil)
