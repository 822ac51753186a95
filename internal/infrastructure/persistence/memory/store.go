// Package memory holds process-local implementations of the fulfillment
// repositories. All repositories of one Store share a single state guarded by
// a mutex; a transaction works on a copy of that state and swaps it in on
// success, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"sync"
	"time"

	appinv "github.com/erp/fulfillment/internal/application/inventory"
	apptrade "github.com/erp/fulfillment/internal/application/trade"
	"github.com/erp/fulfillment/internal/domain/catalog"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/trade"
	"github.com/google/uuid"
)

type state struct {
	products     map[uuid.UUID]catalog.Product
	suppliers    map[uuid.UUID]struct{}
	batches      map[uuid.UUID]inventory.Batch
	stocks       map[uuid.UUID]inventory.InventoryStock
	commits      map[uuid.UUID]inventory.CommitRecord
	movements    []inventory.StockMovement
	orders       map[uuid.UUID]trade.Order
	orderNumbers map[string]uuid.UUID
}

func newState() *state {
	return &state{
		products:     make(map[uuid.UUID]catalog.Product),
		suppliers:    make(map[uuid.UUID]struct{}),
		batches:      make(map[uuid.UUID]inventory.Batch),
		stocks:       make(map[uuid.UUID]inventory.InventoryStock),
		commits:      make(map[uuid.UUID]inventory.CommitRecord),
		orders:       make(map[uuid.UUID]trade.Order),
		orderNumbers: make(map[string]uuid.UUID),
	}
}

// clone copies the maps; stored values are already private copies
func (s *state) clone() *state {
	c := &state{
		products:     make(map[uuid.UUID]catalog.Product, len(s.products)),
		suppliers:    make(map[uuid.UUID]struct{}, len(s.suppliers)),
		batches:      make(map[uuid.UUID]inventory.Batch, len(s.batches)),
		stocks:       make(map[uuid.UUID]inventory.InventoryStock, len(s.stocks)),
		commits:      make(map[uuid.UUID]inventory.CommitRecord, len(s.commits)),
		movements:    append([]inventory.StockMovement(nil), s.movements...),
		orders:       make(map[uuid.UUID]trade.Order, len(s.orders)),
		orderNumbers: make(map[string]uuid.UUID, len(s.orderNumbers)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k := range s.suppliers {
		c.suppliers[k] = struct{}{}
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.commits {
		c.commits[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderNumbers {
		c.orderNumbers[k] = v
	}
	return c
}

// Store is an in-memory database for the fulfillment engine
type Store struct {
	mu    sync.Mutex
	st    *state
	clock shared.Clock
}

// NewStore creates an empty store. The clock stamps counter updates.
func NewStore(clock shared.Clock) *Store {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Store{st: newState(), clock: clock}
}

func (s *Store) now() time.Time {
	return s.clock.Now()
}

// view runs fn against tx when set, otherwise against the shared state under the lock
func (s *Store) view(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// execute runs fn on a copy of the state and publishes the copy when fn succeeds.
// Transactions are serialized; fn must only use the repositories it is given.
func (s *Store) execute(ctx context.Context, fn func(work *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// AddSupplier registers a supplier ID
func (s *Store) AddSupplier(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.suppliers[id] = struct{}{}
}

// Products returns the product repository
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{store: s}
}

// Suppliers returns the supplier repository
func (s *Store) Suppliers() *SupplierRepository {
	return &SupplierRepository{store: s}
}

// Batches returns the batch repository
func (s *Store) Batches() *BatchRepository {
	return &BatchRepository{store: s}
}

// Stocks returns the stock aggregate repository
func (s *Store) Stocks() *StockRepository {
	return &StockRepository{store: s}
}

// Commits returns the commit marker repository
func (s *Store) Commits() *CommitRepository {
	return &CommitRepository{store: s}
}

// Movements returns the movement journal repository
func (s *Store) Movements() *MovementRepository {
	return &MovementRepository{store: s}
}

// Orders returns the order repository
func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{store: s}
}

// InventoryScope returns a transaction scope for the ledger
func (s *Store) InventoryScope() appinv.TransactionScope {
	return inventoryScope{store: s}
}

// TradeScope returns a transaction scope covering orders and the ledger
func (s *Store) TradeScope() apptrade.TransactionScope {
	return tradeScope{store: s}
}

type txRepositories struct {
	store *Store
	work  *state
}

func (r txRepositories) BatchRepo() inventory.BatchRepository {
	return &BatchRepository{store: r.store, tx: r.work}
}

func (r txRepositories) StockRepo() inventory.StockRepository {
	return &StockRepository{store: r.store, tx: r.work}
}

func (r txRepositories) CommitRepo() inventory.CommitRepository {
	return &CommitRepository{store: r.store, tx: r.work}
}

func (r txRepositories) MovementRepo() inventory.MovementRepository {
	return &MovementRepository{store: r.store, tx: r.work}
}

func (r txRepositories) OrderRepo() trade.OrderRepository {
	return &OrderRepository{store: r.store, tx: r.work}
}

type inventoryScope struct {
	store *Store
}

func (s inventoryScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.store.execute(ctx, func(work *state) error {
		return fn(txRepositories{store: s.store, work: work})
	})
}

type tradeScope struct {
	store *Store
}

func (s tradeScope) Execute(ctx context.Context, fn func(repos apptrade.TransactionalRepositories) error) error {
	return s.store.execute(ctx, func(work *state) error {
		return fn(txRepositories{store: s.store, work: work})
	})
}

var (
	_ appinv.TransactionScope            = inventoryScope{}
	_ apptrade.TransactionScope          = tradeScope{}
	_ apptrade.TransactionalRepositories = txRepositories{}
)
