// Package memory implements every repository and the transaction manager in
// process memory. It backs the domain tests and single-node demos.
//
// A top-level transaction holds the store's transaction mutex until it ends,
// so transactions are serialized; that also makes GetForUpdate trivially a
// row lock. A failed transaction or savepoint restores a snapshot of the
// state taken when it began. Reads outside a transaction may observe the
// writes of a transaction still in flight.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/documents/sales_order"
	"packcore/internal/domain/registers/lots"
)

type state struct {
	materials        map[id.ID]material.Material
	costHistory      []material.CostHistoryEntry
	products         map[id.ID]product.Product
	recipes          map[id.ID]product.RecipeLine
	lots             map[id.ID]lots.Lot
	movements        []entity.Movement
	orders           map[id.ID]sales_order.Order
	productionOrders map[id.ID]production_order.ProductionOrder
	sequences        map[string]int64
	outbox           []OutboxMessage
	audit            []AuditEntry
}

func newState() *state {
	return &state{
		materials:        make(map[id.ID]material.Material),
		products:         make(map[id.ID]product.Product),
		recipes:          make(map[id.ID]product.RecipeLine),
		lots:             make(map[id.ID]lots.Lot),
		orders:           make(map[id.ID]sales_order.Order),
		productionOrders: make(map[id.ID]production_order.ProductionOrder),
		sequences:        make(map[string]int64),
	}
}

// clone copies the state. Stored values are never mutated in place (every
// write replaces the value with a fresh copy), so copying maps and slices is
// enough.
func (s *state) clone() *state {
	return &state{
		materials:        maps.Clone(s.materials),
		costHistory:      slices.Clone(s.costHistory),
		products:         maps.Clone(s.products),
		recipes:          maps.Clone(s.recipes),
		lots:             maps.Clone(s.lots),
		movements:        slices.Clone(s.movements),
		orders:           maps.Clone(s.orders),
		productionOrders: maps.Clone(s.productionOrders),
		sequences:        maps.Clone(s.sequences),
		outbox:           slices.Clone(s.outbox),
		audit:            slices.Clone(s.audit),
	}
}

// Store is an in-memory database.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	return s.runWithSnapshot(context.WithValue(ctx, txKey{}, true), fn)
}

// RunInSavepoint implements tx.SavepointManager.
func (s *Store) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if !inTx(ctx) {
		return s.RunInTransaction(ctx, fn)
	}
	return s.runWithSnapshot(ctx, fn)
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func (s *Store) runWithSnapshot(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx)
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Materials returns the material repository.
func (s *Store) Materials() *MaterialRepo { return &MaterialRepo{s: s} }

// Products returns the product and recipe repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Lots returns the lot repository.
func (s *Store) Lots() *LotRepo { return &LotRepo{s: s} }

// Movements returns the movement repository.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

// SalesOrders returns the sales order repository.
func (s *Store) SalesOrders() *SalesOrderRepo { return &SalesOrderRepo{s: s} }

// ProductionOrders returns the production order repository.
func (s *Store) ProductionOrders() *ProductionOrderRepo { return &ProductionOrderRepo{s: s} }

// Outbox returns the event publisher.
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }

// Numerator returns the document number generator.
func (s *Store) Numerator() *Numerator { return &Numerator{s: s} }
