// Package app assembles the domain services over a storage backend.
package app

import (
	"time"

	"packcore/internal/core/lock"
	"packcore/internal/core/numerator"
	"packcore/internal/core/tx"
	"packcore/internal/domain/audit"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/costing"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/documents/purchase_receipt"
	"packcore/internal/domain/documents/sales_order"
	"packcore/internal/domain/events"
	"packcore/internal/domain/provisioning"
	"packcore/internal/domain/registers/lots"
	"packcore/internal/domain/registers/movements"
	"packcore/internal/domain/replenishment"
	"packcore/internal/infrastructure/storage/memory"
)

// Storage is everything the services persist through.
type Storage struct {
	Materials        material.Repository
	Products         product.Repository
	Lots             lots.Repository
	Movements        movements.Repository
	SalesOrders      sales_order.Repository
	ProductionOrders production_order.Repository

	TxManager tx.SavepointManager
	Numerator numerator.Generator
	Events    events.Publisher
	Audit     audit.Recorder
	Locker    lock.Locker
}

// Options tunes service behaviour.
type Options struct {
	Approval sales_order.ApprovalPolicy

	// ReorderRule is a CEL expression; empty selects replenishment.DefaultRule
	ReorderRule string
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{Approval: sales_order.DefaultApprovalPolicy()}
}

// IdempotencyOptions configures X-Idempotency-Key handling.
type IdempotencyOptions struct {
	Enabled bool
	TTL     time.Duration
}

// DefaultIdempotencyOptions keeps keys for a day.
func DefaultIdempotencyOptions() IdempotencyOptions {
	return IdempotencyOptions{Enabled: true, TTL: 24 * time.Hour}
}

// Services are the wired domain services.
type Services struct {
	Materials        *material.Service
	Products         *product.Service
	Movements        *movements.Service
	Lots             *lots.Service
	Costing          *costing.Service
	Provisioning     *provisioning.Service
	Replenishment    *replenishment.Service
	Purchases        *purchase_receipt.Service
	ProductionOrders *production_order.Service
	SalesOrders      *sales_order.Service
}

// NewServices wires the services over st.
func NewServices(st Storage, opts Options) (*Services, error) {
	rule, err := replenishment.CompileRule(opts.ReorderRule)
	if err != nil {
		return nil, err
	}

	s := &Services{}
	s.Materials = material.NewService(st.Materials, st.TxManager)
	s.Products = product.NewService(st.Products, st.Materials, st.TxManager)
	s.Movements = movements.NewService(st.Movements)
	s.Lots = lots.NewService(st.Lots, st.Materials, s.Movements, st.TxManager, st.Events)
	s.Costing = costing.NewService(st.Materials, st.Products, s.Lots, st.TxManager, st.Events, st.Audit)
	s.Provisioning = provisioning.NewService(s.Products, st.Materials, s.Lots)
	s.Replenishment = replenishment.NewService(st.Materials, rule, st.TxManager, st.Events)
	s.Purchases = purchase_receipt.NewService(s.Lots, s.Costing, st.TxManager)
	s.ProductionOrders = production_order.NewService(st.ProductionOrders, st.Numerator, s.Lots, st.TxManager, st.Events)
	s.SalesOrders = sales_order.NewService(sales_order.ServiceConfig{
		Repo:        st.SalesOrders,
		Products:    st.Products,
		Provisioner: s.Provisioning,
		Ledger:      s.Lots,
		Movements:   s.Movements,
		Production:  s.ProductionOrders,
		StockWatch:  s.Replenishment,
		Numerator:   st.Numerator,
		TxManager:   st.TxManager,
		Locker:      st.Locker,
		Events:      st.Events,
		Audit:       st.Audit,
		Policy:      opts.Approval,
	})
	return s, nil
}

// MemoryStorage returns Storage backed by an in-memory store.
func MemoryStorage(store *memory.Store) Storage {
	return Storage{
		Materials:        store.Materials(),
		Products:         store.Products(),
		Lots:             store.Lots(),
		Movements:        store.Movements(),
		SalesOrders:      store.SalesOrders(),
		ProductionOrders: store.ProductionOrders(),
		TxManager:        store,
		Numerator:        store.Numerator(),
		Events:           store.Outbox(),
		Audit:            store.Audit(),
		Locker:           lock.NewLocalLocker(),
	}
}

// NewInMemory wires the services over a fresh in-memory store.
func NewInMemory(opts Options) (*Services, *memory.Store, error) {
	store := memory.New()
	svc, err := NewServices(MemoryStorage(store), opts)
	if err != nil {
		return nil, nil, err
	}
	return svc, store, nil
}
