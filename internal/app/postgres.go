package app

import (
	"context"

	"packcore/internal/core/lock"
	infranumerator "packcore/internal/infrastructure/numerator"
	"packcore/internal/infrastructure/storage/postgres"
	"packcore/internal/infrastructure/storage/postgres/catalog_repo"
	"packcore/internal/infrastructure/storage/postgres/document_repo"
	"packcore/internal/infrastructure/storage/postgres/register_repo"
)

// PostgresBackend is the PostgreSQL storage plus the infrastructure the
// HTTP layer and worker use directly.
type PostgresBackend struct {
	Storage     Storage
	TxManager   *postgres.TxManager
	Audit       *postgres.AuditService
	Idempotency *postgres.IdempotencyStore
}

// PostgresStorage wires every repository over pool. A nil locker selects
// in-process leases.
func PostgresStorage(pool *postgres.Pool, locker lock.Locker, idempotency IdempotencyOptions) (*PostgresBackend, error) {
	txm := postgres.NewTxManager(pool)

	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		return nil, err
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	num := infranumerator.NewWithSource(func(ctx context.Context) infranumerator.Querier {
		return txm.GetQuerier(ctx)
	})

	return &PostgresBackend{
		Storage: Storage{
			Materials:        catalog_repo.NewMaterialRepo(txm),
			Products:         catalog_repo.NewProductRepo(txm),
			Lots:             register_repo.NewLotRepo(txm),
			Movements:        register_repo.NewMovementRepo(txm),
			SalesOrders:      document_repo.NewSalesOrderRepo(txm),
			ProductionOrders: document_repo.NewProductionOrderRepo(txm),
			TxManager:        txm,
			Numerator:        num,
			Events:           postgres.NewOutboxPublisher(txm),
			Audit:            auditSvc,
			Locker:           locker,
		},
		TxManager:   txm,
		Audit:       auditSvc,
		Idempotency: postgres.NewIdempotencyStore(txm, idempotency.TTL),
	}, nil
}
