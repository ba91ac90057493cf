package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk-inserts rows with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice inserts rows into table. It requires a transaction.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// BatchExecutor sends several statements in one round trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any

	// ExpectRows, when positive, is the number of rows the statement must affect.
	ExpectRows int64
}

// ErrUnexpectedRowCount is returned when a BatchQuery affects fewer or more rows than expected.
var ErrUnexpectedRowCount = errors.New("unexpected row count")

// ExecuteBatch executes queries in a single round trip. It requires a transaction.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	if len(queries) == 0 {
		return nil
	}
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("ExecuteBatch requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i, q := range queries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch query %d failed: %w", i, err)
		}
		if q.ExpectRows > 0 && tag.RowsAffected() != q.ExpectRows {
			return fmt.Errorf("batch query %d: %w: %d", i, ErrUnexpectedRowCount, tag.RowsAffected())
		}
	}
	return nil
}

// IsUnexpectedRowCount reports whether err came from a BatchQuery row count check.
func IsUnexpectedRowCount(err error) bool {
	return errors.Is(err, ErrUnexpectedRowCount)
}
