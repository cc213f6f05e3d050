package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/lendpool/internal/domain"
)

// Commit escribe pool, record y journal en una sola transacción.
func (s *SQLiteStorage) Commit(ctx context.Context, m domain.Mutation) error {
	if m.Pool == nil {
		return fmt.Errorf("storage.Commit: mutation without pool")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Commit: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := savePool(ctx, tx, m.Pool); err != nil {
		return fmt.Errorf("storage.Commit: %w", err)
	}
	if m.Lender != nil {
		if err := saveLender(ctx, tx, m.Lender); err != nil {
			return fmt.Errorf("storage.Commit: %w", err)
		}
	}
	if m.Borrower != nil {
		if err := saveBorrower(ctx, tx, m.Borrower); err != nil {
			return fmt.Errorf("storage.Commit: %w", err)
		}
	}

	op := m.Operation
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO operations (id, pool_id, record_id, kind, tier, amount_in, amount_out,
		                        minted, burned, base_after, yield_after, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.PoolID, op.RecordID, string(op.Kind), int(op.Tier), op.AmountIn, op.AmountOut,
		op.Minted, op.Burned, op.BaseAfter, op.YieldAfter, formatTime(op.At),
	); err != nil {
		return fmt.Errorf("storage.Commit: insert operation %s: %w", op.Kind, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Commit: commit: %w", err)
	}
	return nil
}

// RecentOperations devuelve hasta limit operaciones del pool, más recientes primero.
func (s *SQLiteStorage) RecentOperations(ctx context.Context, poolID string, limit int) ([]domain.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pool_id, record_id, kind, tier, amount_in, amount_out,
		       minted, burned, base_after, yield_after, at
		FROM operations
		WHERE pool_id = ?
		ORDER BY seq DESC
		LIMIT ?`, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentOperations: query: %w", err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		var (
			op       domain.Operation
			kind, at string
			tier     int
		)
		if err := rows.Scan(&op.ID, &op.PoolID, &op.RecordID, &kind, &tier,
			&op.AmountIn, &op.AmountOut, &op.Minted, &op.Burned,
			&op.BaseAfter, &op.YieldAfter, &at); err != nil {
			return nil, fmt.Errorf("storage.RecentOperations: scan row: %w", err)
		}
		op.Kind = domain.OperationKind(kind)
		op.Tier = domain.Tier(tier)
		op.At = parseTime(at)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
