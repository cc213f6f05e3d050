package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/lendpool/internal/domain"
)

const (
	lenderColumns   = `id, pool_id, ticket_key, completed_count, tier1, tier2, open, created_at, updated_at`
	borrowerColumns = `id, pool_id, ticket_key, completed_count, owed, tier1, tier2, open, created_at, updated_at`
)

func saveLender(ctx context.Context, q queryer, r *domain.LenderRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO lenders (`+lenderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_count = excluded.completed_count,
			tier1           = excluded.tier1,
			tier2           = excluded.tier2,
			open            = excluded.open,
			updated_at      = excluded.updated_at`,
		r.ID, r.PoolID, r.Key, r.CompletedCount,
		boolInt(r.Tier1), boolInt(r.Tier2), boolInt(r.Open),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert lender %s: %w", r.ID, err)
	}
	return nil
}

func saveBorrower(ctx context.Context, q queryer, r *domain.BorrowerRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO borrowers (`+borrowerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_count = excluded.completed_count,
			owed            = excluded.owed,
			tier1           = excluded.tier1,
			tier2           = excluded.tier2,
			open            = excluded.open,
			updated_at      = excluded.updated_at`,
		r.ID, r.PoolID, r.Key, r.CompletedCount, r.Owed,
		boolInt(r.Tier1), boolInt(r.Tier2), boolInt(r.Open),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert borrower %s: %w", r.ID, err)
	}
	return nil
}

// GetLender devuelve el record o domain.ErrRecordNotFound.
func (s *SQLiteStorage) GetLender(ctx context.Context, id string) (domain.LenderRecord, error) {
	r, err := scanLender(s.db.QueryRowContext(ctx, `SELECT `+lenderColumns+` FROM lenders WHERE id = ?`, id))
	if err != nil {
		return domain.LenderRecord{}, fmt.Errorf("storage.GetLender: %s: %w", id, notFound(err, domain.ErrRecordNotFound))
	}
	return r, nil
}

// GetBorrower devuelve el record o domain.ErrRecordNotFound.
func (s *SQLiteStorage) GetBorrower(ctx context.Context, id string) (domain.BorrowerRecord, error) {
	r, err := scanBorrower(s.db.QueryRowContext(ctx, `SELECT `+borrowerColumns+` FROM borrowers WHERE id = ?`, id))
	if err != nil {
		return domain.BorrowerRecord{}, fmt.Errorf("storage.GetBorrower: %s: %w", id, notFound(err, domain.ErrRecordNotFound))
	}
	return r, nil
}

// ListLenders devuelve los lenders del pool en orden de registro.
func (s *SQLiteStorage) ListLenders(ctx context.Context, poolID string) ([]domain.LenderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lenderColumns+` FROM lenders WHERE pool_id = ? ORDER BY rowid`, poolID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListLenders: query: %w", err)
	}
	defer rows.Close()

	var out []domain.LenderRecord
	for rows.Next() {
		r, err := scanLender(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListLenders: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListBorrowers devuelve los borrowers del pool en orden de registro.
func (s *SQLiteStorage) ListBorrowers(ctx context.Context, poolID string) ([]domain.BorrowerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+borrowerColumns+` FROM borrowers WHERE pool_id = ? ORDER BY rowid`, poolID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListBorrowers: query: %w", err)
	}
	defer rows.Close()

	var out []domain.BorrowerRecord
	for rows.Next() {
		r, err := scanBorrower(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListBorrowers: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// rowScanner cubre *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLender(row rowScanner) (domain.LenderRecord, error) {
	var (
		r                  domain.LenderRecord
		tier1, tier2, open int
		created, updated   string
	)
	if err := row.Scan(&r.ID, &r.PoolID, &r.Key, &r.CompletedCount,
		&tier1, &tier2, &open, &created, &updated); err != nil {
		return domain.LenderRecord{}, err
	}
	r.Tier1, r.Tier2, r.Open = tier1 == 1, tier2 == 1, open == 1
	r.CreatedAt, r.UpdatedAt = parseTime(created), parseTime(updated)
	return r, nil
}

func scanBorrower(row rowScanner) (domain.BorrowerRecord, error) {
	var (
		r                  domain.BorrowerRecord
		tier1, tier2, open int
		created, updated   string
	)
	if err := row.Scan(&r.ID, &r.PoolID, &r.Key, &r.CompletedCount, &r.Owed,
		&tier1, &tier2, &open, &created, &updated); err != nil {
		return domain.BorrowerRecord{}, err
	}
	r.Tier1, r.Tier2, r.Open = tier1 == 1, tier2 == 1, open == 1
	r.CreatedAt, r.UpdatedAt = parseTime(created), parseTime(updated)
	return r, nil
}
