package storage

// sqlite.go — estado del pool, records y journal en SQLite.
//
// Estrategia:
//   - `pools`: una fila por pool. Reservas y parámetros como TEXT decimal exacto.
//   - `lenders` / `borrowers`: una fila por record (UPSERT). Nunca se borran.
//   - `operations`: journal append-only de operaciones aceptadas, ordenado por seq.
//   - Cada operación del engine llega como una Mutation y se escribe en UNA transacción:
//     si el commit falla, el engine descarta su copia de trabajo y no queda rastro.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
    id                  TEXT PRIMARY KEY,
    authority_id        TEXT    NOT NULL,
    base_reserve        TEXT    NOT NULL,
    yield_reserve       TEXT    NOT NULL,
    start_amount        TEXT    NOT NULL,
    cumulative_repaid   TEXT    NOT NULL DEFAULT '0',
    fee                 TEXT    NOT NULL,
    reward              TEXT    NOT NULL,
    bonus_fee_l1        TEXT    NOT NULL,
    bonus_fee_l2        TEXT    NOT NULL,
    extra_reward_l1     TEXT    NOT NULL,
    extra_reward_l2     TEXT    NOT NULL,
    min_ratio_lend      TEXT    NOT NULL,
    max_ratio_lend      TEXT    NOT NULL,
    min_ratio_borrow    TEXT    NOT NULL,
    max_ratio_borrow    TEXT    NOT NULL,
    loan_pool_low_limit TEXT    NOT NULL,
    main_pool_low_limit TEXT    NOT NULL,
    tier_low            INTEGER NOT NULL,
    tier_high           INTEGER NOT NULL,
    created_at          TEXT    NOT NULL,
    updated_at          TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS lenders (
    id              TEXT PRIMARY KEY,
    pool_id         TEXT    NOT NULL,
    ticket_key      TEXT    NOT NULL,
    completed_count INTEGER NOT NULL DEFAULT 0,
    tier1           INTEGER NOT NULL DEFAULT 0,
    tier2           INTEGER NOT NULL DEFAULT 0,
    open            INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT    NOT NULL,
    updated_at      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS borrowers (
    id              TEXT PRIMARY KEY,
    pool_id         TEXT    NOT NULL,
    ticket_key      TEXT    NOT NULL,
    completed_count INTEGER NOT NULL DEFAULT 0,
    owed            TEXT    NOT NULL DEFAULT '0',
    tier1           INTEGER NOT NULL DEFAULT 0,
    tier2           INTEGER NOT NULL DEFAULT 0,
    open            INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT    NOT NULL,
    updated_at      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT    NOT NULL UNIQUE,
    pool_id     TEXT    NOT NULL,
    record_id   TEXT    NOT NULL DEFAULT '',
    kind        TEXT    NOT NULL,
    tier        INTEGER NOT NULL DEFAULT 0,
    amount_in   TEXT    NOT NULL DEFAULT '0',
    amount_out  TEXT    NOT NULL DEFAULT '0',
    minted      TEXT    NOT NULL DEFAULT '0',
    burned      TEXT    NOT NULL DEFAULT '0',
    base_after  TEXT    NOT NULL,
    yield_after TEXT    NOT NULL,
    at          TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lenders_pool   ON lenders(pool_id);
CREATE INDEX IF NOT EXISTS idx_borrowers_pool ON borrowers(pool_id);
CREATE INDEX IF NOT EXISTS idx_ops_pool       ON operations(pool_id, seq DESC);
`

// SQLiteStorage implementa ports.Store usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// queryer es lo común entre *sql.DB y *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// notFound traduce sql.ErrNoRows al sentinel de dominio dado.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
