package ports

import (
	"context"

	"github.com/alejandrodnm/lendpool/internal/domain"
)

// PoolStore rehidrata pools persistidos.
type PoolStore interface {
	// LoadPool devuelve el pool con el id dado o domain.ErrPoolNotFound.
	LoadPool(ctx context.Context, id string) (domain.Pool, error)

	// LatestPoolID devuelve el último pool creado o domain.ErrPoolNotFound si no hay ninguno.
	LatestPoolID(ctx context.Context) (string, error)
}

// RecordStore lee position records. Las escrituras pasan siempre por Journal.Commit.
type RecordStore interface {
	GetLender(ctx context.Context, id string) (domain.LenderRecord, error)
	GetBorrower(ctx context.Context, id string) (domain.BorrowerRecord, error)
	ListLenders(ctx context.Context, poolID string) ([]domain.LenderRecord, error)
	ListBorrowers(ctx context.Context, poolID string) ([]domain.BorrowerRecord, error)
}

// Journal escribe el resultado de cada operación aceptada.
type Journal interface {
	// Commit persiste pool, record y entrada de journal en una sola transacción.
	// Si falla, no queda nada escrito.
	Commit(ctx context.Context, m domain.Mutation) error

	// RecentOperations devuelve las últimas operaciones del pool, más recientes primero.
	RecentOperations(ctx context.Context, poolID string, limit int) ([]domain.Operation, error)
}

// Store agrupa todo lo que necesita el engine.
type Store interface {
	PoolStore
	RecordStore
	Journal

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
