package ports

import (
	"context"

	"github.com/alejandrodnm/lendpool/internal/domain"
)

// Observer recibe el resultado de cada operación del engine (métricas, logs externos).
// Se llama con el lock del engine tomado: las implementaciones no deben bloquear.
type Observer interface {
	// PoolOpened recibe el estado rehidratado al abrir un pool existente.
	PoolOpened(pool domain.Pool)
	OperationCommitted(op domain.Operation, pool domain.Pool)
	OperationRejected(kind domain.OperationKind, err error)
}

// Reporter presenta el estado del pool al usuario.
type Reporter interface {
	Report(ctx context.Context, snap domain.Report) error
}
