package lending

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/alejandrodnm/lendpool/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReportOps es el número de entradas de journal que incluye Report por defecto.
const DefaultReportOps = 20

// CreateParams son los parámetros de creación de un pool.
type CreateParams struct {
	InitialBaseDeposit domain.Bucket
	StartAmount        decimal.Decimal
	Fee                decimal.Decimal
	Reward             decimal.Decimal

	// Overrides ajusta los parámetros por defecto (tiers, ratios, suelos) antes de validar.
	Overrides func(*domain.PoolParams)
}

// Engine es el dueño del pool: ejecuta las operaciones de una en una, contra una
// copia de trabajo que solo sustituye al estado vivo cuando el store confirma el commit.
type Engine struct {
	mu        sync.Mutex
	pool      domain.Pool
	authority *domain.Authority
	store     ports.Store
	observer  ports.Observer
	now       func() time.Time
	newID     func() string
}

// Option configura un Engine.
type Option func(*Engine)

// WithObserver registra un observer (p.ej. métricas) para cada operación.
func WithObserver(o ports.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock sustituye time.Now, útil en tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func newEngine(store ports.Store, opts []Option) *Engine {
	e := &Engine{
		store:    store,
		observer: nopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create valida los parámetros, crea las reservas, mintea StartAmount unidades LND y
// persiste el pool. Devuelve el engine y la identidad de la authority del pool.
func Create(ctx context.Context, store ports.Store, cp CreateParams, opts ...Option) (*Engine, string, error) {
	e := newEngine(store, opts)

	params := domain.DefaultPoolParams(cp.Fee, cp.Reward)
	if cp.Overrides != nil {
		cp.Overrides(&params)
	}

	authority := domain.NewAuthority(e.newID())
	now := e.now()
	pool, err := domain.NewPool(e.newID(), authority, cp.InitialBaseDeposit, cp.StartAmount, params, now)
	if err != nil {
		e.observer.OperationRejected(domain.OpCreate, err)
		return nil, "", fmt.Errorf("lending.Create: %w", err)
	}

	op := domain.Operation{
		ID:         e.newID(),
		PoolID:     pool.ID,
		Kind:       domain.OpCreate,
		AmountIn:   cp.InitialBaseDeposit.Amount,
		Minted:     cp.StartAmount,
		Burned:     decimal.Zero,
		AmountOut:  decimal.Zero,
		BaseAfter:  pool.Base.Amount(),
		YieldAfter: pool.Yield.Amount(),
		At:         now,
	}
	if err := store.Commit(ctx, domain.Mutation{Pool: &pool, Operation: op}); err != nil {
		return nil, "", fmt.Errorf("lending.Create: %w", err)
	}

	e.pool = pool
	e.authority = authority
	e.observer.OperationCommitted(op, pool)

	slog.Info("lending: pool created",
		"pool", pool.ID,
		"base", pool.Base.Amount(),
		"yield", pool.Yield.Amount(),
		"fee", params.Fee,
		"reward", params.Reward,
	)
	return e, authority.ID(), nil
}

// Open rehidrata un pool persistido. Con poolID vacío abre el último creado.
func Open(ctx context.Context, store ports.Store, poolID string, opts ...Option) (*Engine, error) {
	if poolID == "" {
		id, err := store.LatestPoolID(ctx)
		if err != nil {
			return nil, fmt.Errorf("lending.Open: %w", err)
		}
		poolID = id
	}

	pool, err := store.LoadPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("lending.Open: %w", err)
	}

	e := newEngine(store, opts)
	e.pool = pool
	e.authority = domain.NewAuthority(pool.AuthorityID)

	e.observer.PoolOpened(pool)

	slog.Info("lending: pool opened",
		"pool", pool.ID,
		"base", pool.Base.Amount(),
		"yield", pool.Yield.Amount(),
	)
	return e, nil
}

// --- lecturas ---

func (e *Engine) PoolID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.ID
}

func (e *Engine) AuthorityID() string {
	return e.authority.ID()
}

// Fee devuelve el fee base (porcentaje) del pool.
func (e *Engine) Fee() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Params.Fee
}

// Reward devuelve el reward base (porcentaje) del pool.
func (e *Engine) Reward() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Params.Reward
}

// LoanPoolSize devuelve las unidades LND en la reserva de yield.
func (e *Engine) LoanPoolSize() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Yield.Amount()
}

// MainPoolSize devuelve el activo base en la reserva principal.
func (e *Engine) MainPoolSize() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Base.Amount()
}

func (e *Engine) CumulativeRepaid() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.CumulativeRepaid
}

// Snapshot devuelve una copia del estado actual del pool.
func (e *Engine) Snapshot() domain.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool
}

// Lender devuelve el record del ticket, tras autenticarlo.
func (e *Engine) Lender(ctx context.Context, t domain.Ticket) (domain.LenderRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.loadLender(ctx, t)
	if err != nil {
		return domain.LenderRecord{}, fmt.Errorf("lending.Lender: %w", err)
	}
	return rec, nil
}

// Borrower devuelve el record del ticket, tras autenticarlo.
func (e *Engine) Borrower(ctx context.Context, t domain.Ticket) (domain.BorrowerRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.loadBorrower(ctx, t)
	if err != nil {
		return domain.BorrowerRecord{}, fmt.Errorf("lending.Borrower: %w", err)
	}
	return rec, nil
}

// Report reúne estado, records y las últimas opsLimit operaciones del journal.
func (e *Engine) Report(ctx context.Context, opsLimit int) (domain.Report, error) {
	if opsLimit <= 0 {
		opsLimit = DefaultReportOps
	}
	pool := e.Snapshot()

	lenders, err := e.store.ListLenders(ctx, pool.ID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("lending.Report: %w", err)
	}
	borrowers, err := e.store.ListBorrowers(ctx, pool.ID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("lending.Report: %w", err)
	}
	ops, err := e.store.RecentOperations(ctx, pool.ID, opsLimit)
	if err != nil {
		return domain.Report{}, fmt.Errorf("lending.Report: %w", err)
	}
	return domain.Report{Pool: pool, Lenders: lenders, Borrowers: borrowers, Operations: ops}, nil
}

// --- helpers internos ---

// loadLender lee y autentica el record del ticket. Un record de otro pool no existe.
func (e *Engine) loadLender(ctx context.Context, t domain.Ticket) (domain.LenderRecord, error) {
	if t.Role != domain.RoleLender {
		return domain.LenderRecord{}, fmt.Errorf("%w: got %s ticket", domain.ErrWrongRole, t.Role)
	}
	rec, err := e.store.GetLender(ctx, t.ID)
	if err != nil {
		return domain.LenderRecord{}, err
	}
	if rec.PoolID != e.pool.ID {
		return domain.LenderRecord{}, domain.ErrRecordNotFound
	}
	if err := rec.Authenticate(t); err != nil {
		return domain.LenderRecord{}, err
	}
	return rec, nil
}

func (e *Engine) loadBorrower(ctx context.Context, t domain.Ticket) (domain.BorrowerRecord, error) {
	if t.Role != domain.RoleBorrower {
		return domain.BorrowerRecord{}, fmt.Errorf("%w: got %s ticket", domain.ErrWrongRole, t.Role)
	}
	rec, err := e.store.GetBorrower(ctx, t.ID)
	if err != nil {
		return domain.BorrowerRecord{}, err
	}
	if rec.PoolID != e.pool.ID {
		return domain.BorrowerRecord{}, domain.ErrRecordNotFound
	}
	if err := rec.Authenticate(t); err != nil {
		return domain.BorrowerRecord{}, err
	}
	return rec, nil
}

// commit persiste la mutación y, solo si el store la acepta, la publica como estado vivo.
// Se llama con e.mu tomado.
func (e *Engine) commit(ctx context.Context, work domain.Pool, m domain.Mutation) error {
	work.UpdatedAt = m.Operation.At
	m.Pool = &work
	m.Operation.ID = e.newID()
	m.Operation.PoolID = work.ID
	m.Operation.BaseAfter = work.Base.Amount()
	m.Operation.YieldAfter = work.Yield.Amount()

	if err := e.store.Commit(ctx, m); err != nil {
		return err
	}
	e.pool = work
	e.observer.OperationCommitted(m.Operation, work)
	return nil
}

// reject registra un rechazo: Warn para guards y contextos vencidos, Error para fallos de infraestructura.
func (e *Engine) reject(kind domain.OperationKind, err error, args ...any) {
	e.observer.OperationRejected(kind, err)
	args = append([]any{"op", kind, "outcome", domain.Outcome(err), "err", err}, args...)
	if domain.Outcome(err) == "error" {
		slog.Error("lending: operation failed", args...)
		return
	}
	slog.Warn("lending: operation rejected", args...)
}

type nopObserver struct{}

func (nopObserver) PoolOpened(domain.Pool)                           {}
func (nopObserver) OperationCommitted(domain.Operation, domain.Pool) {}
func (nopObserver) OperationRejected(domain.OperationKind, error)    {}
