package simulate

// simulate.go — carga concurrente contra un pool real.
//
// Cada parte (lender o borrower) es una goroutine que registra su record y encadena
// ciclos abrir → cerrar. El engine serializa las operaciones; aquí solo se comprueba
// que todo rechazo sea un rechazo de dominio y no un fallo del store.

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultLenders    = 4
	DefaultBorrowers  = 4
	DefaultSteps      = 30
	DefaultRatePerSec = 200
)

// Pool es lo que la simulación necesita del engine.
type Pool interface {
	Snapshot() domain.Pool
	Register(ctx context.Context) (domain.Ticket, error)
	RegisterBorrower(ctx context.Context) (domain.Ticket, error)
	Lend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error)
	WithdrawLend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error)
	Borrow(ctx context.Context, amount decimal.Decimal, t domain.Ticket) (domain.Bucket, error)
	Repay(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error)
	Borrower(ctx context.Context, t domain.Ticket) (domain.BorrowerRecord, error)
}

// Config controla el tamaño de la simulación.
type Config struct {
	Lenders    int
	Borrowers  int
	Steps      int     // operaciones por parte
	RatePerSec float64 // límite global de operaciones
	Seed       uint64
}

// tally acumula resultados desde varias goroutines.
type tally struct {
	mu      sync.Mutex
	summary domain.SimulationSummary
}

func (t *tally) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Attempted++
	if err == nil {
		t.summary.Committed++
		return
	}
	t.summary.Rejected[domain.Outcome(err)]++
}

// Run lanza las partes y espera a que terminen. Un error que no sea de dominio
// (store caído, ctx cancelado) aborta la simulación entera.
func Run(ctx context.Context, pool Pool, cfg Config) (domain.SimulationSummary, error) {
	if cfg.Lenders <= 0 && cfg.Borrowers <= 0 {
		cfg.Lenders, cfg.Borrowers = DefaultLenders, DefaultBorrowers
	}
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}

	start := time.Now()
	t := &tally{summary: domain.SimulationSummary{
		Lenders:   cfg.Lenders,
		Borrowers: cfg.Borrowers,
		Rejected:  make(map[string]int),
	}}
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Lenders; i++ {
		p := party{pool: pool, limiter: limiter, tally: t, rng: rand.New(rand.NewPCG(cfg.Seed, uint64(i)))}
		g.Go(func() error { return p.lender(gctx, cfg.Steps) })
	}
	for i := 0; i < cfg.Borrowers; i++ {
		p := party{pool: pool, limiter: limiter, tally: t, rng: rand.New(rand.NewPCG(cfg.Seed, uint64(cfg.Lenders+i)))}
		g.Go(func() error { return p.borrower(gctx, cfg.Steps) })
	}
	err := g.Wait()

	t.mu.Lock()
	summary := t.summary
	t.mu.Unlock()
	summary.Elapsed = time.Since(start)

	slog.Info("simulate: done",
		"attempted", summary.Attempted,
		"committed", summary.Committed,
		"elapsed", summary.Elapsed,
	)
	if err != nil {
		return summary, fmt.Errorf("simulate.Run: %w", err)
	}
	return summary, nil
}

type party struct {
	pool    Pool
	limiter *rate.Limiter
	tally   *tally
	rng     *rand.Rand
}

// step espera turno, ejecuta op y clasifica el resultado. Solo devuelve error si la
// simulación se canceló o venció, o si el fallo no es un rechazo de dominio. Un
// timeout de una petición suelta se cuenta como rechazo.
func (p *party) step(ctx context.Context, op func() error) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}
	err := op()
	p.tally.record(err)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil || domain.Outcome(err) == "error" {
		return false, err
	}
	return false, nil
}

func (p *party) lender(ctx context.Context, steps int) error {
	var ticket domain.Ticket
	if ok, err := p.step(ctx, func() (err error) {
		ticket, err = p.pool.Register(ctx)
		return err
	}); !ok {
		return err
	}

	var held domain.Bucket // LND de un lend abierto
	for i := 0; i < steps; i++ {
		if held.IsEmpty() {
			snap := p.pool.Snapshot()
			amount := p.pick(snap.Base.Amount(), snap.Params.MinRatioLend, snap.Params.MaxRatioLend)
			if _, err := p.step(ctx, func() (err error) {
				held, err = p.pool.Lend(ctx, domain.NewBucket(domain.AssetBase, amount), ticket)
				return err
			}); err != nil {
				return err
			}
			continue
		}
		ok, err := p.step(ctx, func() error {
			_, err := p.pool.WithdrawLend(ctx, held, ticket)
			return err
		})
		if err != nil {
			return err
		}
		if ok {
			held = domain.Bucket{}
		}
	}
	return nil
}

func (p *party) borrower(ctx context.Context, steps int) error {
	var ticket domain.Ticket
	if ok, err := p.step(ctx, func() (err error) {
		ticket, err = p.pool.RegisterBorrower(ctx)
		return err
	}); !ok {
		return err
	}

	for i := 0; i < steps; i++ {
		rec, err := p.pool.Borrower(ctx, ticket)
		if err != nil {
			if ctx.Err() != nil || domain.Outcome(err) == "error" {
				return err
			}
			continue
		}
		if !rec.Open {
			snap := p.pool.Snapshot()
			amount := p.pick(snap.Base.Amount(), snap.Params.MinRatioBorrow, snap.Params.MaxRatioBorrow)
			if _, err := p.step(ctx, func() error {
				_, err := p.pool.Borrow(ctx, amount, ticket)
				return err
			}); err != nil {
				return err
			}
			continue
		}

		// A veces paga en dos plazos para ejercitar el repago parcial.
		pay := rec.Owed
		if p.rng.IntN(3) == 0 {
			pay = domain.RoundUp(rec.Owed.Div(decimal.NewFromInt(2)), domain.Precision)
		}
		if _, err := p.step(ctx, func() error {
			_, err := p.pool.Repay(ctx, domain.NewBucket(domain.AssetBase, pay), ticket)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// pick elige un importe dentro de la banda (min, max) del tamaño actual de la reserva,
// con 2 decimales. Un 10% de las veces se sale de la banda a propósito.
func (p *party) pick(reserve, minRatio, maxRatio decimal.Decimal) decimal.Decimal {
	lo := minRatio.InexactFloat64()
	hi := maxRatio.InexactFloat64()
	pct := lo + (hi-lo)*(0.05+0.9*p.rng.Float64())
	if p.rng.IntN(10) == 0 {
		pct = hi + 1 + p.rng.Float64()*hi
	}
	return domain.Percent(reserve, decimal.NewFromFloat(pct)).Round(domain.Precision)
}
