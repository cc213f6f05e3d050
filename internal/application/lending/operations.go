package lending

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/shopspring/decimal"
)

// Todas las operaciones siguen el mismo esquema:
//   1. lock del engine (orden total entre operaciones)
//   2. copia de trabajo del pool y del record leído del store
//   3. guards: ninguno muta nada
//   4. mutaciones sobre las copias; mint, burn y records bajo Authorize
//   5. commit al store y sustitución del estado vivo
// Un error en cualquier paso deja el pool y el record como estaban.

// Register crea un lender record vacío y devuelve su ticket.
func (e *Engine) Register(ctx context.Context) (domain.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	rec := domain.NewLenderRecord(e.newID(), e.pool.ID, e.newID(), now)
	op := domain.Operation{RecordID: rec.ID, Kind: domain.OpRegister, At: now}
	if err := e.commit(ctx, e.pool, domain.Mutation{Lender: &rec, Operation: zeroAmounts(op)}); err != nil {
		e.reject(domain.OpRegister, err)
		return domain.Ticket{}, fmt.Errorf("lending.Register: %w", err)
	}

	slog.Info("lending: lender registered", "record", rec.ID)
	return rec.Ticket(), nil
}

// RegisterBorrower crea un borrower record vacío y devuelve su ticket.
func (e *Engine) RegisterBorrower(ctx context.Context) (domain.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	rec := domain.NewBorrowerRecord(e.newID(), e.pool.ID, e.newID(), now)
	op := domain.Operation{RecordID: rec.ID, Kind: domain.OpRegisterBorrower, At: now}
	if err := e.commit(ctx, e.pool, domain.Mutation{Borrower: &rec, Operation: zeroAmounts(op)}); err != nil {
		e.reject(domain.OpRegisterBorrower, err)
		return domain.Ticket{}, fmt.Errorf("lending.RegisterBorrower: %w", err)
	}

	slog.Info("lending: borrower registered", "record", rec.ID)
	return rec.Ticket(), nil
}

// Lend deposita tokens en la reserva base y devuelve el payout en LND:
//
//	payout = round_up(amount + amount×reward/100, 2) + amount×extra(tier)/100
//
// El tier se fija aquí, a la entrada, con el contador de operaciones completadas.
// No hay chequeo de suelo después del payout: el suelo es solo de entrada.
func (e *Engine) Lend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.lend(ctx, tokens, t)
	if err != nil {
		e.reject(domain.OpLend, err, "record", t.ID, "amount", tokens.Amount)
		return domain.Bucket{}, fmt.Errorf("lending.Lend: %w", err)
	}
	return out, nil
}

func (e *Engine) lend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if err := tokens.Expect(domain.AssetBase); err != nil {
		return domain.Bucket{}, err
	}
	rec, err := e.loadLender(ctx, t)
	if err != nil {
		return domain.Bucket{}, err
	}

	work := e.pool
	prm := work.Params
	amount := tokens.Amount
	slog.Debug("lending: lend start",
		"record", rec.ID, "amount", amount,
		"base", work.Base.Amount(), "yield", work.Yield.Amount(), "loan_floor", work.LoanFloor())

	if rec.Open {
		return domain.Bucket{}, domain.ErrAlreadyOpen
	}
	if err := domain.CheckRatio(amount, work.Base.Amount(), prm.MinRatioLend, prm.MaxRatioLend); err != nil {
		return domain.Bucket{}, err
	}
	if !work.LoanPoolHealthy() {
		return domain.Bucket{}, fmt.Errorf("%w: loan pool %s ≤ floor %s",
			domain.ErrPoolUnhealthy, work.Yield.Amount(), work.LoanFloor())
	}

	terms := prm.LenderTerms(rec.CompletedCount)
	payout := domain.LendPayout(amount, prm.Reward, terms.Extra)
	if payout.GreaterThan(work.Yield.Amount()) {
		return domain.Bucket{}, fmt.Errorf("%w: payout %s exceeds loan pool %s",
			domain.ErrInsufficientReserve, payout, work.Yield.Amount())
	}

	// mutaciones
	if err := work.Base.Put(tokens); err != nil {
		return domain.Bucket{}, err
	}
	out, err := work.Yield.Take(payout)
	if err != nil {
		return domain.Bucket{}, err
	}
	now := e.now()
	if err := e.authority.Authorize(func(g domain.Grant) error {
		return rec.Enter(g, terms.Tier, now)
	}); err != nil {
		return domain.Bucket{}, err
	}

	op := domain.Operation{
		RecordID:  rec.ID,
		Kind:      domain.OpLend,
		Tier:      terms.Tier,
		AmountIn:  amount,
		AmountOut: payout,
		Minted:    decimal.Zero,
		Burned:    decimal.Zero,
		At:        now,
	}
	if err := e.commit(ctx, work, domain.Mutation{Lender: &rec, Operation: op}); err != nil {
		return domain.Bucket{}, err
	}

	slog.Info("lending: lend",
		"record", rec.ID, "amount", amount, "payout", payout, "tier", terms.Tier,
		"base", work.Base.Amount(), "yield", work.Yield.Amount())
	return out, nil
}

// WithdrawLend cierra un lend: devuelve tokens.Amount del activo base y reingresa
// las LND en la reserva de yield, quemando la parte que era reward:
//
//	principal = round_up(lnd×100/(100+rate), 2)
//	burn      = lnd - principal
//
// rate sale de la misma función que usó Lend, así que principal es lo prestado.
func (e *Engine) WithdrawLend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.withdrawLend(ctx, tokens, t)
	if err != nil {
		e.reject(domain.OpWithdrawLend, err, "record", t.ID, "amount", tokens.Amount)
		return domain.Bucket{}, fmt.Errorf("lending.WithdrawLend: %w", err)
	}
	return out, nil
}

func (e *Engine) withdrawLend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if err := tokens.Expect(domain.AssetYield); err != nil {
		return domain.Bucket{}, err
	}
	rec, err := e.loadLender(ctx, t)
	if err != nil {
		return domain.Bucket{}, err
	}

	work := e.pool
	lnd := tokens.Amount
	slog.Debug("lending: withdraw start",
		"record", rec.ID, "lnd", lnd,
		"base", work.Base.Amount(), "yield", work.Yield.Amount(), "main_floor", work.MainFloor())

	if !rec.Open {
		return domain.Bucket{}, domain.ErrNotOpen
	}
	if !work.MainPoolHealthy() {
		return domain.Bucket{}, fmt.Errorf("%w: main pool %s ≤ floor %s",
			domain.ErrPoolUnhealthy, work.Base.Amount(), work.MainFloor())
	}
	if lnd.GreaterThan(work.Base.Amount()) {
		return domain.Bucket{}, fmt.Errorf("%w: withdraw %s exceeds main pool %s",
			domain.ErrInsufficientReserve, lnd, work.Base.Amount())
	}

	terms := work.Params.LenderTerms(rec.CompletedCount)
	principal, burn := domain.SplitYield(lnd, terms.Rate)

	// mutaciones
	out, err := work.Base.Take(lnd)
	if err != nil {
		return domain.Bucket{}, err
	}
	if err := work.Yield.Put(tokens); err != nil {
		return domain.Bucket{}, err
	}
	if err := e.authority.Authorize(func(g domain.Grant) error {
		return work.Yield.Burn(g, burn)
	}); err != nil {
		return domain.Bucket{}, err
	}
	now := e.now()
	if err := e.authority.Authorize(func(g domain.Grant) error {
		return rec.Exit(g, now)
	}); err != nil {
		return domain.Bucket{}, err
	}

	op := domain.Operation{
		RecordID:  rec.ID,
		Kind:      domain.OpWithdrawLend,
		Tier:      terms.Tier,
		AmountIn:  lnd,
		AmountOut: lnd,
		Minted:    decimal.Zero,
		Burned:    burn,
		At:        now,
	}
	if err := e.commit(ctx, work, domain.Mutation{Lender: &rec, Operation: op}); err != nil {
		return domain.Bucket{}, err
	}

	slog.Info("lending: withdraw lend",
		"record", rec.ID, "lnd", lnd, "principal", principal, "burned", burn,
		"completed", rec.CompletedCount, "base", work.Base.Amount(), "yield", work.Yield.Amount())
	return out, nil
}

// Borrow saca amount de la reserva base sin colateral. La deuda queda en el record:
//
//	owed = amount + amount×fee/100 - amount×bonus(tier)/100
func (e *Engine) Borrow(ctx context.Context, amount decimal.Decimal, t domain.Ticket) (domain.Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.borrow(ctx, amount, t)
	if err != nil {
		e.reject(domain.OpBorrow, err, "record", t.ID, "amount", amount)
		return domain.Bucket{}, fmt.Errorf("lending.Borrow: %w", err)
	}
	return out, nil
}

func (e *Engine) borrow(ctx context.Context, amount decimal.Decimal, t domain.Ticket) (domain.Bucket, error) {
	if !amount.IsPositive() {
		return domain.Bucket{}, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	rec, err := e.loadBorrower(ctx, t)
	if err != nil {
		return domain.Bucket{}, err
	}

	work := e.pool
	prm := work.Params
	slog.Debug("lending: borrow start",
		"record", rec.ID, "amount", amount,
		"base", work.Base.Amount(), "yield", work.Yield.Amount(), "main_floor", work.MainFloor())

	if rec.Open {
		return domain.Bucket{}, domain.ErrAlreadyOpen
	}
	if !work.MainPoolHealthy() {
		return domain.Bucket{}, fmt.Errorf("%w: main pool %s ≤ floor %s",
			domain.ErrPoolUnhealthy, work.Base.Amount(), work.MainFloor())
	}
	if err := domain.CheckRatio(amount, work.Base.Amount(), prm.MinRatioBorrow, prm.MaxRatioBorrow); err != nil {
		return domain.Bucket{}, err
	}

	terms := prm.BorrowerTerms(rec.CompletedCount)
	owed := domain.Owed(amount, prm.Fee, terms.Bonus)

	// mutaciones
	out, err := work.Base.Take(amount)
	if err != nil {
		return domain.Bucket{}, err
	}
	now := e.now()
	if err := e.authority.Authorize(func(g domain.Grant) error {
		return rec.Enter(g, terms.Tier, owed, now)
	}); err != nil {
		return domain.Bucket{}, err
	}

	op := domain.Operation{
		RecordID:  rec.ID,
		Kind:      domain.OpBorrow,
		Tier:      terms.Tier,
		AmountIn:  decimal.Zero,
		AmountOut: amount,
		Minted:    decimal.Zero,
		Burned:    decimal.Zero,
		At:        now,
	}
	if err := e.commit(ctx, work, domain.Mutation{Borrower: &rec, Operation: op}); err != nil {
		return domain.Bucket{}, err
	}

	slog.Info("lending: borrow",
		"record", rec.ID, "amount", amount, "owed", owed, "tier", terms.Tier,
		"base", work.Base.Amount(), "yield", work.Yield.Amount())
	return out, nil
}

// Repay devuelve activo base contra la deuda abierta. Un pago ≥ owed cierra la
// posición y devuelve el exceso como cambio; uno menor solo reduce owed.
// Cada pago mintea round_up(fee×returned/(100+fee), 2) LND con el fee base del pool,
// independiente del tier del borrower.
func (e *Engine) Repay(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	change, err := e.repay(ctx, tokens, t)
	if err != nil {
		e.reject(domain.OpRepay, err, "record", t.ID, "amount", tokens.Amount)
		return domain.Bucket{}, fmt.Errorf("lending.Repay: %w", err)
	}
	return change, nil
}

func (e *Engine) repay(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error) {
	if err := tokens.Expect(domain.AssetBase); err != nil {
		return domain.Bucket{}, err
	}
	rec, err := e.loadBorrower(ctx, t)
	if err != nil {
		return domain.Bucket{}, err
	}

	work := e.pool
	fee := work.Params.Fee
	returned := tokens.Amount
	slog.Debug("lending: repay start",
		"record", rec.ID, "returned", returned, "owed", rec.Owed,
		"base", work.Base.Amount(), "yield", work.Yield.Amount())

	if !rec.Open {
		return domain.Bucket{}, domain.ErrNotOpen
	}

	// mutaciones
	work.CumulativeRepaid = work.CumulativeRepaid.Add(returned)
	now := e.now()
	var (
		applied decimal.Decimal
		full    bool
	)
	if err := e.authority.Authorize(func(g domain.Grant) error {
		var err error
		applied, full, err = rec.Settle(g, returned, now)
		return err
	}); err != nil {
		return domain.Bucket{}, err
	}
	if err := work.Base.Put(domain.NewBucket(domain.AssetBase, applied)); err != nil {
		return domain.Bucket{}, err
	}
	change := domain.NewBucket(domain.AssetBase, returned.Sub(applied))

	minted := domain.FeeShare(returned, fee)
	if err := e.authority.Authorize(func(g domain.Grant) error {
		return work.Yield.Mint(g, minted)
	}); err != nil {
		return domain.Bucket{}, err
	}

	op := domain.Operation{
		RecordID:  rec.ID,
		Kind:      domain.OpRepay,
		AmountIn:  returned,
		AmountOut: change.Amount,
		Minted:    minted,
		Burned:    decimal.Zero,
		At:        now,
	}
	if err := e.commit(ctx, work, domain.Mutation{Borrower: &rec, Operation: op}); err != nil {
		return domain.Bucket{}, err
	}

	slog.Info("lending: repay",
		"record", rec.ID, "returned", returned, "applied", applied, "change", change.Amount,
		"full", full, "owed", rec.Owed, "minted", minted,
		"base", work.Base.Amount(), "yield", work.Yield.Amount())
	return change, nil
}

func zeroAmounts(op domain.Operation) domain.Operation {
	op.AmountIn = decimal.Zero
	op.AmountOut = decimal.Zero
	op.Minted = decimal.Zero
	op.Burned = decimal.Zero
	return op
}
