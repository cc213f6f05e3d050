package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Límites de creación: un pool con reward ≥ fee sería insolvente por construcción.
var (
	MinFee         = Dec("5")
	MaxFee         = Dec("10")
	MinReward      = Dec("3")
	MaxReward      = Dec("7")
	MinStartAmount = Dec("1000")
)

// PoolParams es la configuración inmutable de un pool. Todos los valores en porcentaje.
type PoolParams struct {
	Fee           decimal.Decimal // fee base del borrower
	Reward        decimal.Decimal // reward base del lender
	BonusFeeL1    decimal.Decimal // descuento de fee en L1
	BonusFeeL2    decimal.Decimal
	ExtraRewardL1 decimal.Decimal // reward extra en L1
	ExtraRewardL2 decimal.Decimal

	MinRatioLend   decimal.Decimal
	MaxRatioLend   decimal.Decimal
	MinRatioBorrow decimal.Decimal
	MaxRatioBorrow decimal.Decimal

	LoanPoolLowLimit decimal.Decimal // suelo de la reserva LND, % de StartAmount
	MainPoolLowLimit decimal.Decimal // suelo de la reserva base, % de StartAmount

	TierLow  int
	TierHigh int
}

// DefaultPoolParams devuelve los parámetros de despliegue estándar con fee y reward dados.
func DefaultPoolParams(fee, reward decimal.Decimal) PoolParams {
	return PoolParams{
		Fee:              fee,
		Reward:           reward,
		BonusFeeL1:       Dec("0.4"),
		BonusFeeL2:       Dec("0.8"),
		ExtraRewardL1:    Dec("0.4"),
		ExtraRewardL2:    Dec("0.8"),
		MinRatioLend:     Dec("5"),
		MaxRatioLend:     Dec("20"),
		MinRatioBorrow:   Dec("3"),
		MaxRatioBorrow:   Dec("12"),
		LoanPoolLowLimit: Dec("75"),
		MainPoolLowLimit: Dec("50"),
		TierLow:          DefaultTierLow,
		TierHigh:         DefaultTierHigh,
	}
}

// Validate comprueba los invariantes de creación.
func (p PoolParams) Validate() error {
	if p.Fee.LessThan(MinFee) || p.Fee.GreaterThan(MaxFee) {
		return fmt.Errorf("%w: fee %s must be between %s and %s", ErrConfiguration, p.Fee, MinFee, MaxFee)
	}
	if p.Reward.LessThan(MinReward) || p.Reward.GreaterThan(MaxReward) {
		return fmt.Errorf("%w: reward %s must be between %s and %s", ErrConfiguration, p.Reward, MinReward, MaxReward)
	}
	if !p.Reward.LessThan(p.Fee) {
		return fmt.Errorf("%w: fee %s must be higher than reward %s", ErrConfiguration, p.Fee, p.Reward)
	}

	for name, v := range map[string]decimal.Decimal{
		"bonus_fee_l1":    p.BonusFeeL1,
		"bonus_fee_l2":    p.BonusFeeL2,
		"extra_reward_l1": p.ExtraRewardL1,
		"extra_reward_l2": p.ExtraRewardL2,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrConfiguration, name)
		}
	}
	if !p.BonusFeeL2.LessThan(p.Fee) {
		return fmt.Errorf("%w: bonus_fee_l2 %s must be lower than fee %s", ErrConfiguration, p.BonusFeeL2, p.Fee)
	}

	if err := validBand("lend", p.MinRatioLend, p.MaxRatioLend); err != nil {
		return err
	}
	if err := validBand("borrow", p.MinRatioBorrow, p.MaxRatioBorrow); err != nil {
		return err
	}
	if err := validBand("loan_pool_low_limit", decimal.Zero, p.LoanPoolLowLimit); err != nil {
		return err
	}
	if err := validBand("main_pool_low_limit", decimal.Zero, p.MainPoolLowLimit); err != nil {
		return err
	}

	if p.TierLow < 0 || p.TierHigh < p.TierLow {
		return fmt.Errorf("%w: tier band %d..%d", ErrConfiguration, p.TierLow, p.TierHigh)
	}
	return nil
}

func validBand(name string, lo, hi decimal.Decimal) error {
	if lo.IsNegative() || !lo.LessThan(hi) || hi.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s band (%s, %s) must satisfy 0 ≤ min < max ≤ 100", ErrConfiguration, name, lo, hi)
	}
	return nil
}

// Tier clasifica un contador con la banda configurada del pool.
func (p PoolParams) Tier(completed int) Tier {
	return TierFor(completed, p.TierLow, p.TierHigh)
}

// ExtraReward devuelve el delta de reward del lender para el tier.
func (p PoolParams) ExtraReward(t Tier) decimal.Decimal {
	switch t {
	case TierL1:
		return p.ExtraRewardL1
	case TierL2:
		return p.ExtraRewardL2
	default:
		return decimal.Zero
	}
}

// FeeBonus devuelve el descuento de fee del borrower para el tier.
func (p PoolParams) FeeBonus(t Tier) decimal.Decimal {
	switch t {
	case TierL1:
		return p.BonusFeeL1
	case TierL2:
		return p.BonusFeeL2
	default:
		return decimal.Zero
	}
}

// LenderTerms es la tarifa de un ciclo de lend, fijada por el contador de entrada.
type LenderTerms struct {
	Tier  Tier
	Extra decimal.Decimal // delta sobre Reward
	Rate  decimal.Decimal // Reward + Extra
}

// LenderTerms is the single source for the lender rate: lend uses it to size
// the payout and withdraw-lend uses it to split principal from yield.
func (p PoolParams) LenderTerms(completed int) LenderTerms {
	tier := p.Tier(completed)
	extra := p.ExtraReward(tier)
	return LenderTerms{Tier: tier, Extra: extra, Rate: p.Reward.Add(extra)}
}

// BorrowerTerms es la tarifa de un ciclo de borrow.
type BorrowerTerms struct {
	Tier  Tier
	Bonus decimal.Decimal // descuento sobre Fee
	Rate  decimal.Decimal // Fee - Bonus
}

func (p PoolParams) BorrowerTerms(completed int) BorrowerTerms {
	tier := p.Tier(completed)
	bonus := p.FeeBonus(tier)
	return BorrowerTerms{Tier: tier, Bonus: bonus, Rate: p.Fee.Sub(bonus)}
}

// Pool es el estado completo de un mercado: dos reservas más contadores.
// Es un valor: copiarlo da una copia de trabajo independiente.
type Pool struct {
	ID               string
	AuthorityID      string
	Base             Reserve // main pool
	Yield            Reserve // loan pool (LND)
	StartAmount      decimal.Decimal
	CumulativeRepaid decimal.Decimal
	Params           PoolParams
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPool valida los parámetros de creación y construye las reservas iniciales.
// La reserva LND arranca con startAmount unidades minteadas por la authority.
func NewPool(id string, authority *Authority, deposit Bucket, startAmount decimal.Decimal, params PoolParams, now time.Time) (Pool, error) {
	if err := params.Validate(); err != nil {
		return Pool{}, err
	}
	if startAmount.LessThan(MinStartAmount) {
		return Pool{}, fmt.Errorf("%w: loan pool must start with at least %s units, got %s",
			ErrConfiguration, MinStartAmount, startAmount)
	}
	if deposit.Asset != AssetBase || !deposit.Amount.IsPositive() {
		return Pool{}, fmt.Errorf("%w: main pool needs a non-empty %s deposit", ErrConfiguration, AssetBase)
	}

	p := Pool{
		ID:               id,
		AuthorityID:      authority.ID(),
		Base:             NewReserve(AssetBase, decimal.Zero, ""),
		Yield:            NewReserve(AssetYield, decimal.Zero, authority.ID()),
		StartAmount:      startAmount,
		CumulativeRepaid: decimal.Zero,
		Params:           params,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.Base.Put(deposit); err != nil {
		return Pool{}, err
	}
	if err := authority.Authorize(func(g Grant) error {
		return p.Yield.Mint(g, startAmount)
	}); err != nil {
		return Pool{}, err
	}
	return p, nil
}

// LoanFloor es el nivel de la reserva LND por debajo del cual no se aceptan lends.
func (p Pool) LoanFloor() decimal.Decimal {
	return Floor(p.StartAmount, p.Params.LoanPoolLowLimit)
}

// MainFloor es el nivel de la reserva base por debajo del cual no se aceptan
// borrows ni withdraws.
func (p Pool) MainFloor() decimal.Decimal {
	return Floor(p.StartAmount, p.Params.MainPoolLowLimit)
}

func (p Pool) LoanPoolHealthy() bool {
	return p.Yield.Amount().GreaterThan(p.LoanFloor())
}

func (p Pool) MainPoolHealthy() bool {
	return p.Base.Amount().GreaterThan(p.MainFloor())
}
