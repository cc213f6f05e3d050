package domain

import "github.com/shopspring/decimal"

// CheckRatio acota una operación a una banda porcentual de la reserva viva.
//
//	ratio = amount × 100 / reserve
//	acepta solo si min < ratio < max (ambos límites estrictos)
//
// Como la banda se evalúa contra el tamaño actual, el límite absoluto escala con el pool.
// Una reserva no positiva rechaza cualquier importe como AboveMaximum.
func CheckRatio(amount, reserve, minRatio, maxRatio decimal.Decimal) error {
	if !reserve.IsPositive() {
		return &RatioError{
			Bound:     AboveMaximum,
			Ratio:     decimal.Zero,
			MinAmount: decimal.Zero,
			MaxAmount: decimal.Zero,
		}
	}

	// Límites en cruz (amount×100 frente a bound×reserve), exactos a cualquier escala.
	// ratio es solo informativo.
	scaled := amount.Mul(hundred)
	ratio := scaled.Div(reserve)
	minAmount := Percent(reserve, minRatio)
	maxAmount := Percent(reserve, maxRatio)

	if !scaled.GreaterThan(minRatio.Mul(reserve)) {
		return &RatioError{Bound: BelowMinimum, Ratio: ratio, MinAmount: minAmount, MaxAmount: maxAmount}
	}
	if !scaled.LessThan(maxRatio.Mul(reserve)) {
		return &RatioError{Bound: AboveMaximum, Ratio: ratio, MinAmount: minAmount, MaxAmount: maxAmount}
	}
	return nil
}

// Floor devuelve el nivel mínimo de salud: denominator × lowLimitPct / 100.
func Floor(denominator, lowLimitPct decimal.Decimal) decimal.Decimal {
	return Percent(denominator, lowLimitPct)
}
