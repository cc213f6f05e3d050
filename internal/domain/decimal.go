package domain

import "github.com/shopspring/decimal"

// Precision es el número de decimales al que se redondean payout, principal y mint.
const Precision int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundUp redondea d hacia +∞ con places decimales.
// 1.001 → 1.01, -1.009 → -1.00.
func RoundUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Ceil().Shift(-places)
}

// Percent devuelve amount × pct / 100. Exacto: dividir por 100 es un Shift.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Shift(-2)
}

// CeilDiv devuelve num / den redondeado hacia +∞ a places decimales, sin pasar
// por un cociente intermedio truncado a DivisionPrecision.
func CeilDiv(num, den decimal.Decimal, places int32) decimal.Decimal {
	q, r := num.QuoRem(den, places)
	// q está truncado hacia cero; el resto indica en qué lado queda el cociente real.
	if r.Sign()*den.Sign() > 0 {
		q = q.Add(decimal.New(1, -places))
	}
	return q
}

// Dec parsea un literal decimal. Solo para constantes conocidas: hace panic si es inválido.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
