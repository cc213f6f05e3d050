package domain

import "github.com/shopspring/decimal"

// Fórmulas de devengo por evento. Los redondeos van siempre hacia +∞ a Precision
// decimales; lo que no se redondea aquí no se redondea en ningún sitio.

// LendPayout devuelve las LND que recibe un lender por amount:
// round_up(amount + amount×reward/100) más el extra del tier sin redondear.
func LendPayout(amount, reward, extra decimal.Decimal) decimal.Decimal {
	base := RoundUp(amount.Add(Percent(amount, reward)), Precision)
	return base.Add(Percent(amount, extra))
}

// SplitYield separa lnd en principal (lo que vuelve a la reserva de yield) y la
// parte de reward que se quema. rate es el reward efectivo del ciclo.
//
//	lnd : principal = (100 + rate) : 100
func SplitYield(lnd, rate decimal.Decimal) (principal, burn decimal.Decimal) {
	principal = CeilDiv(lnd.Mul(hundred), hundred.Add(rate), Precision)
	return principal, lnd.Sub(principal)
}

// Owed devuelve la deuda de un borrow: amount + amount×fee/100 - amount×bonus/100.
func Owed(amount, fee, bonus decimal.Decimal) decimal.Decimal {
	return amount.Add(Percent(amount, fee)).Sub(Percent(amount, bonus))
}

// FeeShare es la parte de fee contenida en un pago, que se mintea como LND:
// round_up(fee×returned/(100+fee)).
func FeeShare(returned, fee decimal.Decimal) decimal.Decimal {
	return CeilDiv(fee.Mul(returned), hundred.Add(fee), Precision)
}
