package domain

// Tier es el nivel de fidelidad que desbloquea el historial de operaciones completadas.
type Tier int

const (
	TierNone Tier = iota
	TierL1
	TierL2
)

// Default tier band: L1 for 10..20 completed operations, L2 above 20.
const (
	DefaultTierLow  = 10
	DefaultTierHigh = 20
)

func (t Tier) String() string {
	switch t {
	case TierL1:
		return "L1"
	case TierL2:
		return "L2"
	default:
		return "-"
	}
}

// TierFor clasifica un contador de operaciones completadas.
//
//	L1 ⇔ low ≤ completed ≤ high
//	L2 ⇔ completed > high
//
// Las dos bandas no se solapan en high.
func TierFor(completed, low, high int) Tier {
	switch {
	case completed > high:
		return TierL2
	case completed >= low:
		return TierL1
	default:
		return TierNone
	}
}
