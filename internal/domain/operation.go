package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationKind identifica una operación del journal.
type OperationKind string

const (
	OpCreate           OperationKind = "create"
	OpRegister         OperationKind = "register"
	OpRegisterBorrower OperationKind = "register_borrower"
	OpLend             OperationKind = "lend"
	OpWithdrawLend     OperationKind = "withdraw_lend"
	OpBorrow           OperationKind = "borrow"
	OpRepay            OperationKind = "repay"
)

// Operation es una entrada del journal: lo que entró, lo que salió y cómo quedaron
// las reservas. Solo se escriben operaciones aceptadas.
type Operation struct {
	ID         string
	PoolID     string
	RecordID   string // vacío en create
	Kind       OperationKind
	Tier       Tier
	AmountIn   decimal.Decimal
	AmountOut  decimal.Decimal
	Minted     decimal.Decimal
	Burned     decimal.Decimal
	BaseAfter  decimal.Decimal
	YieldAfter decimal.Decimal
	At         time.Time
}

// Mutation es el resultado completo de una operación, que el store escribe en una
// sola transacción. Lender y Borrower son nil cuando la operación no toca records.
type Mutation struct {
	Pool      *Pool
	Lender    *LenderRecord
	Borrower  *BorrowerRecord
	Operation Operation
}

// Report es una foto del pool para presentación: estado, records y journal reciente.
type Report struct {
	Pool       Pool
	Lenders    []LenderRecord
	Borrowers  []BorrowerRecord
	Operations []Operation
}

// SimulationSummary resume una carrera de simulación.
type SimulationSummary struct {
	Lenders   int
	Borrowers int
	Attempted int
	Committed int
	Rejected  map[string]int // outcome → count
	Elapsed   time.Duration
}
