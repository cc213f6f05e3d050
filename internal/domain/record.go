package domain

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role distingue las dos variantes de position record.
type Role string

const (
	RoleLender   Role = "lender"
	RoleBorrower Role = "borrower"
)

// Ticket es la prueba de propiedad que presenta el cliente: identifica el record
// y demuestra que lo registró quien lo usa. El estado vive en el store, nunca aquí.
type Ticket struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Key  string `json:"key"`
}

// authenticate compara rol, id y clave (en tiempo constante).
func authenticate(t Ticket, role Role, id, key string) error {
	if t.Role != role {
		return fmt.Errorf("%w: ticket is for a %s record, want %s", ErrWrongRole, t.Role, role)
	}
	if t.ID != id || subtle.ConstantTimeCompare([]byte(t.Key), []byte(key)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// markTier aplica el tier de entrada a los flags. Un tier superior reemplaza al
// inferior; TierNone deja los flags como estaban.
func markTier(tier Tier, tier1, tier2 *bool) {
	switch tier {
	case TierL1:
		*tier1 = true
	case TierL2:
		*tier1 = false
		*tier2 = true
	}
}

// LenderRecord es la posición de un lender. Solo el engine lo muta, bajo grant.
type LenderRecord struct {
	ID             string
	PoolID         string
	Key            string
	CompletedCount int
	Tier1          bool
	Tier2          bool
	Open           bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewLenderRecord(id, poolID, key string, now time.Time) LenderRecord {
	return LenderRecord{ID: id, PoolID: poolID, Key: key, CreatedAt: now, UpdatedAt: now}
}

func (r *LenderRecord) Ticket() Ticket {
	return Ticket{ID: r.ID, Role: RoleLender, Key: r.Key}
}

func (r *LenderRecord) Authenticate(t Ticket) error {
	return authenticate(t, RoleLender, r.ID, r.Key)
}

// Enter abre un ciclo de lend con el tier calculado a la entrada.
func (r *LenderRecord) Enter(g Grant, tier Tier, now time.Time) error {
	if err := g.require(""); err != nil {
		return fmt.Errorf("lender.Enter: %w", err)
	}
	if r.Open {
		return ErrAlreadyOpen
	}
	markTier(tier, &r.Tier1, &r.Tier2)
	r.Open = true
	r.UpdatedAt = now
	return nil
}

// Exit cierra el ciclo abierto y suma una operación completada.
func (r *LenderRecord) Exit(g Grant, now time.Time) error {
	if err := g.require(""); err != nil {
		return fmt.Errorf("lender.Exit: %w", err)
	}
	if !r.Open {
		return ErrNotOpen
	}
	r.CompletedCount++
	r.Open = false
	r.UpdatedAt = now
	return nil
}

// BorrowerRecord es la posición de un borrower: igual que la de lender más la deuda.
type BorrowerRecord struct {
	ID             string
	PoolID         string
	Key            string
	CompletedCount int
	Owed           decimal.Decimal
	Tier1          bool
	Tier2          bool
	Open           bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewBorrowerRecord(id, poolID, key string, now time.Time) BorrowerRecord {
	return BorrowerRecord{ID: id, PoolID: poolID, Key: key, Owed: decimal.Zero, CreatedAt: now, UpdatedAt: now}
}

func (r *BorrowerRecord) Ticket() Ticket {
	return Ticket{ID: r.ID, Role: RoleBorrower, Key: r.Key}
}

func (r *BorrowerRecord) Authenticate(t Ticket) error {
	return authenticate(t, RoleBorrower, r.ID, r.Key)
}

// Enter abre un préstamo por owed.
func (r *BorrowerRecord) Enter(g Grant, tier Tier, owed decimal.Decimal, now time.Time) error {
	if err := g.require(""); err != nil {
		return fmt.Errorf("borrower.Enter: %w", err)
	}
	if r.Open {
		return ErrAlreadyOpen
	}
	markTier(tier, &r.Tier1, &r.Tier2)
	r.Owed = owed
	r.Open = true
	r.UpdatedAt = now
	return nil
}

// Settle aplica un pago. Devuelve cuánto se imputó a la deuda y si la saldó.
// Un pago ≥ owed cierra la posición; el resto es cambio para el caller.
func (r *BorrowerRecord) Settle(g Grant, returned decimal.Decimal, now time.Time) (applied decimal.Decimal, full bool, err error) {
	if err := g.require(""); err != nil {
		return decimal.Zero, false, fmt.Errorf("borrower.Settle: %w", err)
	}
	if !r.Open {
		return decimal.Zero, false, ErrNotOpen
	}
	r.UpdatedAt = now
	if returned.GreaterThanOrEqual(r.Owed) {
		applied = r.Owed
		r.Owed = decimal.Zero
		r.Open = false
		r.CompletedCount++
		return applied, true, nil
	}
	r.Owed = r.Owed.Sub(returned)
	return returned, false, nil
}
