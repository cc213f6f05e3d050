package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Asset identifica el recurso que contiene una reserva o un bucket.
type Asset string

const (
	AssetBase  Asset = "BASE" // activo subyacente: depósitos y préstamos
	AssetYield Asset = "LND"  // unidades sintéticas de rendimiento
)

// Bucket es un contenedor transitorio de un activo que entra o sale del pool.
type Bucket struct {
	Asset  Asset
	Amount decimal.Decimal
}

// NewBucket crea un bucket con el importe dado.
func NewBucket(asset Asset, amount decimal.Decimal) Bucket {
	return Bucket{Asset: asset, Amount: amount}
}

// IsEmpty reports whether the bucket holds nothing.
func (b Bucket) IsEmpty() bool { return !b.Amount.IsPositive() }

// Expect valida activo e importe positivo antes de aceptar el bucket.
func (b Bucket) Expect(asset Asset) error {
	if b.Asset != asset {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongAsset, b.Asset, asset)
	}
	if !b.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b.Amount)
	}
	return nil
}

// Reserve es una bóveda de un único activo, propiedad exclusiva del pool.
// minter es la authority que puede mint/burn; vacío = reserva sin supply propio.
type Reserve struct {
	asset  Asset
	amount decimal.Decimal
	minter string
}

// NewReserve crea (o rehidrata desde storage) una reserva.
func NewReserve(asset Asset, amount decimal.Decimal, minter string) Reserve {
	return Reserve{asset: asset, amount: amount, minter: minter}
}

func (r *Reserve) Asset() Asset { return r.asset }

func (r *Reserve) Amount() decimal.Decimal { return r.amount }

// Put deposita el bucket completo en la reserva.
func (r *Reserve) Put(b Bucket) error {
	if b.Asset != r.asset {
		return fmt.Errorf("reserve.Put: %w: got %s, want %s", ErrWrongAsset, b.Asset, r.asset)
	}
	if b.Amount.IsNegative() {
		return fmt.Errorf("reserve.Put: %w: %s", ErrInvalidAmount, b.Amount)
	}
	r.amount = r.amount.Add(b.Amount)
	return nil
}

// Take retira amount de la reserva en un bucket nuevo.
func (r *Reserve) Take(amount decimal.Decimal) (Bucket, error) {
	if amount.IsNegative() {
		return Bucket{}, fmt.Errorf("reserve.Take: %w: %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(r.amount) {
		return Bucket{}, fmt.Errorf("reserve.Take: %w: want %s %s, have %s",
			ErrInsufficientReserve, amount, r.asset, r.amount)
	}
	r.amount = r.amount.Sub(amount)
	return NewBucket(r.asset, amount), nil
}

// Mint creates new units directly into the reserve. Requires a live grant
// from the reserve's minter.
func (r *Reserve) Mint(g Grant, amount decimal.Decimal) error {
	if r.minter == "" {
		return fmt.Errorf("reserve.Mint: %s is not mintable: %w", r.asset, ErrUnauthorized)
	}
	if err := g.require(r.minter); err != nil {
		return fmt.Errorf("reserve.Mint: %w", err)
	}
	if amount.IsNegative() {
		return fmt.Errorf("reserve.Mint: %w: %s", ErrInvalidAmount, amount)
	}
	r.amount = r.amount.Add(amount)
	return nil
}

// Burn withdraws and destroys amount units. Requires a live grant from the
// reserve's minter.
func (r *Reserve) Burn(g Grant, amount decimal.Decimal) error {
	if r.minter == "" {
		return fmt.Errorf("reserve.Burn: %s is not burnable: %w", r.asset, ErrUnauthorized)
	}
	if err := g.require(r.minter); err != nil {
		return fmt.Errorf("reserve.Burn: %w", err)
	}
	if _, err := r.Take(amount); err != nil {
		return fmt.Errorf("reserve.Burn: %w", err)
	}
	return nil
}
