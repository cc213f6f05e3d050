package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrConfiguration       = errors.New("invalid pool configuration")
	ErrAlreadyOpen         = errors.New("position already open")
	ErrNotOpen             = errors.New("no open position")
	ErrRatioOutOfBounds    = errors.New("amount outside allowed ratio")
	ErrPoolUnhealthy       = errors.New("pool below its low limit")
	ErrInsufficientReserve = errors.New("insufficient reserve")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrWrongAsset          = errors.New("wrong asset")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRecordNotFound      = errors.New("record not found")
	ErrPoolNotFound        = errors.New("pool not found")
	ErrWrongRole           = errors.New("ticket role does not match operation")
)

// RatioBound indica qué límite del Ratio Guard se violó.
type RatioBound string

const (
	BelowMinimum RatioBound = "below_minimum"
	AboveMaximum RatioBound = "above_maximum"
)

// RatioError describe un rechazo del Ratio Guard. Incluye los importes absolutos
// mínimo y máximo aceptables para el tamaño actual de la reserva.
type RatioError struct {
	Bound     RatioBound
	Ratio     decimal.Decimal
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

func (e *RatioError) Error() string {
	return fmt.Sprintf("%s: ratio %s is %s (accepted amounts: %s < x < %s)",
		ErrRatioOutOfBounds, e.Ratio.StringFixed(2), e.Bound,
		e.MinAmount.StringFixed(2), e.MaxAmount.StringFixed(2))
}

func (e *RatioError) Unwrap() error { return ErrRatioOutOfBounds }

// Outcome maps an operation error to a short label for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyOpen):
		return "already_open"
	case errors.Is(err, ErrNotOpen):
		return "not_open"
	case errors.Is(err, ErrRatioOutOfBounds):
		return "ratio_out_of_bounds"
	case errors.Is(err, ErrPoolUnhealthy):
		return "pool_unhealthy"
	case errors.Is(err, ErrInsufficientReserve):
		return "insufficient_reserve"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_input"
	case errors.Is(err, ErrWrongAsset):
		return "wrong_asset"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrWrongRole):
		return "wrong_role"
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrPoolNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
