package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = Dec

func TestCheckRatio_InsideBand(t *testing.T) {
	// 300 / 5000 = 6% ∈ (5, 20)
	assert.NoError(t, CheckRatio(d("300"), d("5000"), d("5"), d("20")))
}

func TestCheckRatio_BoundsAreStrict(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		bound  RatioBound
	}{
		{"exactly min", "250", BelowMinimum},  // 5%
		{"below min", "100", BelowMinimum},    // 2%
		{"exactly max", "1000", AboveMaximum}, // 20%
		{"above max", "1500", AboveMaximum},   // 30%
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRatio(d(tt.amount), d("5000"), d("5"), d("20"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRatioOutOfBounds)

			var re *RatioError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.bound, re.Bound)
			assert.True(t, d("250").Equal(re.MinAmount), "min amount %s", re.MinAmount)
			assert.True(t, d("1000").Equal(re.MaxAmount), "max amount %s", re.MaxAmount)
		})
	}
}

func TestCheckRatio_JustInsideBounds(t *testing.T) {
	assert.NoError(t, CheckRatio(d("250.01"), d("5000"), d("5"), d("20")))
	assert.NoError(t, CheckRatio(d("999.99"), d("5000"), d("5"), d("20")))
}

func TestCheckRatio_BoundsExactBeyondDivisionPrecision(t *testing.T) {
	// El cociente a 16 decimales redondea a 20 y a 5 exactos; el ratio real está dentro.
	assert.NoError(t, CheckRatio(d("999.99999999999999995"), d("5000"), d("5"), d("20")))
	assert.NoError(t, CheckRatio(d("250.00000000000000001"), d("5000"), d("5"), d("20")))

	err := CheckRatio(d("1000.00000000000000001"), d("5000"), d("5"), d("20"))
	var re *RatioError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, AboveMaximum, re.Bound)
}

func TestCheckRatio_ScalesWithReserve(t *testing.T) {
	// 600 es 12% de 5000 (rechazado en borrow) pero 6% de 10000.
	assert.Error(t, CheckRatio(d("600"), d("5000"), d("3"), d("12")))
	assert.NoError(t, CheckRatio(d("600"), d("10000"), d("3"), d("12")))
}

func TestCheckRatio_EmptyReserve(t *testing.T) {
	err := CheckRatio(d("1"), d("0"), d("5"), d("20"))

	var re *RatioError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, AboveMaximum, re.Bound)
	assert.True(t, re.MaxAmount.IsZero())
}

func TestRatioError_Message(t *testing.T) {
	err := CheckRatio(d("750"), d("5000"), d("3"), d("12"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "15.00")
	assert.Contains(t, err.Error(), "above_maximum")
	assert.Contains(t, err.Error(), "150.00 < x < 600.00")
}

func TestFloor(t *testing.T) {
	assert.True(t, d("750").Equal(Floor(d("1000"), d("75"))))
	assert.True(t, d("500").Equal(Floor(d("1000"), d("50"))))
}
