package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUp(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1.001", "1.01"},
		{"1.00", "1.00"},
		{"349.9965", "350.00"},
		{"13.0841", "13.09"},
		{"-1.009", "-1.00"},
	}
	for _, tt := range tests {
		got := RoundUp(d(tt.in), Precision)
		assert.True(t, d(tt.want).Equal(got), "RoundUp(%s) = %s, want %s", tt.in, got, tt.want)
	}
}

func TestLendPayout(t *testing.T) {
	// 300 + 5% = 315
	assert.True(t, d("315").Equal(LendPayout(d("300"), d("5"), d("0"))))
	// 333.33 × 1.05 = 349.9965 → 350.00
	assert.True(t, d("350").Equal(LendPayout(d("333.33"), d("5"), d("0"))))
	// L1: 315 + 300×0.4% = 316.2
	assert.True(t, d("316.2").Equal(LendPayout(d("300"), d("5"), d("0.4"))))
}

func TestSplitYield(t *testing.T) {
	principal, burn := SplitYield(d("315"), d("5"))
	assert.True(t, d("300").Equal(principal), "principal %s", principal)
	assert.True(t, d("15").Equal(burn), "burn %s", burn)

	// 316.2 / 1.054 = 300 exacto con la tarifa L1 unificada.
	principal, burn = SplitYield(d("316.2"), d("5.4"))
	assert.True(t, d("300").Equal(principal), "principal %s", principal)
	assert.True(t, d("16.2").Equal(burn), "burn %s", burn)
}

func TestSplitYield_RoundsPrincipalUp(t *testing.T) {
	// 100 / 1.05 = 95.238… → 95.24
	principal, burn := SplitYield(d("100"), d("5"))
	assert.True(t, d("95.24").Equal(principal))
	assert.True(t, d("4.76").Equal(burn))
}

func TestOwed(t *testing.T) {
	assert.True(t, d("321").Equal(Owed(d("300"), d("7"), d("0"))))
	// L1: 300 × (1 + 0.07 - 0.004) = 319.8
	assert.True(t, d("319.8").Equal(Owed(d("300"), d("7"), d("0.4"))))
}

func TestFeeShare(t *testing.T) {
	assert.True(t, d("21").Equal(FeeShare(d("321"), d("7"))))
	// 7 × 200 / 107 = 13.084… → 13.09
	assert.True(t, d("13.09").Equal(FeeShare(d("200"), d("7"))))
}

func TestPercent(t *testing.T) {
	assert.True(t, d("15").Equal(Percent(d("300"), d("5"))))
	assert.True(t, d("1.2").Equal(Percent(d("300"), d("0.4"))))
	// sin truncar a DivisionPrecision
	assert.True(t, d("0.00000000000000000001").Equal(Percent(d("0.000000000000000001"), d("1"))))
}

func TestCeilDiv(t *testing.T) {
	tests := []struct{ num, den, want string }{
		{"31500", "105", "300"},
		{"100", "3", "33.34"},
		{"-100", "3", "-33.33"},
		{"100", "-3", "-33.33"},
		{"10500.000000000000001", "105", "100.01"},
	}
	for _, tt := range tests {
		got := CeilDiv(d(tt.num), d(tt.den), Precision)
		assert.True(t, d(tt.want).Equal(got), "CeilDiv(%s, %s) = %s, want %s", tt.num, tt.den, got, tt.want)
	}
}

func TestSplitYield_NoIntermediateRounding(t *testing.T) {
	// 105.00000000000000001 × 100 / 105 = 100.0000000000000000095...
	principal, burn := SplitYield(d("105.00000000000000001"), d("5"))
	assert.True(t, d("100.01").Equal(principal), "principal %s", principal)
	assert.True(t, d("4.99000000000000001").Equal(burn), "burn %s", burn)
}

func TestFeeShare_NoIntermediateRounding(t *testing.T) {
	// 7 × 107.00000000000000001 / 107 = 7.00000000000000000065...
	assert.True(t, d("7.01").Equal(FeeShare(d("107.00000000000000001"), d("7"))))
	assert.True(t, d("21").Equal(FeeShare(d("321"), d("7"))))
}
