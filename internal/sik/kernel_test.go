package sik

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToInt(t *testing.T) {
	v, err := PriceToInt(123.456789, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345678900), v)
}

func TestPriceToIntRejectsNonFinite(t *testing.T) {
	_, err := PriceToInt(math.NaN(), 8)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = PriceToInt(math.Inf(1), 8)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestPriceToIntRejectsNegative(t *testing.T) {
	_, err := PriceToInt(-1.0, 8)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestIntToPriceRoundTrip(t *testing.T) {
	v, err := PriceToInt(50000.0, 8)
	require.NoError(t, err)
	assert.InDelta(t, 50000.0, IntToPrice(v, 8), 1e-8)
}

func TestSafeFloatToFixedRejectsNegative(t *testing.T) {
	_, err := SafeFloatToFixed(-0.1, 8)
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestSafeFloatToFixedRejectsSubScaleValue(t *testing.T) {
	_, err := SafeFloatToFixed(1e-20, 8)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestSafeAddOverflow(t *testing.T) {
	_, err := SafeAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSafeAddCommutative(t *testing.T) {
	a, err1 := SafeAdd(100, 250)
	b, err2 := SafeAdd(250, 100)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, a, b)
}

func TestSafeSubUnderflow(t *testing.T) {
	_, err := SafeSub(1, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSafeMulOverflow(t *testing.T) {
	_, err := SafeMul(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSafeDivideByZero(t *testing.T) {
	_, err := SafeDivide(10, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestCalculateMidPrice(t *testing.T) {
	bid, _ := PriceToInt(50000.0, 8)
	ask, _ := PriceToInt(50001.0, 8)
	mid := CalculateMidPrice(bid, ask)
	assert.InDelta(t, 50000.5, IntToPrice(mid, 8), 1e-8)
}

func TestCalculateSpreadSaturates(t *testing.T) {
	assert.Equal(t, uint64(0), CalculateSpread(100, 200))
}

func TestNormalizePriceToTickBankersRounding(t *testing.T) {
	price, _ := PriceToInt(100.005, 8)
	tick, _ := PriceToInt(0.01, 8)
	normalized, err := NormalizePriceToTick(price, tick)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000_000), normalized) // ties to even: 100.00

	price2, _ := PriceToInt(100.015, 8)
	normalized2, err := NormalizePriceToTick(price2, tick)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_002_000_000), normalized2) // ties to even: 100.02
}

func TestNormalizePriceToTickIsIdempotent(t *testing.T) {
	price, _ := PriceToInt(123.4567, 4)
	tick, _ := PriceToInt(0.01, 4)
	once, err := NormalizePriceToTick(price, tick)
	require.NoError(t, err)
	twice, err := NormalizePriceToTick(once, tick)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizePriceToTickZeroTick(t *testing.T) {
	_, err := NormalizePriceToTick(100, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestFinancialRound(t *testing.T) {
	assert.Equal(t, uint64(123_4600_0000), FinancialRound(123_4567_8901, 8, 2))
	assert.Equal(t, uint64(123_4568_0000), FinancialRound(123_4567_8901, 8, 4))
}

func TestCalculatePercentageChange(t *testing.T) {
	pc, err := CalculatePercentageChange(100, 110)
	require.NoError(t, err)
	assert.False(t, pc.Negative)
	assert.Equal(t, uint64(1000), pc.Magnitude) // 10% at 4-decimal scale

	pc2, err := CalculatePercentageChange(110, 100)
	require.NoError(t, err)
	assert.True(t, pc2.Negative)
}

func TestCalculatePercentageChangeDivisionByZero(t *testing.T) {
	_, err := CalculatePercentageChange(0, 100)
	assert.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestBasisPointConversions(t *testing.T) {
	assert.Equal(t, uint64(10), ToBasisPoints(1000))
	assert.Equal(t, uint64(1000), FromBasisPoints(10))
}
