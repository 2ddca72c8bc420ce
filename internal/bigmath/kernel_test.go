package bigmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeAdd(t *testing.T) {
	sum, err := SafeAdd("123456789012345678901234567890", "1")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567891", sum)
}

func TestSafeAddRejectsMalformed(t *testing.T) {
	_, err := SafeAdd("12a3", "1")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestSafeSubtractNegativeResult(t *testing.T) {
	_, err := SafeSubtract("1", "2")
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestSafeSubtract(t *testing.T) {
	diff, err := SafeSubtract("100", "40")
	require.NoError(t, err)
	assert.Equal(t, "60", diff)
}

func TestSafeMultiply(t *testing.T) {
	product, err := SafeMultiply("99999999999999999999", "2")
	require.NoError(t, err)
	assert.Equal(t, "199999999999999999998", product)
}

func TestSafeDivideByZero(t *testing.T) {
	_, err := SafeDivide("10", "0")
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestSafeDivideTruncates(t *testing.T) {
	q, err := SafeDivide("10", "3")
	require.NoError(t, err)
	assert.Equal(t, "3", q)
}

func TestAbsoluteDifference(t *testing.T) {
	d, err := AbsoluteDifference("5", "9")
	require.NoError(t, err)
	assert.Equal(t, "4", d)

	d, err = AbsoluteDifference("9", "5")
	require.NoError(t, err)
	assert.Equal(t, "4", d)
}

func TestCompare(t *testing.T) {
	c, err := Compare("5", "9")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare("9", "9")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare("10", "9")
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero("0"))
	assert.True(t, IsZero(""))
	assert.False(t, IsZero("1"))
}

func TestSafeConvertToBigFitsNative(t *testing.T) {
	fits, normalized, err := SafeConvertToBig("18446744073709551615") // math.MaxUint64
	require.NoError(t, err)
	assert.True(t, fits)
	assert.Equal(t, "18446744073709551615", normalized)
}

func TestSafeConvertToBigRequiresBig(t *testing.T) {
	fits, normalized, err := SafeConvertToBig("18446744073709551616") // MaxUint64 + 1
	require.NoError(t, err)
	assert.False(t, fits)
	assert.Equal(t, "18446744073709551616", normalized)
}

func TestSafeConvertToBigStripsLeadingZeros(t *testing.T) {
	_, normalized, err := SafeConvertToBig("007")
	require.NoError(t, err)
	assert.Equal(t, "7", normalized)
}

func TestParseRejectsNonDigit(t *testing.T) {
	_, _, err := SafeConvertToBig("-5")
	assert.ErrorIs(t, err, ErrInvalidValue)
}
