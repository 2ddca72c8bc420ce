package bigmath

import (
	"fmt"
	"math/big"
	"regexp"
)

// digitsOnly matches the decimal-literal grammar this package accepts: one
// or more ASCII digits, no sign, no exponent, no fractional component.
// safe_convert_to_big / the arithmetic entrypoints operate on already-scaled
// integer strings (the wire price/quantity strings are converted to scaled
// integers by sik before anything reaches this package).
var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

func parse(s string) (*big.Int, error) {
	if s == "" || !digitsOnly.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a non-negative decimal integer", ErrInvalidValue, s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q could not be parsed", ErrInvalidValue, s)
	}
	return v, nil
}

// SafeAdd returns a+b as a decimal string.
func SafeAdd(a, b string) (string, error) {
	x, err := parse(a)
	if err != nil {
		return "", err
	}
	y, err := parse(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(x, y).String(), nil
}

// SafeSubtract returns a-b as a decimal string. Fails with ErrNegativeValue
// when a < b, since this package represents only non-negative values.
func SafeSubtract(a, b string) (string, error) {
	x, err := parse(a)
	if err != nil {
		return "", err
	}
	y, err := parse(b)
	if err != nil {
		return "", err
	}
	if x.Cmp(y) < 0 {
		return "", fmt.Errorf("%w: %s - %s", ErrNegativeValue, a, b)
	}
	return new(big.Int).Sub(x, y).String(), nil
}

// SafeMultiply returns a*b as a decimal string.
func SafeMultiply(a, b string) (string, error) {
	x, err := parse(a)
	if err != nil {
		return "", err
	}
	y, err := parse(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Mul(x, y).String(), nil
}

// SafeDivide returns the truncated integer quotient a/b as a decimal string.
// Fails with ErrDivisionByZero when b is "0".
func SafeDivide(a, b string) (string, error) {
	x, err := parse(a)
	if err != nil {
		return "", err
	}
	y, err := parse(b)
	if err != nil {
		return "", err
	}
	if y.Sign() == 0 {
		return "", fmt.Errorf("%w: %s / %s", ErrDivisionByZero, a, b)
	}
	return new(big.Int).Quo(x, y).String(), nil
}

// AbsoluteDifference returns |a-b| as a decimal string.
func AbsoluteDifference(a, b string) (string, error) {
	x, err := parse(a)
	if err != nil {
		return "", err
	}
	y, err := parse(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Abs(new(big.Int).Sub(x, y)).String(), nil
}

// Compare returns -1, 0, or 1 according to whether a is less than, equal
// to, or greater than b.
func Compare(a, b string) (int, error) {
	x, err := parse(a)
	if err != nil {
		return 0, err
	}
	y, err := parse(b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}

// IsZero reports whether s denotes zero. An empty string counts as zero:
// an absent value and a zero value are interchangeable at this boundary.
func IsZero(s string) bool {
	if s == "" || s == "0" {
		return true
	}
	v, err := parse(s)
	if err != nil {
		return false
	}
	return v.Sign() == 0
}

// SafeConvertToBig classifies a decimal string as "fits native" (parses
// into the uint64 range sik's scaled integers use) or "requires big", and
// returns the canonicalized digit string (leading zeros stripped) either
// way.
func SafeConvertToBig(s string) (fitsNative bool, normalized string, err error) {
	v, err := parse(s)
	if err != nil {
		return false, "", err
	}
	return v.IsUint64(), v.String(), nil
}
