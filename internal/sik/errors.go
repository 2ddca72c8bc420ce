// Package sik implements the scaled-integer financial arithmetic kernel:
// conversions between floating-point wire values and scaled unsigned
// integers, checked arithmetic, tick-size normalization, and rounding.
package sik

import "errors"

// Error kinds returned by this package. Callers should compare with
// errors.Is, since operations wrap these with additional context.
var (
	ErrOverflow       = errors.New("sik: overflow")
	ErrDivisionByZero = errors.New("sik: division by zero")
	ErrInvalidScale   = errors.New("sik: invalid scale")
	ErrNegativeValue  = errors.New("sik: negative value")
	ErrInvalidValue   = errors.New("sik: invalid value")
)
