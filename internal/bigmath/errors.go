// Package bigmath implements string-encoded arbitrary-precision integer
// arithmetic for scaled values that exceed sik's native uint64 capacity,
// backed by math/big.Int.
package bigmath

import "errors"

// Error kinds mirror the names in sik's taxonomy. They are separate
// values, so errors.Is matches only against this package's sentinels.
var (
	ErrInvalidValue   = errors.New("bigmath: invalid value")
	ErrNegativeValue  = errors.New("bigmath: negative value")
	ErrDivisionByZero = errors.New("bigmath: division by zero")
)
