package sik

import (
	"fmt"
	"math"
)

// ValidatePrice rejects prices that cannot enter the book: non-finite or
// non-positive values.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidValue, price)
	}
	return nil
}

// ValidateQuantity rejects quantities that cannot enter the book:
// non-finite or non-positive values. A zero quantity is a deletion
// marker at the book layer, not a valid standalone quantity.
func ValidateQuantity(quantity float64) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return fmt.Errorf("%w: quantity %v", ErrInvalidValue, quantity)
	}
	return nil
}

// ValidateScale rejects a zero scale, which would collapse every value
// to its integer part.
func ValidateScale(scale uint) error {
	if scale == 0 {
		return fmt.Errorf("%w: scale must be positive", ErrInvalidScale)
	}
	return nil
}

// ValidateTickSize rejects tick sizes that cannot form a price grid.
func ValidateTickSize(tickSize float64) error {
	if math.IsNaN(tickSize) || math.IsInf(tickSize, 0) || tickSize <= 0 {
		return fmt.Errorf("%w: tick size %v", ErrInvalidValue, tickSize)
	}
	return nil
}
