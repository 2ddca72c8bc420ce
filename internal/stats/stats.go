// Package stats computes descriptive statistics over sequences of
// scaled integers produced by the sik package: mean, variance, standard
// deviation (via integer square root), percentile, and median.
package stats

import (
	"fmt"
	"sort"

	"github.com/orderbook-engine/service/internal/sik"
)

// Mean returns sum(values)/len(values). Fails with ErrInvalidValue on
// an empty input.
func Mean(values []uint64) (uint64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: empty input", sik.ErrInvalidValue)
	}
	var sum uint64
	for _, v := range values {
		var err error
		sum, err = sik.SafeAdd(sum, v)
		if err != nil {
			return 0, err
		}
	}
	return sum / uint64(len(values)), nil
}

// Min returns the smallest element. Fails with ErrInvalidValue on an
// empty input.
func Min(values []uint64) (uint64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: empty input", sik.ErrInvalidValue)
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m, nil
}

// Max returns the largest element. Fails with ErrInvalidValue on an
// empty input.
func Max(values []uint64) (uint64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: empty input", sik.ErrInvalidValue)
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m, nil
}

func absDiff(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return b - a
}

// Variance returns the sample variance (n-1 denominator) of values
// around the supplied mean. Requires at least two values.
func Variance(values []uint64, mean uint64) (uint64, error) {
	if len(values) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 values", sik.ErrInvalidValue)
	}
	var sumSquares uint64
	for _, v := range values {
		d := absDiff(v, mean)
		sq, err := sik.SafeMul(d, d)
		if err != nil {
			return 0, err
		}
		sumSquares, err = sik.SafeAdd(sumSquares, sq)
		if err != nil {
			return 0, err
		}
	}
	return sumSquares / uint64(len(values)-1), nil
}

// integerSqrt computes floor(sqrt(n)) via Newton's method, seeded at
// n/2 and iterating until the approximation stops decreasing.
func integerSqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + n/x) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// StdDev returns the integer square root of the sample variance.
// Requires at least two values.
func StdDev(values []uint64) (uint64, error) {
	mean, err := Mean(values)
	if err != nil {
		return 0, err
	}
	variance, err := Variance(values, mean)
	if err != nil {
		return 0, err
	}
	return integerSqrt(variance), nil
}

// Percentile returns the p-th percentile (p in [0,100]) of values
// using linear interpolation between the two bracketing order
// statistics. Fails with ErrInvalidValue on an empty input or p
// outside [0,100].
func Percentile(values []uint64, p float64) (uint64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: empty input", sik.ErrInvalidValue)
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("%w: percentile %v out of range", sik.ErrInvalidValue, p)
	}
	if len(values) == 1 {
		return values[0], nil
	}

	sorted := make([]uint64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p == 0 {
		return sorted[0], nil
	}
	if p == 100 {
		return sorted[len(sorted)-1], nil
	}

	pos := p * float64(len(sorted)-1) / 100
	lo := int(pos)
	hi := lo + 1
	frac := pos - float64(lo)
	if hi >= len(sorted) {
		return sorted[lo], nil
	}
	low, high := sorted[lo], sorted[hi]
	if high >= low {
		return low + uint64(float64(high-low)*frac), nil
	}
	return low - uint64(float64(low-high)*frac), nil
}

// Median is Percentile(values, 50).
func Median(values []uint64) (uint64, error) {
	return Percentile(values, 50)
}
