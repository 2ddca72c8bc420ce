package sik

import (
	"fmt"
	"sort"
)

// Zone helpers group prices into fixed-size buckets for band-oriented
// analytics: a zone is a half-open price bucket aligned to a multiple of
// the zone size.

// CalculateZone returns the floor of price's zone when zones are
// zoneTicks wide at pricePrecision decimal places: the largest multiple
// of zoneTicks*10^pricePrecision not exceeding price.
func CalculateZone(price, zoneTicks uint64, pricePrecision uint) (uint64, error) {
	if zoneTicks == 0 {
		return 0, fmt.Errorf("%w: zero zone ticks", ErrInvalidValue)
	}
	zoneSize, err := SafeMul(zoneTicks, Multiplier(pricePrecision))
	if err != nil {
		return 0, err
	}
	return (price / zoneSize) * zoneSize, nil
}

// PriceToZone maps a price onto the zone grid by nearest-tick
// normalization.
func PriceToZone(price, tickSize uint64) (uint64, error) {
	return NormalizePriceToTick(price, tickSize)
}

// IsPriceInZone reports whether price lies in [zoneMin, zoneMax].
func IsPriceInZone(price, zoneMin, zoneMax uint64) bool {
	return price >= zoneMin && price <= zoneMax
}

// ZoneBoundaries returns the [start, end) bucket containing price for
// the given zone size.
func ZoneBoundaries(price, zoneSize uint64) (start, end uint64, err error) {
	if zoneSize == 0 {
		return 0, 0, fmt.Errorf("%w: zero zone size", ErrInvalidValue)
	}
	start = (price / zoneSize) * zoneSize
	end, err = SafeAdd(start, zoneSize)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// SupportResistance extracts up to n support/resistance levels from a
// price series: the local minima and maxima, deduplicated and returned
// in ascending order.
func SupportResistance(prices []uint64, n int) ([]uint64, error) {
	if len(prices) == 0 || n == 0 {
		return nil, fmt.Errorf("%w: empty price series or zero level count", ErrInvalidValue)
	}

	var levels []uint64
	for i := 1; i < len(prices)-1; i++ {
		prev, curr, next := prices[i-1], prices[i], prices[i+1]
		if curr > prev && curr > next {
			levels = append(levels, curr) // local maximum (resistance)
		} else if curr < prev && curr < next {
			levels = append(levels, curr) // local minimum (support)
		}
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	deduped := levels[:0]
	var last uint64
	for i, v := range levels {
		if i == 0 || v != last {
			deduped = append(deduped, v)
		}
		last = v
	}

	if len(deduped) > n {
		deduped = deduped[:n]
	}
	return deduped, nil
}
