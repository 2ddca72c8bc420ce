package orderbook

import (
	"time"

	"github.com/orderbook-engine/service/internal/sik"
)

// OrderBookConfig is the mandatory-plus-defaulted configuration a book
// is constructed with.
type OrderBookConfig struct {
	PricePrecision   uint
	TickSize         sik.ScaledPrice
	MaxLevels        int
	MaxPriceDistance float64
	PruneInterval    time.Duration
	MaxErrorRate     uint64
	StaleThreshold   time.Duration
}

// DefaultOrderBookConfig returns the standard defaults, with TickSize
// left for the caller to fill in (it and PricePrecision are the two
// parameters New requires explicitly).
func DefaultOrderBookConfig() OrderBookConfig {
	return OrderBookConfig{
		PricePrecision:   8,
		MaxLevels:        1000,
		MaxPriceDistance: 0.1,
		PruneInterval:    30 * time.Second,
		MaxErrorRate:     10,
		StaleThreshold:   300 * time.Second,
	}
}
