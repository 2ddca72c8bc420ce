// Package orderbook implements the order book engine: an ordered
// price->level map that ingests depth updates, enforces per-price
// bid/ask exclusivity, and answers BBO/spread/mid/band/health queries
// for a single trading symbol.
package orderbook

import "errors"

// ErrUnknownSymbol is returned by Registry.Get when asked to resolve a
// symbol it has never been told to create.
var ErrUnknownSymbol = errors.New("orderbook: unknown symbol")
