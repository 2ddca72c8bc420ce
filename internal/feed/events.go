package feed

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/orderbook-engine/service/internal/orderbook"
)

// depthEvent mirrors the exchange's combined-stream depth payload,
// field for field.
type depthEvent struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID uint64     `json:"U"`
	FinalUpdateID uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// combinedStreamEnvelope wraps events multiplexed over one connection,
// Binance's "combined streams" format.
type combinedStreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// toDepthUpdate converts the wire event into the orderbook package's
// update type, pairing each [price, quantity] pair down to the [2]string
// the core expects.
func (e depthEvent) toDepthUpdate() orderbook.DepthUpdate {
	return orderbook.DepthUpdate{
		Symbol:        e.Symbol,
		FirstUpdateID: e.FirstUpdateID,
		FinalUpdateID: e.FinalUpdateID,
		Bids:          pairUp(e.Bids),
		Asks:          pairUp(e.Asks),
	}
}

// pairUp converts each [price, quantity] wire row into a [2]string
// pair, dropping malformed rows before they ever reach the book. The
// well-formedness check uses decimal.NewFromString so exotic-but-legal
// wire strings survive; the book's own fixed-point parser takes over
// from there.
func pairUp(rows [][]string) [][2]string {
	out := make([][2]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if _, err := decimal.NewFromString(row[0]); err != nil {
			continue
		}
		if _, err := decimal.NewFromString(row[1]); err != nil {
			continue
		}
		out = append(out, [2]string{row[0], row[1]})
	}
	return out
}
