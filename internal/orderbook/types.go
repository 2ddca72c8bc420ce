package orderbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/orderbook-engine/service/internal/sik"
)

// Side identifies which half of a level Set targets.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PassiveLevel is the record stored at each price: the passive bid and
// ask quantity resting there, plus diagnostic deltas a host may want to
// report but that the core itself never reads back.
type PassiveLevel struct {
	Price     sik.ScaledPrice
	Bid       sik.ScaledQuantity
	Ask       sik.ScaledQuantity
	Timestamp time.Time

	// Diagnostic deltas, nil when not reported by the update that last
	// touched this level.
	ConsumedBid *sik.ScaledQuantity
	ConsumedAsk *sik.ScaledQuantity
	AddedBid    *sik.ScaledQuantity
	AddedAsk    *sik.ScaledQuantity
}

// DepthUpdate is an ingest message: an absolute (not delta) statement of
// the passive volume resting at each listed price.
type DepthUpdate struct {
	Symbol        string
	FirstUpdateID uint64
	FinalUpdateID uint64
	Bids          [][2]string
	Asks          [][2]string
}

// newCorrelationID returns a fresh per-call identifier UpdateDepth
// attaches to its log lines and error messages so a rejected update can
// be traced across log streams.
func newCorrelationID() uuid.UUID {
	return uuid.New()
}

// BandSum is the result of SumBand: aggregate volume across all levels
// within an inclusive price band.
type BandSum struct {
	Bid    sik.ScaledQuantity
	Ask    sik.ScaledQuantity
	Levels int
}

// DepthMetrics summarizes the whole book in one linear pass.
type DepthMetrics struct {
	TotalLevels    int
	BidLevels      int
	AskLevels      int
	TotalBidVolume sik.ScaledQuantity
	TotalAskVolume sik.ScaledQuantity
	Imbalance      float64
}

// HealthDetails is the nested diagnostic payload of OrderBookHealth.
type HealthDetails struct {
	BidLevels      int
	AskLevels      int
	TotalBidVolume sik.ScaledQuantity
	TotalAskVolume sik.ScaledQuantity
	StaleLevels    int
	MemoryUsageMB  float64
}

// OrderBookHealth is the result of GetHealth.
type OrderBookHealth struct {
	Status             string
	Initialized        bool
	LastUpdateMs       int64
	CircuitBreakerOpen bool
	ErrorRate          uint64
	BookSize           int
	Spread             sik.ScaledPrice
	MidPrice           sik.ScaledPrice
	Details            HealthDetails
}
