package orderbook

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/orderbook-engine/service/internal/sik"
	"github.com/orderbook-engine/service/pkg/observability"
)

// OrderBook is the ordered price->level map for a single symbol. It is
// safe for concurrent use: writers take the exclusive lock, readers take
// the shared lock. Lock granularity is the whole book.
type OrderBook struct {
	mu     sync.RWMutex
	levels *treemap.Map // uint64 (scaled price) -> *PassiveLevel

	config OrderBookConfig
	logger *observability.Logger // nil-safe: every call site guards with logIfPresent

	lastUpdate       time.Time
	errorCount       uint64 // atomic
	circuitOpen      bool
	circuitOpenUntil *time.Time
}

// SetLogger attaches a logger the book uses for circuit-breaker
// transitions and ingest diagnostics. Optional; a book with no logger
// attached simply stays quiet.
func (ob *OrderBook) SetLogger(logger *observability.Logger) {
	ob.logger = logger
}

func (ob *OrderBook) logInfo(msg string, fields map[string]interface{}) {
	if ob.logger != nil {
		ob.logger.Info(context.Background(), msg, fields)
	}
}

func (ob *OrderBook) logWarn(msg string, fields map[string]interface{}) {
	if ob.logger != nil {
		ob.logger.Warn(context.Background(), msg, fields)
	}
}

// New constructs an empty book. tickSize must be > 0; it is converted to
// a sik.ScaledPrice at the book's price scale.
func New(pricePrecision uint, tickSize float64) (*OrderBook, error) {
	if err := sik.ValidateTickSize(tickSize); err != nil {
		return nil, err
	}
	tick, err := sik.PriceToInt(tickSize, sik.PriceScale)
	if err != nil {
		return nil, fmt.Errorf("invalid tick size: %w", err)
	}

	cfg := DefaultOrderBookConfig()
	cfg.PricePrecision = pricePrecision
	cfg.TickSize = sik.ScaledPrice(tick)

	return NewWithConfig(cfg), nil
}

// NewWithConfig constructs an empty book with a fully specified
// configuration, bypassing the defaults New applies.
func NewWithConfig(cfg OrderBookConfig) *OrderBook {
	return &OrderBook{
		levels:     treemap.NewWith(utils.UInt64Comparator),
		config:     cfg,
		lastUpdate: time.Now(),
	}
}

func (ob *OrderBook) tick() uint64 {
	return uint64(ob.config.TickSize)
}

func (ob *OrderBook) normalize(price sik.ScaledPrice) sik.ScaledPrice {
	normalized, err := sik.NormalizePriceToTick(uint64(price), ob.tick())
	if err != nil {
		// ob.tick() is validated positive at construction time; a zero
		// tick can only reach here via NewWithConfig misuse.
		return price
	}
	return sik.ScaledPrice(normalized)
}

func parseToken(label, s string, scale uint) (uint64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", label, s, err)
	}
	v, err := sik.SafeFloatToFixed(f, scale)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", label, s, err)
	}
	return v, nil
}

// UpdateDepth applies a depth update. It is atomic with respect to other
// operations on this book: the caller-visible effect is either "fully
// applied up to the first bad token" or "silently dropped by the circuit
// breaker", never a torn read of a partially-applied update.
//
// A parse failure aborts the call and reports the offending token; levels
// applied by earlier tokens in the same call are retained. There is no
// rollback.
func (ob *OrderBook) UpdateDepth(update DepthUpdate) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	now := time.Now()
	correlationID := newCorrelationID()

	if ob.circuitOpen {
		if ob.circuitOpenUntil != nil && now.Before(*ob.circuitOpenUntil) {
			return nil
		}
		ob.circuitOpen = false
		ob.circuitOpenUntil = nil
		ob.logInfo("circuit breaker auto-closed", map[string]interface{}{
			"symbol":         update.Symbol,
			"correlation_id": correlationID.String(),
		})
	}

	for _, pair := range update.Bids {
		price, err := parseToken("price", pair[0], sik.PriceScale)
		if err != nil {
			ob.logWarn("depth update rejected", map[string]interface{}{
				"symbol": update.Symbol, "side": "bid", "correlation_id": correlationID.String(), "error": err.Error(),
			})
			return fmt.Errorf("correlation %s: %w", correlationID, err)
		}
		qty, err := parseToken("quantity", pair[1], sik.QuantityScale)
		if err != nil {
			ob.logWarn("depth update rejected", map[string]interface{}{
				"symbol": update.Symbol, "side": "bid", "correlation_id": correlationID.String(), "error": err.Error(),
			})
			return fmt.Errorf("correlation %s: %w", correlationID, err)
		}
		ob.updateLevel(sik.ScaledPrice(price), sik.ScaledQuantity(qty), 0, now)
	}

	for _, pair := range update.Asks {
		price, err := parseToken("price", pair[0], sik.PriceScale)
		if err != nil {
			ob.logWarn("depth update rejected", map[string]interface{}{
				"symbol": update.Symbol, "side": "ask", "correlation_id": correlationID.String(), "error": err.Error(),
			})
			return fmt.Errorf("correlation %s: %w", correlationID, err)
		}
		qty, err := parseToken("quantity", pair[1], sik.QuantityScale)
		if err != nil {
			ob.logWarn("depth update rejected", map[string]interface{}{
				"symbol": update.Symbol, "side": "ask", "correlation_id": correlationID.String(), "error": err.Error(),
			})
			return fmt.Errorf("correlation %s: %w", correlationID, err)
		}
		ob.updateLevel(sik.ScaledPrice(price), 0, sik.ScaledQuantity(qty), now)
	}

	ob.lastUpdate = now
	return nil
}

// updateLevel normalizes price to the tick grid and writes the absolute
// post-state (bidQty, askQty) at that price, removing the level if both
// are zero. Caller must hold the write lock.
func (ob *OrderBook) updateLevel(price sik.ScaledPrice, bidQty, askQty sik.ScaledQuantity, t time.Time) {
	key := uint64(ob.normalize(price))

	if bidQty == 0 && askQty == 0 {
		ob.levels.Remove(key)
		return
	}

	level := &PassiveLevel{
		Price:     sik.ScaledPrice(key),
		Bid:       bidQty,
		Ask:       askQty,
		Timestamp: t,
	}
	if bidQty != 0 {
		v := bidQty
		level.AddedBid = &v
	}
	if askQty != 0 {
		v := askQty
		level.AddedAsk = &v
	}
	ob.levels.Put(key, level)
}

// Insert applies the whole-level merge rule used by hosts that push an
// entire PassiveLevel rather than a bid/ask pair: a positive Bid forces
// the stored Ask to zero and vice versa. If both sides of the incoming
// level are positive, the ask branch applies last and wins; callers
// should not submit both sides at once.
func (ob *OrderBook) Insert(level PassiveLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	key := uint64(ob.normalize(level.Price))
	now := time.Now()

	existing, found := ob.levels.Get(key)
	var stored *PassiveLevel
	if found {
		stored = existing.(*PassiveLevel)
	} else {
		stored = &PassiveLevel{Price: sik.ScaledPrice(key)}
	}

	if level.Bid > 0 {
		stored.Bid = level.Bid
		stored.Ask = 0
		stored.AddedAsk = quantityRef(0)
		v := level.Bid
		stored.AddedBid = &v
	}
	if level.Ask > 0 {
		stored.Ask = level.Ask
		stored.Bid = 0
		stored.AddedBid = quantityRef(0)
		v := level.Ask
		stored.AddedAsk = &v
	}
	stored.Timestamp = now

	if stored.Bid == 0 && stored.Ask == 0 {
		ob.levels.Remove(key)
		return
	}
	ob.levels.Put(key, stored)
}

// Set writes quantity into the named side of the level at price, zeroing
// the other side when quantity > 0. Creates the level if absent. Added
// deltas are always recorded for both sides: the written side carries
// the written quantity (zero included), a cleared side carries an
// explicit zero, and a freshly created level starts with zero consumed
// and added deltas on the untouched side.
func (ob *OrderBook) Set(price sik.ScaledPrice, side Side, quantity sik.ScaledQuantity) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	key := uint64(ob.normalize(price))
	now := time.Now()

	existing, found := ob.levels.Get(key)
	var level *PassiveLevel
	if found {
		level = existing.(*PassiveLevel)
	} else {
		level = &PassiveLevel{
			Price:       sik.ScaledPrice(key),
			ConsumedBid: quantityRef(0),
			ConsumedAsk: quantityRef(0),
			AddedBid:    quantityRef(0),
			AddedAsk:    quantityRef(0),
		}
	}

	switch side {
	case SideBid:
		level.Bid = quantity
		level.AddedBid = quantityRef(quantity)
		if quantity > 0 {
			level.Ask = 0
			level.AddedAsk = quantityRef(0)
		}
	case SideAsk:
		level.Ask = quantity
		level.AddedAsk = quantityRef(quantity)
		if quantity > 0 {
			level.Bid = 0
			level.AddedBid = quantityRef(0)
		}
	}
	level.Timestamp = now

	if level.Bid == 0 && level.Ask == 0 {
		ob.levels.Remove(key)
		return
	}
	ob.levels.Put(key, level)
}

func quantityRef(q sik.ScaledQuantity) *sik.ScaledQuantity {
	return &q
}

// Delete removes the level at the normalized price key. No-op if absent.
func (ob *OrderBook) Delete(price sik.ScaledPrice) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.levels.Remove(uint64(ob.normalize(price)))
}

// GetLevel looks up the level at the normalized price key.
func (ob *OrderBook) GetLevel(price sik.ScaledPrice) (PassiveLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	v, found := ob.levels.Get(uint64(ob.normalize(price)))
	if !found {
		return PassiveLevel{}, false
	}
	return *v.(*PassiveLevel), true
}

// GetBestBid returns the price of the highest-keyed level with Bid > 0,
// or 0 if none exists.
func (ob *OrderBook) GetBestBid() sik.ScaledPrice {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	bid, _ := ob.bestBidAskLocked()
	return bid
}

// GetBestAsk returns the price of the lowest-keyed level with Ask > 0, or
// math.MaxUint64 (the scaled stand-in for +Inf) if none exists.
func (ob *OrderBook) GetBestAsk() sik.ScaledPrice {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	_, ask := ob.bestBidAskLocked()
	return ask
}

// GetBestBidAsk computes both in one fused pass: a descending scan to
// the first Bid > 0, an ascending scan to the first Ask > 0.
func (ob *OrderBook) GetBestBidAsk() (bid, ask sik.ScaledPrice) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestBidAskLocked()
}

func (ob *OrderBook) bestBidAskLocked() (bid, ask sik.ScaledPrice) {
	ask = sik.ScaledPrice(math.MaxUint64)

	it := ob.levels.Iterator()
	for it.End(); it.Prev(); {
		lvl := it.Value().(*PassiveLevel)
		if lvl.Bid > 0 {
			bid = sik.ScaledPrice(it.Key().(uint64))
			break
		}
	}

	it = ob.levels.Iterator()
	for it.Next() {
		lvl := it.Value().(*PassiveLevel)
		if lvl.Ask > 0 {
			ask = sik.ScaledPrice(it.Key().(uint64))
			break
		}
	}
	return bid, ask
}

// GetSpread returns CalculateSpread(ask, bid), or 0 when either side of
// the book is empty.
func (ob *OrderBook) GetSpread() sik.ScaledPrice {
	bid, ask := ob.GetBestBidAsk()
	if bid == 0 || uint64(ask) == math.MaxUint64 {
		return 0
	}
	return sik.ScaledPrice(sik.CalculateSpread(uint64(ask), uint64(bid)))
}

// GetMidPrice returns CalculateMidPrice(bid, ask), or 0 when either side
// of the book is empty.
func (ob *OrderBook) GetMidPrice() sik.ScaledPrice {
	bid, ask := ob.GetBestBidAsk()
	if bid == 0 || uint64(ask) == math.MaxUint64 {
		return 0
	}
	return sik.ScaledPrice(sik.CalculateMidPrice(uint64(bid), uint64(ask)))
}

// SumBand aggregates bid and ask volume across every level within
// [center-bandSize, center+bandSize] inclusive, where bandSize =
// tickSize * bandTicks.
//
// The treemap iterator has no seek-to-key entry point, so this scans
// ascending from the tree's minimum and filters to the band, so its cost
// grows with the number of levels below the band. The book does not cap
// its level count.
func (ob *OrderBook) SumBand(center sik.ScaledPrice, bandTicks uint64, tickSize sik.ScaledPrice) BandSum {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bandSize := uint64(tickSize) * bandTicks
	var lo uint64
	if uint64(center) > bandSize {
		lo = uint64(center) - bandSize
	}
	hi := uint64(center) + bandSize

	var result BandSum
	it := ob.levels.Iterator()
	for it.Next() {
		key := it.Key().(uint64)
		if key < lo {
			continue
		}
		if key > hi {
			break
		}
		lvl := it.Value().(*PassiveLevel)
		result.Bid += lvl.Bid
		result.Ask += lvl.Ask
		result.Levels++
	}
	return result
}

// GetDepthMetrics makes a single linear pass over every level.
func (ob *OrderBook) GetDepthMetrics() DepthMetrics {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.depthMetricsLocked()
}

func (ob *OrderBook) depthMetricsLocked() DepthMetrics {
	var m DepthMetrics
	m.TotalLevels = ob.levels.Size()

	it := ob.levels.Iterator()
	for it.Next() {
		lvl := it.Value().(*PassiveLevel)
		if lvl.Bid > 0 {
			m.BidLevels++
			m.TotalBidVolume += lvl.Bid
		}
		if lvl.Ask > 0 {
			m.AskLevels++
			m.TotalAskVolume += lvl.Ask
		}
	}

	total := m.TotalBidVolume + m.TotalAskVolume
	if total != 0 {
		m.Imbalance = (float64(m.TotalBidVolume) - float64(m.TotalAskVolume)) / float64(total)
	}
	return m
}

// TopLevels returns up to n bid levels (descending from the best bid)
// and up to n ask levels (ascending from the best ask), for depth
// snapshot queries. Levels whose relevant side is zero are skipped.
func (ob *OrderBook) TopLevels(n int) (bids, asks []PassiveLevel) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	it := ob.levels.Iterator()
	for it.End(); it.Prev() && len(bids) < n; {
		lvl := it.Value().(*PassiveLevel)
		if lvl.Bid > 0 {
			bids = append(bids, *lvl)
		}
	}

	it = ob.levels.Iterator()
	for it.Next() {
		if len(asks) >= n {
			break
		}
		lvl := it.Value().(*PassiveLevel)
		if lvl.Ask > 0 {
			asks = append(asks, *lvl)
		}
	}
	return bids, asks
}

// Config returns the book's configuration.
func (ob *OrderBook) Config() OrderBookConfig {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.config
}

// ErrorCount returns the rejected-update counter the external supervisor
// reads when deciding whether to open the circuit breaker.
func (ob *OrderBook) ErrorCount() uint64 {
	return atomic.LoadUint64(&ob.errorCount)
}

// CircuitBreakerOpen reports whether ingest is currently suppressed.
func (ob *OrderBook) CircuitBreakerOpen() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.circuitOpen
}

// Size returns the map cardinality.
func (ob *OrderBook) Size() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.levels.Size()
}

// Clear drops all entries.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.levels.Clear()
}

// OpenCircuit suppresses ingest until the given deadline. Opening is the
// external supervisor's half of the circuit-breaker contract; the book
// only implements the silent drop and the time-based auto-close.
func (ob *OrderBook) OpenCircuit(until time.Time) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.circuitOpen = true
	ob.circuitOpenUntil = &until
	ob.logWarn("circuit breaker opened", map[string]interface{}{"until": until.Format(time.RFC3339)})
}

// RecordError increments the error counter the external supervisor uses
// to judge when to open the circuit breaker.
func (ob *OrderBook) RecordError() {
	atomic.AddUint64(&ob.errorCount, 1)
}

// GetHealth derives a point-in-time health report.
func (ob *OrderBook) GetHealth() OrderBookHealth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	now := time.Now()
	lastUpdateAgeMs := now.Sub(ob.lastUpdate).Milliseconds()
	metrics := ob.depthMetricsLocked()

	staleLevels := 0
	it := ob.levels.Iterator()
	for it.Next() {
		lvl := it.Value().(*PassiveLevel)
		if now.Sub(lvl.Timestamp) > ob.config.StaleThreshold {
			staleLevels++
		}
	}

	errorCount := atomic.LoadUint64(&ob.errorCount)
	n := ob.levels.Size()

	var status string
	switch {
	case ob.circuitOpen || lastUpdateAgeMs > 10_000:
		status = "unhealthy"
	case errorCount > ob.config.MaxErrorRate/2 || lastUpdateAgeMs > 5_000 || (n > 0 && staleLevels > n/10):
		status = "degraded"
	default:
		status = "healthy"
	}

	bid, ask := ob.bestBidAskLocked()
	var spread, mid sik.ScaledPrice
	if bid != 0 && uint64(ask) != math.MaxUint64 {
		spread = sik.ScaledPrice(sik.CalculateSpread(uint64(ask), uint64(bid)))
		mid = sik.ScaledPrice(sik.CalculateMidPrice(uint64(bid), uint64(ask)))
	}

	return OrderBookHealth{
		Status:             status,
		Initialized:        n > 0,
		LastUpdateMs:       lastUpdateAgeMs,
		CircuitBreakerOpen: ob.circuitOpen,
		ErrorRate:          errorCount,
		BookSize:           n,
		Spread:             spread,
		MidPrice:           mid,
		Details: HealthDetails{
			BidLevels:      metrics.BidLevels,
			AskLevels:      metrics.AskLevels,
			TotalBidVolume: metrics.TotalBidVolume,
			TotalAskVolume: metrics.TotalAskVolume,
			StaleLevels:    staleLevels,
			MemoryUsageMB:  float64(n*200) / (1024 * 1024),
		},
	}
}
