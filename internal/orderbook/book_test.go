package orderbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbook-engine/service/internal/sik"
)

func TestConstructAndBasicBBO(t *testing.T) {
	book, err := New(8, 0.00000001)
	require.NoError(t, err)

	err = book.UpdateDepth(DepthUpdate{
		Bids: [][2]string{{"50000.0", "1.0"}},
		Asks: [][2]string{{"50001.0", "1.0"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, book.Size())

	bid := book.GetBestBid()
	ask := book.GetBestAsk()
	assert.InDelta(t, 50000.0, sik.IntToPrice(uint64(bid), sik.PriceScale), 1e-8)
	assert.InDelta(t, 50001.0, sik.IntToPrice(uint64(ask), sik.PriceScale), 1e-8)

	spread := book.GetSpread()
	assert.InDelta(t, 1.0, sik.IntToPrice(uint64(spread), sik.PriceScale), 1e-8)

	mid := book.GetMidPrice()
	assert.InDelta(t, 50000.5, sik.IntToPrice(uint64(mid), sik.PriceScale), 1e-8)
}

func TestExclusivityViaSet(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	price, err := sik.PriceToInt(100.0, sik.PriceScale)
	require.NoError(t, err)
	qty10, _ := sik.QuantityToInt(10, sik.QuantityScale)
	qty5, _ := sik.QuantityToInt(5, sik.QuantityScale)

	book.Set(sik.ScaledPrice(price), SideBid, sik.ScaledQuantity(qty10))
	level, found := book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	assert.Equal(t, sik.ScaledQuantity(qty10), level.Bid)
	assert.Equal(t, sik.ScaledQuantity(0), level.Ask)

	book.Set(sik.ScaledPrice(price), SideAsk, sik.ScaledQuantity(qty5))
	level, found = book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	assert.Equal(t, sik.ScaledQuantity(qty5), level.Ask)
	assert.Equal(t, sik.ScaledQuantity(0), level.Bid)
}

func TestSetRecordsAddedDeltasOnBothSides(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	price, err := sik.PriceToInt(100.0, sik.PriceScale)
	require.NoError(t, err)
	qty10, _ := sik.QuantityToInt(10, sik.QuantityScale)

	book.Set(sik.ScaledPrice(price), SideBid, sik.ScaledQuantity(qty10))
	level, found := book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	require.NotNil(t, level.AddedBid)
	assert.Equal(t, sik.ScaledQuantity(qty10), *level.AddedBid)
	require.NotNil(t, level.AddedAsk)
	assert.Equal(t, sik.ScaledQuantity(0), *level.AddedAsk)
	require.NotNil(t, level.ConsumedBid)
	assert.Equal(t, sik.ScaledQuantity(0), *level.ConsumedBid)

	book.Set(sik.ScaledPrice(price), SideAsk, 5)
	level, found = book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	require.NotNil(t, level.AddedAsk)
	assert.Equal(t, sik.ScaledQuantity(5), *level.AddedAsk)
	require.NotNil(t, level.AddedBid)
	assert.Equal(t, sik.ScaledQuantity(0), *level.AddedBid)
}

func TestSetZeroOnOneSidedLevelRecordsZeroDelta(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	price, _ := sik.PriceToInt(100.0, sik.PriceScale)
	book.Set(sik.ScaledPrice(price), SideAsk, 5)
	book.Set(sik.ScaledPrice(price), SideBid, 0)

	level, found := book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	assert.Equal(t, sik.ScaledQuantity(5), level.Ask)
	require.NotNil(t, level.AddedBid)
	assert.Equal(t, sik.ScaledQuantity(0), *level.AddedBid)
}

func TestSumBand(t *testing.T) {
	book, err := New(2, 0.01)
	require.NoError(t, err)

	err = book.UpdateDepth(DepthUpdate{
		Bids: [][2]string{{"99.99", "2"}, {"100.00", "3"}},
		Asks: [][2]string{{"100.01", "4"}, {"100.02", "1"}},
	})
	require.NoError(t, err)

	center, err := sik.PriceToInt(100.00, sik.PriceScale)
	require.NoError(t, err)
	tick, err := sik.PriceToInt(0.01, sik.PriceScale)
	require.NoError(t, err)

	result := book.SumBand(sik.ScaledPrice(center), 1, sik.ScaledPrice(tick))
	assert.Equal(t, 3, result.Levels)

	expectBid, _ := sik.QuantityToInt(5, sik.QuantityScale)
	expectAsk, _ := sik.QuantityToInt(4, sik.QuantityScale)
	assert.Equal(t, sik.ScaledQuantity(expectBid), result.Bid)
	assert.Equal(t, sik.ScaledQuantity(expectAsk), result.Ask)
}

func TestCircuitBreakerSuppression(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)
	book.OpenCircuit(time.Now().Add(time.Second))

	err = book.UpdateDepth(DepthUpdate{
		Bids: [][2]string{{"100.0", "1.0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, book.Size())
}

func TestCircuitBreakerAutoCloses(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)
	book.OpenCircuit(time.Now().Add(-time.Millisecond))

	err = book.UpdateDepth(DepthUpdate{
		Bids: [][2]string{{"100.0", "1.0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, book.Size())

	health := book.GetHealth()
	assert.False(t, health.CircuitBreakerOpen)
}

func TestUpdateBothZeroRemovesLevel(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	require.NoError(t, book.UpdateDepth(DepthUpdate{Bids: [][2]string{{"100.0", "1.0"}}}))
	assert.Equal(t, 1, book.Size())

	require.NoError(t, book.UpdateDepth(DepthUpdate{Bids: [][2]string{{"100.0", "0"}}}))
	assert.Equal(t, 0, book.Size())
}

func TestParseErrorHaltsApplicationButRetainsEarlierTokens(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	err = book.UpdateDepth(DepthUpdate{
		Bids: [][2]string{{"100.0", "1.0"}, {"not-a-price", "1.0"}},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, book.Size())
}

func TestEmptyBookBoundaries(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	assert.Equal(t, sik.ScaledPrice(0), book.GetBestBid())
	assert.Equal(t, sik.ScaledPrice(^uint64(0)), book.GetBestAsk())
	assert.Equal(t, sik.ScaledPrice(0), book.GetSpread())
	assert.Equal(t, sik.ScaledPrice(0), book.GetMidPrice())

	metrics := book.GetDepthMetrics()
	assert.Equal(t, DepthMetrics{}, metrics)
}

func TestInsertMergeRuleBidZeroesAsk(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	price, _ := sik.PriceToInt(100.0, sik.PriceScale)
	askQty, _ := sik.QuantityToInt(5, sik.QuantityScale)
	bidQty, _ := sik.QuantityToInt(3, sik.QuantityScale)

	book.Insert(PassiveLevel{Price: sik.ScaledPrice(price), Ask: sik.ScaledQuantity(askQty)})
	level, found := book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	assert.Equal(t, sik.ScaledQuantity(askQty), level.Ask)

	book.Insert(PassiveLevel{Price: sik.ScaledPrice(price), Bid: sik.ScaledQuantity(bidQty)})
	level, found = book.GetLevel(sik.ScaledPrice(price))
	require.True(t, found)
	assert.Equal(t, sik.ScaledQuantity(bidQty), level.Bid)
	assert.Equal(t, sik.ScaledQuantity(0), level.Ask)
}

func TestGetDepthMetricsImbalance(t *testing.T) {
	book, err := New(8, 0.01)
	require.NoError(t, err)

	require.NoError(t, book.UpdateDepth(DepthUpdate{
		Bids: [][2]string{{"100.0", "6"}},
		Asks: [][2]string{{"100.02", "2"}},
	}))

	metrics := book.GetDepthMetrics()
	assert.Equal(t, 2, metrics.TotalLevels)
	assert.Equal(t, 1, metrics.BidLevels)
	assert.Equal(t, 1, metrics.AskLevels)
	assert.InDelta(t, 0.5, metrics.Imbalance, 1e-9)
}

func TestHealthDegradesOnStaleLevels(t *testing.T) {
	cfg := DefaultOrderBookConfig()
	cfg.PricePrecision = 8
	tick, _ := sik.PriceToInt(0.01, sik.PriceScale)
	cfg.TickSize = sik.ScaledPrice(tick)
	cfg.StaleThreshold = time.Millisecond

	book := NewWithConfig(cfg)
	require.NoError(t, book.UpdateDepth(DepthUpdate{Bids: [][2]string{{"100.0", "1.0"}}}))
	time.Sleep(5 * time.Millisecond)

	health := book.GetHealth()
	assert.Equal(t, 1, health.Details.StaleLevels)
	assert.Equal(t, "degraded", health.Status)
}
