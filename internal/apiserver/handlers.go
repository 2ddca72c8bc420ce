package apiserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orderbook-engine/service/internal/orderbook"
	"github.com/orderbook-engine/service/internal/sik"
)

// Response shapes. Quantitative fields cross the boundary as float64 per
// the query-result convention; an absent best ask is conveyed as JSON
// null rather than +Inf, which JSON cannot encode.

type bboResponse struct {
	Symbol   string   `json:"symbol"`
	BestBid  float64  `json:"bestBid"`
	BestAsk  *float64 `json:"bestAsk"`
	Spread   float64  `json:"spread"`
	MidPrice float64  `json:"midPrice"`
}

type levelResponse struct {
	Price       float64  `json:"price"`
	Bid         float64  `json:"bid"`
	Ask         float64  `json:"ask"`
	Timestamp   int64    `json:"timestamp"`
	ConsumedBid *float64 `json:"consumedBid,omitempty"`
	ConsumedAsk *float64 `json:"consumedAsk,omitempty"`
	AddedBid    *float64 `json:"addedBid,omitempty"`
	AddedAsk    *float64 `json:"addedAsk,omitempty"`
}

type depthResponse struct {
	Symbol string          `json:"symbol"`
	Bids   []levelResponse `json:"bids"`
	Asks   []levelResponse `json:"asks"`
}

type bandResponse struct {
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Levels int     `json:"levels"`
}

type depthMetricsResponse struct {
	TotalLevels    int     `json:"totalLevels"`
	BidLevels      int     `json:"bidLevels"`
	AskLevels      int     `json:"askLevels"`
	TotalBidVolume float64 `json:"totalBidVolume"`
	TotalAskVolume float64 `json:"totalAskVolume"`
	Imbalance      float64 `json:"imbalance"`
}

type healthDetailsResponse struct {
	BidLevels      int     `json:"bidLevels"`
	AskLevels      int     `json:"askLevels"`
	TotalBidVolume float64 `json:"totalBidVolume"`
	TotalAskVolume float64 `json:"totalAskVolume"`
	StaleLevels    int     `json:"staleLevels"`
	MemoryUsageMB  float64 `json:"memoryUsageMB"`
}

type healthResponse struct {
	Status             string                `json:"status"`
	Initialized        bool                  `json:"initialized"`
	LastUpdateMs       int64                 `json:"lastUpdateMs"`
	CircuitBreakerOpen bool                  `json:"circuitBreakerOpen"`
	ErrorRate          uint64                `json:"errorRate"`
	BookSize           int                   `json:"bookSize"`
	Spread             float64               `json:"spread"`
	MidPrice           float64               `json:"midPrice"`
	Details            healthDetailsResponse `json:"details"`
}

func (s *Server) book(c *gin.Context) (*orderbook.OrderBook, bool) {
	symbol := c.Param("symbol")
	book, err := s.registry.Get(symbol)
	if err != nil {
		if errors.Is(err, orderbook.ErrUnknownSymbol) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol", "symbol": symbol})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return book, true
}

func (s *Server) handleListBooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.registry.Symbols()})
}

func (s *Server) handleBBO(c *gin.Context) {
	book, ok := s.book(c)
	if !ok {
		return
	}

	bid, ask := book.GetBestBidAsk()
	resp := bboResponse{
		Symbol:   c.Param("symbol"),
		BestBid:  sik.IntToPrice(uint64(bid), sik.PriceScale),
		Spread:   sik.IntToPrice(uint64(book.GetSpread()), sik.PriceScale),
		MidPrice: sik.IntToPrice(uint64(book.GetMidPrice()), sik.PriceScale),
	}
	if uint64(ask) != math.MaxUint64 {
		v := sik.IntToPrice(uint64(ask), sik.PriceScale)
		resp.BestAsk = &v
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDepth(c *gin.Context) {
	book, ok := s.book(c)
	if !ok {
		return
	}

	levels := 20
	if raw := c.Query("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "levels must be a positive integer"})
			return
		}
		levels = n
	}
	if max := book.Config().MaxLevels; levels > max {
		levels = max
	}

	bids, asks := book.TopLevels(levels)
	c.JSON(http.StatusOK, depthResponse{
		Symbol: c.Param("symbol"),
		Bids:   toLevelResponses(bids),
		Asks:   toLevelResponses(asks),
	})
}

func (s *Server) handleLevel(c *gin.Context) {
	book, ok := s.book(c)
	if !ok {
		return
	}

	priceF, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a decimal number"})
		return
	}
	price, err := sik.PriceToInt(priceF, sik.PriceScale)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level, found := book.GetLevel(sik.ScaledPrice(price))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no level at price", "price": priceF})
		return
	}
	c.JSON(http.StatusOK, toLevelResponse(level))
}

func (s *Server) handleBand(c *gin.Context) {
	book, ok := s.book(c)
	if !ok {
		return
	}

	centerF, err := strconv.ParseFloat(c.Query("center"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "center must be a decimal number"})
		return
	}
	ticks, err := strconv.ParseUint(c.Query("ticks"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticks must be a non-negative integer"})
		return
	}
	center, err := sik.PriceToInt(centerF, sik.PriceScale)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sum := book.SumBand(sik.ScaledPrice(center), ticks, book.Config().TickSize)
	c.JSON(http.StatusOK, bandResponse{
		Bid:    sik.IntToQuantity(uint64(sum.Bid), sik.QuantityScale),
		Ask:    sik.IntToQuantity(uint64(sum.Ask), sik.QuantityScale),
		Levels: sum.Levels,
	})
}

func (s *Server) handleDepthMetrics(c *gin.Context) {
	book, ok := s.book(c)
	if !ok {
		return
	}

	m := book.GetDepthMetrics()
	c.JSON(http.StatusOK, depthMetricsResponse{
		TotalLevels:    m.TotalLevels,
		BidLevels:      m.BidLevels,
		AskLevels:      m.AskLevels,
		TotalBidVolume: sik.IntToQuantity(uint64(m.TotalBidVolume), sik.QuantityScale),
		TotalAskVolume: sik.IntToQuantity(uint64(m.TotalAskVolume), sik.QuantityScale),
		Imbalance:      m.Imbalance,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	book, ok := s.book(c)
	if !ok {
		return
	}

	h := book.GetHealth()
	status := http.StatusOK
	if h.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, healthResponse{
		Status:             h.Status,
		Initialized:        h.Initialized,
		LastUpdateMs:       h.LastUpdateMs,
		CircuitBreakerOpen: h.CircuitBreakerOpen,
		ErrorRate:          h.ErrorRate,
		BookSize:           h.BookSize,
		Spread:             sik.IntToPrice(uint64(h.Spread), sik.PriceScale),
		MidPrice:           sik.IntToPrice(uint64(h.MidPrice), sik.PriceScale),
		Details: healthDetailsResponse{
			BidLevels:      h.Details.BidLevels,
			AskLevels:      h.Details.AskLevels,
			TotalBidVolume: sik.IntToQuantity(uint64(h.Details.TotalBidVolume), sik.QuantityScale),
			TotalAskVolume: sik.IntToQuantity(uint64(h.Details.TotalAskVolume), sik.QuantityScale),
			StaleLevels:    h.Details.StaleLevels,
			MemoryUsageMB:  h.Details.MemoryUsageMB,
		},
	})
}

func toLevelResponse(lvl orderbook.PassiveLevel) levelResponse {
	resp := levelResponse{
		Price:     sik.IntToPrice(uint64(lvl.Price), sik.PriceScale),
		Bid:       sik.IntToQuantity(uint64(lvl.Bid), sik.QuantityScale),
		Ask:       sik.IntToQuantity(uint64(lvl.Ask), sik.QuantityScale),
		Timestamp: lvl.Timestamp.UnixMilli(),
	}
	resp.ConsumedBid = quantityPtr(lvl.ConsumedBid)
	resp.ConsumedAsk = quantityPtr(lvl.ConsumedAsk)
	resp.AddedBid = quantityPtr(lvl.AddedBid)
	resp.AddedAsk = quantityPtr(lvl.AddedAsk)
	return resp
}

func toLevelResponses(levels []orderbook.PassiveLevel) []levelResponse {
	out := make([]levelResponse, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, toLevelResponse(lvl))
	}
	return out
}

func quantityPtr(q *sik.ScaledQuantity) *float64 {
	if q == nil {
		return nil
	}
	v := sik.IntToQuantity(uint64(*q), sik.QuantityScale)
	return &v
}
