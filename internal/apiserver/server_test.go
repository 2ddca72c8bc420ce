package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbook-engine/service/internal/config"
	"github.com/orderbook-engine/service/internal/orderbook"
	"github.com/orderbook-engine/service/internal/sik"
	"github.com/orderbook-engine/service/pkg/observability"
)

func testRegistry(t *testing.T) *orderbook.Registry {
	t.Helper()

	cfg := orderbook.DefaultOrderBookConfig()
	tick, err := sik.PriceToInt(0.01, sik.PriceScale)
	require.NoError(t, err)
	cfg.TickSize = sik.ScaledPrice(tick)

	registry := orderbook.NewRegistry(cfg)
	book := registry.GetOrCreate("BTCUSDT")
	require.NoError(t, book.UpdateDepth(orderbook.DepthUpdate{
		Symbol: "BTCUSDT",
		Bids:   [][2]string{{"50000.00", "1.0"}, {"49999.99", "2.0"}},
		Asks:   [][2]string{{"50000.01", "1.5"}},
	}))
	return registry
}

func testServer(t *testing.T, opts Options) *Server {
	t.Helper()
	logger := observability.NewLogger(config.ObservabilityConfig{
		ServiceName: "apiserver-test",
		LogLevel:    "error",
		LogFormat:   "text",
	})
	return NewServer(opts, testRegistry(t), logger, nil)
}

func doGet(t *testing.T, s *Server, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBBOEndpoint(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})

	rec := doGet(t, s, "/v1/books/BTCUSDT/bbo", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol   string   `json:"symbol"`
		BestBid  float64  `json:"bestBid"`
		BestAsk  *float64 `json:"bestAsk"`
		Spread   float64  `json:"spread"`
		MidPrice float64  `json:"midPrice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTCUSDT", resp.Symbol)
	assert.InDelta(t, 50000.00, resp.BestBid, 1e-8)
	require.NotNil(t, resp.BestAsk)
	assert.InDelta(t, 50000.01, *resp.BestAsk, 1e-8)
	assert.InDelta(t, 0.01, resp.Spread, 1e-8)
}

func TestBBOEmptyAskIsNull(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})
	book, err := s.registry.Get("BTCUSDT")
	require.NoError(t, err)
	require.NoError(t, book.UpdateDepth(orderbook.DepthUpdate{
		Asks: [][2]string{{"50000.01", "0"}},
	}))

	rec := doGet(t, s, "/v1/books/BTCUSDT/bbo", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp["bestAsk"])
	assert.InDelta(t, 0.0, resp["spread"].(float64), 1e-9)
}

func TestUnknownSymbolReturns404(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})
	rec := doGet(t, s, "/v1/books/DOGEUSDT/bbo", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepthEndpointLimitsLevels(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})

	rec := doGet(t, s, "/v1/books/BTCUSDT/depth?levels=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Bids []struct {
			Price float64 `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price float64 `json:"price"`
		} `json:"asks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bids, 1)
	require.Len(t, resp.Asks, 1)
	assert.InDelta(t, 50000.00, resp.Bids[0].Price, 1e-8)
	assert.InDelta(t, 50000.01, resp.Asks[0].Price, 1e-8)
}

func TestBandEndpoint(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})

	rec := doGet(t, s, "/v1/books/BTCUSDT/band?center=50000.00&ticks=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
		Levels int     `json:"levels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Levels)
	assert.InDelta(t, 3.0, resp.Bid, 1e-8)
	assert.InDelta(t, 1.5, resp.Ask, 1e-8)
}

func TestBandEndpointRejectsBadParams(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})
	rec := doGet(t, s, "/v1/books/BTCUSDT/band?center=abc&ticks=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})

	rec := doGet(t, s, "/v1/books/BTCUSDT/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status      string `json:"status"`
		Initialized bool   `json:"initialized"`
		BookSize    int    `json:"bookSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Initialized)
	assert.Equal(t, 3, resp.BookSize)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	secret := "test-secret"
	s := testServer(t, Options{ServiceName: "test", JWTSecret: secret})

	rec := doGet(t, s, "/v1/books/BTCUSDT/bbo", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	rec = doGet(t, s, "/v1/books/BTCUSDT/bbo", map[string]string{
		"Authorization": "Bearer " + signed,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBooks(t *testing.T) {
	s := testServer(t, Options{ServiceName: "test"})
	rec := doGet(t, s, "/v1/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"BTCUSDT"}, resp.Symbols)
}
