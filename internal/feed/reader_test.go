package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbook-engine/service/internal/config"
	"github.com/orderbook-engine/service/internal/orderbook"
	"github.com/orderbook-engine/service/pkg/observability"
)

var testUpgrader = websocket.Upgrader{}

func TestReaderStreamURLSingleSymbol(t *testing.T) {
	r := NewReader(nil, Config{Symbols: []string{"BTCUSDT"}}, nil)
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@depth@100ms", r.streamURL())
}

func TestReaderStreamURLMultipleSymbols(t *testing.T) {
	r := NewReader(nil, Config{Symbols: []string{"BTCUSDT", "ETHUSDT"}}, nil)
	assert.Contains(t, r.streamURL(), "/stream?streams=")
	assert.Contains(t, r.streamURL(), "btcusdt%40depth%40100ms")
}

func TestReaderAppliesDepthEventFromServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := testUpgrader.Upgrade(w, req, nil)
		require.NoError(t, err)
		defer conn.Close()

		msg := []byte(`{"e":"depthUpdate","s":"BTCUSDT","U":1,"u":2,"b":[["50000.0","1.0"]],"a":[["50001.0","1.0"]]}`)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	registry := orderbook.NewRegistry(orderbook.DefaultOrderBookConfig())
	cfg := DefaultConfig([]string{"BTCUSDT"})
	cfg.WSBaseURL = wsURL
	logger := observability.NewLogger(config.ObservabilityConfig{ServiceName: "feed-test", LogLevel: "error", LogFormat: "text"})
	reader := NewReader(logger, cfg, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go reader.Start(ctx)
	defer reader.Stop()

	require.Eventually(t, func() bool {
		book, err := registry.Get("BTCUSDT")
		return err == nil && book.Size() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSuperviseCircuitOpensAfterErrorStreak(t *testing.T) {
	cfg := orderbook.DefaultOrderBookConfig()
	cfg.MaxErrorRate = 3
	book := orderbook.NewWithConfig(cfg)

	logger := observability.NewLogger(config.ObservabilityConfig{ServiceName: "feed-test", LogLevel: "error", LogFormat: "text"})
	readerCfg := DefaultConfig([]string{"BTCUSDT"})
	reader := NewReader(logger, readerCfg, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		reader.superviseCircuit(ctx, "BTCUSDT", book)
		assert.False(t, book.CircuitBreakerOpen())
	}
	reader.superviseCircuit(ctx, "BTCUSDT", book)
	assert.True(t, book.CircuitBreakerOpen())
}
