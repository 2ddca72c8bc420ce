// Package feed adapts an exchange depth WebSocket feed into calls on an
// orderbook.Registry. The Reader is a pure producer: it decodes wire
// events, applies them, and never inspects book state beyond what its
// metrics and circuit supervision need.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/orderbook-engine/service/internal/orderbook"
	"github.com/orderbook-engine/service/pkg/observability"
)

// Reader owns one combined-stream WebSocket connection covering every
// configured symbol's depth stream and applies decoded updates to a
// Registry.
type Reader struct {
	logger   *observability.Logger
	config   Config
	registry *orderbook.Registry
	limiter  *rate.Limiter
	metrics  *observability.MetricsProvider

	connected atomic.Bool

	mu        sync.Mutex
	conn      *websocket.Conn
	running   bool
	stop      chan struct{}
	done      chan struct{}
	errStreak map[string]uint64
}

// NewReader constructs a Reader that will populate registry on Start.
func NewReader(logger *observability.Logger, config Config, registry *orderbook.Registry) *Reader {
	return &Reader{
		logger:    logger,
		config:    config,
		registry:  registry,
		limiter:   rate.NewLimiter(rate.Every(config.ReconnectRate), config.ReconnectBurst),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		errStreak: make(map[string]uint64),
	}
}

// SetMetrics attaches a metrics provider the Reader reports depth-update
// outcomes and book gauges through. Optional.
func (r *Reader) SetMetrics(metrics *observability.MetricsProvider) {
	r.metrics = metrics
}

// Connected reports whether the Reader currently holds a live feed
// connection, for the ops server's readiness probe.
func (r *Reader) Connected() bool {
	return r.connected.Load()
}

func (r *Reader) streamNames() []string {
	names := make([]string, 0, len(r.config.Symbols))
	for _, s := range r.config.Symbols {
		names = append(names, strings.ToLower(s)+"@depth@100ms")
	}
	return names
}

func (r *Reader) streamURL() string {
	streams := r.streamNames()
	if len(streams) == 1 {
		return fmt.Sprintf("%s/ws/%s", r.config.baseURL(), streams[0])
	}
	streamParam := url.QueryEscape(strings.Join(streams, "/"))
	return fmt.Sprintf("%s/stream?streams=%s", r.config.baseURL(), streamParam)
}

// Start dials the feed and processes messages until ctx is canceled or
// Stop is called, reconnecting (throttled by the configured token
// bucket) on any read error. It blocks until the read loop exits.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("feed reader already running")
	}
	r.running = true
	r.mu.Unlock()

	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		default:
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := r.runOnce(ctx); err != nil {
			r.logger.Error(ctx, "feed connection ended, reconnecting", err, map[string]interface{}{
				"url": r.streamURL(),
			})
			continue
		}
		return nil
	}
}

// runOnce dials the feed and reads until the connection errs, ctx is
// canceled, or Stop is called. A nil error return means the caller asked
// for a clean shutdown, not that the connection is still healthy.
func (r *Reader) runOnce(ctx context.Context) error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = r.config.HandshakeTimeout

	conn, _, err := dialer.DialContext(ctx, r.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	r.connected.Store(true)
	defer r.connected.Store(false)

	conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout))
		return nil
	})

	pingDone := make(chan struct{})
	go r.pingLoop(conn, pingDone)
	defer close(pingDone)

	r.logger.Info(ctx, "feed connected", map[string]interface{}{"url": r.streamURL()})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		default:
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		r.handleMessage(ctx, message)
	}
}

func (r *Reader) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(r.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (r *Reader) handleMessage(ctx context.Context, message []byte) {
	var envelope combinedStreamEnvelope
	if err := json.Unmarshal(message, &envelope); err == nil && envelope.Stream != "" {
		r.handleDepthPayload(ctx, envelope.Data)
		return
	}
	r.handleDepthPayload(ctx, message)
}

func (r *Reader) handleDepthPayload(ctx context.Context, data []byte) {
	var event depthEvent
	if err := json.Unmarshal(data, &event); err != nil {
		r.logger.Warn(ctx, "failed to decode depth event", map[string]interface{}{"error": err.Error()})
		return
	}
	if event.Symbol == "" {
		return
	}

	book := r.registry.GetOrCreate(event.Symbol)

	start := time.Now()
	err := book.UpdateDepth(event.toDepthUpdate())
	if r.metrics != nil {
		r.metrics.RecordDepthUpdate(ctx, event.Symbol, err == nil, time.Since(start))
		r.metrics.UpdateBookLevels(ctx, event.Symbol, book.Size())
		r.metrics.UpdateCircuitBreakerState(ctx, event.Symbol, book.CircuitBreakerOpen())
	}
	if err != nil {
		book.RecordError()
		r.superviseCircuit(ctx, event.Symbol, book)
		r.logger.Warn(ctx, "failed to apply depth update", map[string]interface{}{
			"symbol": event.Symbol,
			"error":  err.Error(),
		})
		return
	}

	r.mu.Lock()
	r.errStreak[event.Symbol] = 0
	r.mu.Unlock()
}

// superviseCircuit is the external half of the book's circuit-breaker
// contract: the Reader counts consecutive rejected updates per symbol and
// opens the breaker once the streak reaches the book's error-rate
// threshold. The core auto-closes it at the deadline.
func (r *Reader) superviseCircuit(ctx context.Context, symbol string, book *orderbook.OrderBook) {
	r.mu.Lock()
	r.errStreak[symbol]++
	streak := r.errStreak[symbol]
	r.mu.Unlock()

	if streak < book.Config().MaxErrorRate {
		return
	}

	until := time.Now().Add(r.config.CircuitOpenDuration)
	book.OpenCircuit(until)
	r.mu.Lock()
	r.errStreak[symbol] = 0
	r.mu.Unlock()

	r.logger.Warn(ctx, "opened circuit breaker after error streak", map[string]interface{}{
		"symbol": symbol,
		"streak": streak,
		"until":  until.Format(time.RFC3339),
	})
}

// Stop signals the read loop to exit and waits for it to finish.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	<-r.done
}
