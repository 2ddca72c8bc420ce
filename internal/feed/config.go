package feed

import "time"

// Config configures a Reader's exchange WebSocket connection.
type Config struct {
	// WSBaseURL is the combined-stream WebSocket endpoint, e.g.
	// "wss://stream.binance.com:9443". Empty selects the production
	// default; Testnet selects the testnet default instead.
	WSBaseURL string
	Testnet   bool

	// Symbols is the set of depth streams to subscribe to, e.g.
	// []string{"BTCUSDT", "ETHUSDT"}.
	Symbols []string

	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// ReadTimeout bounds silence on an established connection before it
	// is considered dead and a reconnect is attempted.
	ReadTimeout time.Duration
	// PingInterval is how often the Reader pings the server to keep the
	// connection alive and detect half-open sockets early.
	PingInterval time.Duration

	// ReconnectRate and ReconnectBurst configure the token bucket that
	// throttles reconnect attempts.
	ReconnectRate  time.Duration
	ReconnectBurst int

	// CircuitOpenDuration is how long the Reader suppresses a book's
	// ingest after a sustained streak of rejected updates.
	CircuitOpenDuration time.Duration
}

// DefaultConfig returns sane defaults for a production stream.
func DefaultConfig(symbols []string) Config {
	return Config{
		Symbols:             symbols,
		HandshakeTimeout:    10 * time.Second,
		ReadTimeout:         60 * time.Second,
		PingInterval:        30 * time.Second,
		ReconnectRate:       time.Second,
		ReconnectBurst:      3,
		CircuitOpenDuration: 30 * time.Second,
	}
}

func (c Config) baseURL() string {
	if c.WSBaseURL != "" {
		return c.WSBaseURL
	}
	if c.Testnet {
		return "wss://testnet.binance.vision"
	}
	return "wss://stream.binance.com:9443"
}
