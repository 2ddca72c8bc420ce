// Package config loads this service's configuration from environment
// variables, with an optional YAML override file layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the order book service.
type Config struct {
	Server        ServerConfig
	OrderBook     OrderBookConfig
	Feed          FeedConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Security      SecurityConfig
	JWT           JWTConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	OpsPort      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// OrderBookConfig mirrors internal/orderbook.OrderBookConfig's fields in
// their wire-friendly (env/YAML) form; internal/orderbook.DefaultOrderBookConfig
// supplies the same numbers as compiled-in defaults, this struct lets an
// operator override them without a rebuild.
type OrderBookConfig struct {
	PricePrecision   uint
	TickSize         float64
	MaxLevels        int
	MaxPriceDistance float64
	PruneInterval    time.Duration
	MaxErrorRate     uint64
	StaleThreshold   time.Duration
}

// FeedConfig configures the exchange depth WebSocket feed.
type FeedConfig struct {
	WSBaseURL           string
	Testnet             bool
	Symbols             []string
	HandshakeTimeout    time.Duration
	ReadTimeout         time.Duration
	PingInterval        time.Duration
	ReconnectRate       time.Duration
	ReconnectBurst      int
	CircuitOpenDuration time.Duration
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	TracingEnabled bool
	ServiceName    string
	LogLevel       string
	LogFormat      string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type SecurityConfig struct {
	CORSAllowedOrigins []string
}

// JWTConfig backs internal/apiserver's optional bearer-auth middleware.
// Auth is off entirely when Secret is empty.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// Load reads environment variables into a Config with defaults, then
// applies a YAML override file if CONFIG_FILE (or the conventional
// ./config.yaml) exists. Environment variables set the baseline; the
// config file layers on top.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			OpsPort:      getEnv("OPS_PORT", "8081"),
			ReadTimeout:  getDurationEnv("READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		},
		OrderBook: OrderBookConfig{
			PricePrecision:   uint(getIntEnv("ORDERBOOK_PRICE_PRECISION", 8)),
			TickSize:         getFloatEnv("ORDERBOOK_TICK_SIZE", 0.01),
			MaxLevels:        getIntEnv("ORDERBOOK_MAX_LEVELS", 1000),
			MaxPriceDistance: getFloatEnv("ORDERBOOK_MAX_PRICE_DISTANCE", 0.1),
			PruneInterval:    getDurationEnv("ORDERBOOK_PRUNE_INTERVAL", 30*time.Second),
			MaxErrorRate:     uint64(getIntEnv("ORDERBOOK_MAX_ERROR_RATE", 10)),
			StaleThreshold:   getDurationEnv("ORDERBOOK_STALE_THRESHOLD", 300*time.Second),
		},
		Feed: FeedConfig{
			WSBaseURL:           getEnv("FEED_WS_BASE_URL", ""),
			Testnet:             getBoolEnv("FEED_TESTNET", false),
			Symbols:             getSliceEnv("FEED_SYMBOLS", []string{"BTCUSDT"}),
			HandshakeTimeout:    getDurationEnv("FEED_HANDSHAKE_TIMEOUT", 10*time.Second),
			ReadTimeout:         getDurationEnv("FEED_READ_TIMEOUT", 60*time.Second),
			PingInterval:        getDurationEnv("FEED_PING_INTERVAL", 30*time.Second),
			ReconnectRate:       getDurationEnv("FEED_RECONNECT_RATE", time.Second),
			ReconnectBurst:      getIntEnv("FEED_RECONNECT_BURST", 3),
			CircuitOpenDuration: getDurationEnv("FEED_CIRCUIT_OPEN_DURATION", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			TracingEnabled: getBoolEnv("TRACING_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "orderbook-service"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_REQUESTS_PER_MINUTE", 600),
			Burst:             getIntEnv("RATE_LIMIT_BURST", 50),
		},
		Security: SecurityConfig{
			CORSAllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		},
	}

	if path := getEnv("CONFIG_FILE", "config.yaml"); path != "" {
		if err := applyYAMLOverride(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyYAMLOverride layers a YAML file's fields onto cfg. A missing
// file is not an error; the environment-derived defaults stand as-is.
func applyYAMLOverride(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("at least one feed symbol is required")
	}
	if c.OrderBook.TickSize <= 0 {
		return fmt.Errorf("orderbook tick size must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
