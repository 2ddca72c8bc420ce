// Package apiserver exposes the order book registry over HTTP: BBO,
// depth, band-sum, depth-metrics, and health queries per symbol, plus
// the Prometheus scrape endpoint. Handlers only translate between wire
// values and the core's scaled integers; no book invariant lives here.
package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/orderbook-engine/service/internal/orderbook"
	"github.com/orderbook-engine/service/pkg/observability"
)

// Options configures the query API surface.
type Options struct {
	ServiceName        string
	CORSAllowedOrigins []string
	// JWTSecret enables bearer-token auth on the /v1 routes when
	// non-empty. An empty secret leaves the API open.
	JWTSecret string
	// RequestsPerMinute and Burst bound the request rate across all
	// clients. A RequestsPerMinute of zero or less disables rate
	// limiting; a Burst of zero or less falls back to RequestsPerMinute.
	RequestsPerMinute int
	Burst             int
}

// Server routes HTTP queries to the order book registry.
type Server struct {
	engine   *gin.Engine
	registry *orderbook.Registry
	logger   *observability.Logger
	opts     Options
}

// NewServer builds the router. metrics may be nil in tests; the /metrics
// route is then not registered.
func NewServer(opts Options, registry *orderbook.Registry, logger *observability.Logger, metrics *observability.MetricsProvider) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	om := observability.NewObservabilityMiddleware(metrics, logger, observability.MiddlewareConfig{
		ServiceName: opts.ServiceName,
	})
	engine.Use(om.GinMiddleware())

	if opts.RequestsPerMinute > 0 {
		engine.Use(rateLimitMiddleware(opts.RequestsPerMinute, opts.Burst))
	}

	s := &Server{
		engine:   engine,
		registry: registry,
		logger:   logger,
		opts:     opts,
	}

	v1 := engine.Group("/v1")
	if opts.JWTSecret != "" {
		v1.Use(requireAuth(opts.JWTSecret))
	}
	v1.GET("/books", s.handleListBooks)
	books := v1.Group("/books/:symbol")
	books.GET("/bbo", s.handleBBO)
	books.GET("/depth", s.handleDepth)
	books.GET("/level", s.handleLevel)
	books.GET("/band", s.handleBand)
	books.GET("/metrics", s.handleDepthMetrics)
	books.GET("/health", s.handleHealth)

	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return s
}

// Handler returns the server's root http.Handler with CORS applied, for
// mounting in an http.Server.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})
	return c.Handler(s.engine)
}

// rateLimitMiddleware applies a shared token bucket across all clients.
func rateLimitMiddleware(requestsPerMinute, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
