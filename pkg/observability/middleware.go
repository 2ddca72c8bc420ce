package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityMiddleware provides tracing, metrics, and request logging
// for the query API's HTTP surface.
type ObservabilityMiddleware struct {
	tracer        trace.Tracer
	metrics       *MetricsProvider
	logger        *Logger
	serviceName   string
	slowThreshold time.Duration
}

// MiddlewareConfig contains configuration for observability middleware
type MiddlewareConfig struct {
	ServiceName   string
	SlowThreshold time.Duration
}

// NewObservabilityMiddleware creates a new observability middleware
func NewObservabilityMiddleware(
	metrics *MetricsProvider,
	logger *Logger,
	config MiddlewareConfig,
) *ObservabilityMiddleware {
	tracer := otel.Tracer(config.ServiceName)

	slowThreshold := config.SlowThreshold
	if slowThreshold == 0 {
		slowThreshold = 1 * time.Second
	}

	return &ObservabilityMiddleware{
		tracer:        tracer,
		metrics:       metrics,
		logger:        logger,
		serviceName:   config.ServiceName,
		slowThreshold: slowThreshold,
	}
}

// GinMiddleware returns a Gin middleware for observability
func (om *ObservabilityMiddleware) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Generate request ID
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		// Extract trace context from headers
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		// Start span
		spanName := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		ctx, span := om.tracer.Start(ctx, spanName)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.String()),
			attribute.String("http.route", c.FullPath()),
			attribute.String("http.remote_addr", c.ClientIP()),
			attribute.String("request.id", requestID),
			attribute.String("service.name", om.serviceName),
		)

		// Add trace context to Gin context
		c.Request = c.Request.WithContext(ctx)

		// Process request
		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int64("http.response_size", int64(c.Writer.Size())),
			attribute.Float64("http.duration_ms", float64(duration.Nanoseconds())/1e6),
		)

		// Set span status based on HTTP status code
		if statusCode >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
			if statusCode >= 500 {
				span.RecordError(fmt.Errorf("HTTP %d", statusCode))
			}
		}

		// Record metrics
		if om.metrics != nil {
			om.metrics.RecordHTTPRequest(
				ctx,
				c.Request.Method,
				c.FullPath(),
				strconv.Itoa(statusCode),
				duration,
			)
		}

		logFields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
			"request_id":  requestID,
			"remote_ip":   c.ClientIP(),
		}

		if statusCode >= 400 {
			om.logger.Warn(ctx, "HTTP request completed with error", logFields)
		} else {
			om.logger.Info(ctx, "HTTP request completed", logFields)
		}

		// Log slow requests
		om.logger.SlowOperation(
			ctx,
			fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()),
			duration,
			om.slowThreshold,
			logFields,
		)
	}
}

// HTTPMiddleware returns a standard net/http middleware with the same
// behavior as GinMiddleware, for the ops server's mux-routed endpoints.
func (om *ObservabilityMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		spanName := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		ctx, span := om.tracer.Start(ctx, spanName)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.remote_addr", r.RemoteAddr),
			attribute.String("request.id", requestID),
			attribute.String("service.name", om.serviceName),
		)

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}
		r = r.WithContext(ctx)

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		statusCode := rw.statusCode

		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int64("http.response_size", int64(rw.size)),
			attribute.Float64("http.duration_ms", float64(duration.Nanoseconds())/1e6),
		)

		if statusCode >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
			if statusCode >= 500 {
				span.RecordError(fmt.Errorf("HTTP %d", statusCode))
			}
		}

		if om.metrics != nil {
			om.metrics.RecordHTTPRequest(
				ctx,
				r.Method,
				r.URL.Path,
				strconv.Itoa(statusCode),
				duration,
			)
		}

		logFields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
			"request_id":  requestID,
			"remote_addr": r.RemoteAddr,
		}

		if statusCode >= 400 {
			om.logger.Warn(ctx, "HTTP request completed with error", logFields)
		} else {
			om.logger.Info(ctx, "HTTP request completed", logFields)
		}

		om.logger.SlowOperation(
			ctx,
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			duration,
			om.slowThreshold,
			logFields,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(data)
	rw.size += size
	return size, err
}

// TraceMiddleware provides basic tracing without full observability
func TraceMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		spanName := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		ctx, span := tracer.Start(ctx, spanName)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.String("service.name", serviceName),
		)

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
		)

		if c.Writer.Status() >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
			if c.Writer.Status() >= 500 {
				span.RecordError(fmt.Errorf("HTTP %d", c.Writer.Status()))
			}
		}
	}
}

// MetricsMiddleware provides basic metrics collection
func MetricsMiddleware(metrics *MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if metrics != nil {
			duration := time.Since(start)
			metrics.RecordHTTPRequest(
				c.Request.Context(),
				c.Request.Method,
				c.FullPath(),
				strconv.Itoa(c.Writer.Status()),
				duration,
			)
		}
	}
}
