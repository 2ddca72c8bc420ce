package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/orderbook-engine/service/internal/config"
	"go.opentelemetry.io/otel/trace"
)

// Level is the severity of a log entry. Levels are ordered so the gate
// is a single comparison on the hot ingest path.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel maps a configuration string onto a Level. Unknown strings
// fall back to info rather than erroring; a typo in LOG_LEVEL should
// never keep the service from starting.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LogEntry is the wire form of one log line. The timestamp is epoch
// milliseconds, the same resolution and epoch as the book's level
// timestamps, so log lines join directly against level data.
type LogEntry struct {
	TimestampMs int64                  `json:"ts"`
	Level       string                 `json:"level"`
	Service     string                 `json:"service"`
	Message     string                 `json:"message"`
	TraceID     string                 `json:"trace_id,omitempty"`
	SpanID      string                 `json:"span_id,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Logger writes structured, level-gated log entries. Entries carry the
// active trace and span IDs when the context holds a valid span context, so
// a rejected depth update can be followed from HTTP request to book
// mutation across log and trace storage.
type Logger struct {
	service string
	min     Level
	format  string

	mu  sync.Mutex
	out io.Writer
}

// NewLogger builds a logger writing to stdout at the configured level
// and format ("json" or plain text).
func NewLogger(cfg config.ObservabilityConfig) *Logger {
	return &Logger{
		service: cfg.ServiceName,
		min:     ParseLevel(cfg.LogLevel),
		format:  cfg.LogFormat,
		out:     os.Stdout,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.emit(ctx, LevelDebug, message, nil, fields)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.emit(ctx, LevelInfo, message, nil, fields)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.emit(ctx, LevelWarn, message, nil, fields)
}

// Error logs at error level with the error recorded alongside the
// message.
func (l *Logger) Error(ctx context.Context, message string, err error, fields ...map[string]interface{}) {
	l.emit(ctx, LevelError, message, err, fields)
}

// SlowOperation logs a warn-level entry for an operation that exceeded
// its latency threshold. No-op when the threshold holds.
func (l *Logger) SlowOperation(ctx context.Context, operation string, duration, threshold time.Duration, fields ...map[string]interface{}) {
	if duration <= threshold {
		return
	}
	slow := map[string]interface{}{
		"operation":    operation,
		"duration_ms":  duration.Milliseconds(),
		"threshold_ms": threshold.Milliseconds(),
	}
	l.emit(ctx, LevelWarn, "slow operation: "+operation, nil, append(fields, slow))
}

func (l *Logger) emit(ctx context.Context, level Level, message string, err error, fields []map[string]interface{}) {
	if level < l.min {
		return
	}

	entry := LogEntry{
		TimestampMs: time.Now().UnixMilli(),
		Level:       level.String(),
		Service:     l.service,
		Message:     message,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}

	if err != nil {
		entry.Error = err.Error()
	}

	for _, fieldMap := range fields {
		if len(fieldMap) == 0 {
			continue
		}
		if entry.Fields == nil {
			entry.Fields = make(map[string]interface{}, len(fieldMap))
		}
		for k, v := range fieldMap {
			entry.Fields[k] = v
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		if encodeErr := json.NewEncoder(l.out).Encode(entry); encodeErr != nil {
			fmt.Fprintf(os.Stderr, "log entry dropped: %v\n", encodeErr)
		}
		return
	}
	fmt.Fprintf(l.out, "%d %s %s: %s\n", entry.TimestampMs, entry.Level, entry.Service, entry.Message)
}
