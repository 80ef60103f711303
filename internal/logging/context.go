package logging

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// NewContext attaches the logger to ctx
func NewContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext retrieves the logger from context, or a disabled logger
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context, base zerolog.Logger) (context.Context, zerolog.Logger) {
	traceID := GenerateTraceID()
	l := base.With().Str("trace_id", traceID).Logger()
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	return l.WithContext(ctx), l
}

// TraceID returns the trace ID stored in ctx, if any
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// ScanContext creates a logger for one scan run
func ScanContext(l zerolog.Logger, scanID string, symbols int) zerolog.Logger {
	return l.With().Str("scan_id", scanID).Int("symbols", symbols).Logger()
}

// SymbolContext creates a logger for one symbol pipeline
func SymbolContext(l zerolog.Logger, symbol string) zerolog.Logger {
	return l.With().Str("symbol", symbol).Logger()
}

// GinMiddleware logs each request with a trace ID and stores the request
// logger in the request context
func GinMiddleware(base zerolog.Logger) gin.HandlerFunc {
	base = WithComponent(base, "http")
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}
		c.Header("X-Trace-ID", traceID)

		l := base.With().
			Str("trace_id", traceID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		ctx := context.WithValue(c.Request.Context(), traceIDKey, traceID)
		c.Request = c.Request.WithContext(l.WithContext(ctx))

		c.Next()

		l.Info().
			Int("status_code", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}
