// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context and provides
// trace ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type ctxKey string

const (
	traceIDKey  ctxKey = "trace_id"
	botIDKey    ctxKey = "bot_id"
	symKey      ctxKey = "sym"
	signalIDKey ctxKey = "signal_id"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID from a token and timestamp.
// Format: "{token}-{unixNano}" â€” lightweight, no UUID dependency.
func GenerateTraceID(token string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", token, ts.UnixNano())
}

// LogWithTrace returns slog attributes including the trace ID from context.
// Usage: slog.Info("msg", logger.LogWithTrace(ctx)...)
func LogWithTrace(ctx context.Context) []any {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []any{slog.String("trace_id", tid)}
}

// WithBotID, WithSym and WithSignalID attach the pipeline's own correlation
// fields to a context, the same propagation pattern as WithTraceID but
// carrying the identifiers handlers/reconcile actually key work on.
func WithBotID(ctx context.Context, botID string) context.Context {
	return context.WithValue(ctx, botIDKey, botID)
}

func WithSym(ctx context.Context, sym string) context.Context {
	return context.WithValue(ctx, symKey, sym)
}

func WithSignalID(ctx context.Context, signalID string) context.Context {
	return context.WithValue(ctx, signalIDKey, signalID)
}

func BotID(ctx context.Context) string {
	if v, ok := ctx.Value(botIDKey).(string); ok {
		return v
	}
	return ""
}

func Sym(ctx context.Context) string {
	if v, ok := ctx.Value(symKey).(string); ok {
		return v
	}
	return ""
}

func SignalID(ctx context.Context) string {
	if v, ok := ctx.Value(signalIDKey).(string); ok {
		return v
	}
	return ""
}

// Attrs collects every correlation field present on ctx (trace id, bot id,
// sym, signal id) into a flat slog attribute list.
func Attrs(ctx context.Context) []any {
	var attrs []any
	if tid := TraceID(ctx); tid != "" {
		attrs = append(attrs, slog.String("trace_id", tid))
	}
	if bid := BotID(ctx); bid != "" {
		attrs = append(attrs, slog.String("bot_id", bid))
	}
	if sym := Sym(ctx); sym != "" {
		attrs = append(attrs, slog.String("sym", sym))
	}
	if sid := SignalID(ctx); sid != "" {
		attrs = append(attrs, slog.String("signal_id", sid))
	}
	return attrs
}
