// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ContextKey = "request_id"

// defaultLogger is the global logger instance.
var defaultLogger *slog.Logger

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level, ordered from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents a log output format.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// ParseFormat maps a format name to a Format. Unknown names map to
// FormatJSON.
func ParseFormat(name string) Format {
	if name == "text" {
		return FormatText
	}
	return FormatJSON
}

// stampRFC3339 renders the record timestamp as RFC 3339 text.
func stampRFC3339(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// InitLogger initializes the global logger with the specified level and format.
// Logs go to stderr so normalized output on stdout stays machine readable.
func InitLogger(level Level, format Format) {
	opts := &slog.HandlerOptions{
		Level:       level.slogLevel(),
		ReplaceAttr: stampRFC3339,
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if requestID := GetRequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

// Debug, Info, Warn and Error log a message with optional key-value pairs
// through the global logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// emit logs one named event with its fixed fields followed by any extras.
func emit(level slog.Level, event string, fields ...any) {
	defaultLogger.Log(context.Background(), level, event, fields...)
}

// HTTPRequestContext logs an HTTP request with its common fields and the
// request ID the context carries.
func HTTPRequestContext(ctx context.Context, method, path, remoteAddr string, statusCode int, duration time.Duration, args ...any) {
	fields := []any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}
	LoggerFromContext(ctx).Info("http_request", append(fields, args...)...)
}

// BlockFailure logs a block that failed normalization.
func BlockFailure(line int, source string, err error, args ...any) {
	fields := []any{"line", line, "source", source, "error", err.Error()}
	emit(slog.LevelWarn, "block_error", append(fields, args...)...)
}

// ProgramSummary logs the outcome of normalizing a whole program.
func ProgramSummary(blocks, commands int, digest string, args ...any) {
	fields := []any{"blocks", blocks, "commands", commands, "digest", digest}
	emit(slog.LevelInfo, "program_normalized", append(fields, args...)...)
}

// DialectLoaded logs a dialect resolution.
func DialectLoaded(name, origin string, groups int, args ...any) {
	fields := []any{"dialect", name, "origin", origin, "groups", groups}
	emit(slog.LevelInfo, "dialect_loaded", append(fields, args...)...)
}

// JobEvent logs normalization job lifecycle events.
func JobEvent(jobID, status string, args ...any) {
	fields := []any{"job_id", jobID, "status", status}
	emit(slog.LevelInfo, "job_event", append(fields, args...)...)
}

// WebSocketEvent logs WebSocket events.
func WebSocketEvent(event string, clientCount int, args ...any) {
	fields := []any{"event", event, "client_count", clientCount}
	emit(slog.LevelInfo, "websocket_event", append(fields, args...)...)
}

// ServerStartup logs server startup information.
func ServerStartup(serverType, protocol string, addr string, args ...any) {
	fields := []any{"server_type", serverType, "protocol", protocol, "addr", addr}
	emit(slog.LevelInfo, "server_startup", append(fields, args...)...)
}

// SecurityEvent logs security-related events.
func SecurityEvent(event, component string, args ...any) {
	fields := []any{"event", event, "component", component}
	emit(slog.LevelWarn, "security_event", append(fields, args...)...)
}
