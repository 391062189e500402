package logger

import (
	"os"
	"strings"

	_ "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
)

const serviceName = "estate-market"

var defaultLogger *zap.SugaredLogger

// Initialize sets up the global logger with the specified level and format.
// Supported formats are "logfmt" (default), "json" and "console".
func Initialize(level, format string) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(format) {
	case "json":
		cfg.Encoding = "json"
	case "console", "text":
		cfg.Encoding = "console"
	default:
		cfg.Encoding = "logfmt"
	}

	if err := cfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.InitialFields = map[string]any{"service": serviceName}
	if host, err := os.Hostname(); err == nil {
		cfg.InitialFields["host"] = host
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	defaultLogger = l.Sugar()
}

// Set replaces the global logger. Tests use it with an observer core.
func Set(l *zap.Logger) {
	defaultLogger = l.Sugar()
}

// Get returns the default logger
func Get() *zap.SugaredLogger {
	if defaultLogger == nil {
		Initialize("info", "logfmt")
	}
	return defaultLogger
}

// Sync flushes any buffered entries.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}

func Debug(msg string, args ...any) {
	Get().Debugw(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Infow(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warnw(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Errorw(msg, args...)
}

// WithMethod returns a logger with method name attached
func WithMethod(methodName string) *zap.SugaredLogger {
	return Get().With("method", methodName)
}

// WithComponent returns a logger with component name attached
func WithComponent(component string) *zap.SugaredLogger {
	return Get().With("component", component)
}

// EnterMethod logs method entry (process tracking)
func EnterMethod(methodName string, args ...any) {
	allArgs := append([]any{"method", methodName, "event", "enter"}, args...)
	Get().Debugw("→ Method entered", allArgs...)
}

// ExitMethod logs method exit (process tracking)
func ExitMethod(methodName string, args ...any) {
	allArgs := append([]any{"method", methodName, "event", "exit"}, args...)
	Get().Debugw("← Method exited", allArgs...)
}

// ExitMethodWithError logs method exit with error (process tracking)
func ExitMethodWithError(methodName string, err error, args ...any) {
	allArgs := append([]any{"method", methodName, "event", "exit", "error", err}, args...)
	Get().Errorw("← Method exited with error", allArgs...)
}

// DatabaseCall logs database operation (debug log for external resources)
func DatabaseCall(operation, query string, args ...any) {
	allArgs := append([]any{"operation", operation, "query", query}, args...)
	Get().Debugw("→ Database call", allArgs...)
}

// DatabaseResult logs database operation result (debug log for external resources)
func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	allArgs := append([]any{"operation", operation, "rows_affected", rowsAffected}, args...)
	if err != nil {
		allArgs = append(allArgs, "error", err)
		Get().Errorw("← Database call failed", allArgs...)
	} else {
		Get().Debugw("← Database call succeeded", allArgs...)
	}
}

// ExternalServiceCall logs external service call (debug log for external resources)
func ExternalServiceCall(service, operation string, args ...any) {
	allArgs := append([]any{"external_service", service, "operation", operation}, args...)
	Get().Debugw("→ External service call", allArgs...)
}

// ExternalServiceResult logs external service result (debug log for external resources)
func ExternalServiceResult(service, operation string, err error, args ...any) {
	allArgs := append([]any{"external_service", service, "operation", operation}, args...)
	if err != nil {
		allArgs = append(allArgs, "error", err)
		Get().Errorw("← External service call failed", allArgs...)
	} else {
		Get().Debugw("← External service call succeeded", allArgs...)
	}
}
