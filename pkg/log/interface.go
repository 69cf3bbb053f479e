// Package log provides the structured logging interface used across modelbench.
//
// The Logger interface is slog-compatible in shape (message plus alternating
// key/value fields) and is backed by zerolog in production. Attribute keys in
// attributes.go keep sweep and training logs greppable:
//
//	logger := log.GetLoggerWithName("bench.sweep").With(
//	    log.ConfigKey, "NuSVR",
//	    log.ParamNameKey, "nu",
//	)
//	logger.Info("Configuration point done",
//	    log.ComplexityKey, 312,
//	    log.LatencyKey, 1.7e-4,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. An error value under ErrAttrKey (or
// passed as the first field to Error) is rendered with its stack trace.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop execution.
	Warn(msg string, fields ...any)

	// Error logs an error condition. If the first field is an error it is
	// attached under ErrAttrKey.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. The package-level provider can be swapped
// with SetProvider, which is how tests capture output from library code.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for loggers created by this provider.
	SetLevel(level Level)
}
