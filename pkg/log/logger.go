package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	benchErrors "github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo, "json")
)

// SetupLogger installs a zerolog-backed provider writing to w (stderr when
// nil) at the given level ("debug", "info", "warn", "error") in the given
// format ("json" or "console"). Library warnings raised through
// errors.Warn are routed to the same output.
func SetupLogger(level, format string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if format != "json" && format != "console" {
		return benchErrors.NewValidationError("log-format", "must be json or console", format)
	}
	if w == nil {
		w = os.Stderr
	}
	SetProvider(NewZerologProvider(w, lvl, format))
	return nil
}

// SetProvider replaces the package-level provider and bridges errors.Warn to it.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()

	if zp, ok := p.(*ZerologProvider); ok {
		benchErrors.SetZerologWarnFunc(zp.warn)
		return
	}
	benchErrors.SetZerologWarnFunc(func(w error) {
		p.GetLoggerWithName("warnings").Warn(w.Error(), "warning", w)
	})
}

// SetProviderFields installs a provider that adds fields to every logger the
// current provider creates, including the errors.Warn bridge. Commands use it
// once after SetupLogger to tag a whole run.
func SetProviderFields(fields ...any) {
	providerMu.RLock()
	current := provider
	providerMu.RUnlock()

	if zp, ok := current.(*ZerologProvider); ok {
		SetProvider(zp.With(fields...))
		return
	}
	SetProvider(&fieldsProvider{inner: current, fields: fields})
}

// GetLogger returns a logger from the package-level provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component-tagged logger from the package-level provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// ParseLevel converts a level name to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, benchErrors.NewValidationError("log-level", "must be one of debug, info, warn, error", level)
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider is the production LoggerProvider.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing JSON lines (format "json") or
// human-readable lines (format "console") to w.
func NewZerologProvider(w io.Writer, level Level, format string) *ZerologProvider {
	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	base := zerolog.New(out).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologProvider{base: base}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

// With returns a provider whose loggers all carry fields.
func (p *ZerologProvider) With(fields ...any) *ZerologProvider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologProvider{base: withFields(p.base.With(), fields).Logger()}
}

func (p *ZerologProvider) warn(w error) {
	p.mu.RLock()
	ev := p.base.Warn().Str(ComponentKey, "warnings")
	p.mu.RUnlock()
	if m, ok := w.(zerolog.LogObjectMarshaler); ok {
		ev = ev.EmbedObject(m)
	}
	ev.Msg(w.Error())
}

// fieldsProvider wraps a provider that is not zerolog-backed.
type fieldsProvider struct {
	inner  LoggerProvider
	fields []any
}

func (p *fieldsProvider) GetLogger() Logger {
	return p.inner.GetLogger().With(p.fields...)
}

func (p *fieldsProvider) GetLoggerWithName(name string) Logger {
	return p.inner.GetLoggerWithName(name).With(p.fields...)
}

func (p *fieldsProvider) SetLevel(level Level) {
	p.inner.SetLevel(level)
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttrKey, err}, fields[1:]...)
		}
	}
	emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: withFields(l.zl.With(), fields).Logger()}
}

func withFields(ctx zerolog.Context, fields []any) zerolog.Context {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.AnErr(key, err)
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return ctx
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			e = e.AnErr(key, err)
			if st := stacktrace(err); st != "" {
				e = e.Str(StacktraceAttrKey, st)
			}
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	if len(fields)%2 == 1 {
		e = e.Interface("!BADKEY", fields[len(fields)-1])
	}
	e.Msg(msg)
}

// stacktrace renders the verbose form of errors created through
// cockroachdb/errors, which carries the captured stack.
func stacktrace(err error) string {
	verbose := fmt.Sprintf("%+v", err)
	if verbose == err.Error() {
		return ""
	}
	return verbose
}
