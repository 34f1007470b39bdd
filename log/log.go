package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Logger provides a concurrency-safe simplified logging interface.
// The zero value is a no-op logger.
type Logger struct {
	*slog.Logger
	config
}

// Make creates a new [Logger] that writes to the specified writer.
// The default configuration is [DefaultFormat], [DefaultLevel], and
// [DefaultTimeLayout] with caller info disabled.
func Make(w io.Writer, opts ...Option) Logger {
	cfg := makeConfig(w, opts...)

	return Logger{
		config: cfg,
		Logger: slog.New(cfg.handler()),
	}
}

// Wrap returns a new [Logger] derived from the receiver with the provided
// configuration options applied on top of its existing configuration.
func (l Logger) Wrap(opts ...Option) Logger {
	cfg := l.config
	for _, opt := range opts {
		opt(&cfg)
	}

	return Logger{
		config: cfg,
		Logger: slog.New(cfg.handler()),
	}
}

// With returns a new [Logger] that includes the given attributes in each
// record.
func (l Logger) With(attrs ...slog.Attr) Logger {
	if l.Logger == nil {
		return l
	}

	return Logger{
		config: l.config,
		Logger: slog.New(l.Logger.Handler().WithAttrs(attrs)),
	}
}

// Level returns the configured minimum severity.
func (l Logger) Level() Level {
	if l.Logger == nil {
		return DefaultLevel
	}

	return l.level
}

// Format returns the configured output encoding.
func (l Logger) Format() Format {
	if l.Logger == nil {
		return DefaultFormat
	}

	return l.format
}

// Debug logs a message at Debug level.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.logAttrs(LevelDebug, msg, attrs...)
}

// Info logs a message at Info level.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.logAttrs(LevelInfo, msg, attrs...)
}

// Warn logs a message at Warn level.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.logAttrs(LevelWarn, msg, attrs...)
}

// Error logs a message at Error level.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.logAttrs(LevelError, msg, attrs...)
}

func (l Logger) logAttrs(level Level, msg string, attrs ...slog.Attr) {
	if l.Logger == nil {
		return
	}

	l.Logger.LogAttrs(context.Background(), slog.Level(level), msg, attrs...)
}

// Default logger state.
//
//nolint:gochecknoglobals
var (
	defaultMu     sync.RWMutex
	defaultLogger = Make(os.Stderr, WithFormat(FormatText))
)

// Default returns the process-wide default logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	return defaultLogger
}

// Config reconfigures the process-wide default logger.
func Config(opts ...Option) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultLogger = defaultLogger.Wrap(opts...)
}

// Debug logs a message at Debug level using the default logger.
func Debug(msg string, attrs ...slog.Attr) { Default().Debug(msg, attrs...) }

// Info logs a message at Info level using the default logger.
func Info(msg string, attrs ...slog.Attr) { Default().Info(msg, attrs...) }

// Warn logs a message at Warn level using the default logger.
func Warn(msg string, attrs ...slog.Attr) { Default().Warn(msg, attrs...) }

// Error logs a message at Error level using the default logger.
func Error(msg string, attrs ...slog.Attr) { Default().Error(msg, attrs...) }
