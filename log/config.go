package log

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// Level is the minimum severity a record must have to be emitted.
type Level int

// Severity levels, lowest to highest.
const (
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// DefaultLevel is the level used when none is configured.
const DefaultLevel = LevelInfo

// Levels returns the recognized level names in ascending severity.
func Levels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ParseLevel converts a level name to a [Level].
// Unrecognized names return [DefaultLevel].
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return DefaultLevel
	}
}

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Format selects the output encoding of a [Logger].
type Format int

// Output encodings.
const (
	FormatText Format = iota
	FormatJSON
)

// DefaultFormat is the format used when none is configured.
const DefaultFormat = FormatJSON

// Formats returns the recognized format names.
func Formats() []string {
	return []string{"text", "json"}
}

// ParseFormat converts a format name to a [Format].
// Unrecognized names return [DefaultFormat].
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return DefaultFormat
	}
}

// String returns the lowercase name of the format.
func (f Format) String() string {
	if f == FormatText {
		return "text"
	}

	return "json"
}

// DefaultTimeLayout is the timestamp layout used when none is configured.
const DefaultTimeLayout = time.RFC3339

// config holds the resolved settings backing a [Logger].
type config struct {
	output     io.Writer
	level      Level
	format     Format
	timeLayout string
	caller     bool
	pretty     bool
}

// Option mutates a logger configuration.
type Option func(*config)

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

// WithLevel sets the minimum severity.
func WithLevel(level Level) Option {
	return func(c *config) { c.level = level }
}

// WithFormat sets the output encoding.
func WithFormat(format Format) Option {
	return func(c *config) { c.format = format }
}

// WithTimeLayout sets the timestamp layout. Named stdlib layouts
// ("RFC3339", "Kitchen", ...) are recognized in addition to literal layouts.
func WithTimeLayout(layout string) Option {
	return func(c *config) { c.timeLayout = namedTimeLayout(layout) }
}

// WithCaller includes source file and line in each record.
func WithCaller(enable bool) Option {
	return func(c *config) { c.caller = enable }
}

// WithPretty enables the colorized handler for interactive terminals.
func WithPretty(enable bool) Option {
	return func(c *config) { c.pretty = enable }
}

// makeConfig resolves options against defaults.
func makeConfig(w io.Writer, opts ...Option) config {
	cfg := config{
		output:     w,
		level:      DefaultLevel,
		format:     DefaultFormat,
		timeLayout: DefaultTimeLayout,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// handler constructs the slog.Handler described by the configuration.
func (c config) handler() slog.Handler {
	if c.pretty {
		return newPrettyHandler(c)
	}

	hopts := &slog.HandlerOptions{
		AddSource: c.caller,
		Level:     slog.Level(c.level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(c.timeLayout))
				}
			}

			return a
		},
	}

	if c.format == FormatText {
		return slog.NewTextHandler(c.output, hopts)
	}

	return slog.NewJSONHandler(c.output, hopts)
}

// namedTimeLayout maps stdlib layout constant names to their values.
// Unrecognized names are returned unchanged so literal layouts pass through.
func namedTimeLayout(name string) string {
	switch name {
	case "ANSIC":
		return time.ANSIC
	case "UnixDate":
		return time.UnixDate
	case "RFC822":
		return time.RFC822
	case "RFC850":
		return time.RFC850
	case "RFC1123":
		return time.RFC1123
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "Kitchen":
		return time.Kitchen
	case "Stamp":
		return time.Stamp
	case "DateTime":
		return time.DateTime
	case "DateOnly":
		return time.DateOnly
	case "TimeOnly":
		return time.TimeOnly
	default:
		return name
	}
}
