package cli

import (
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/chatframe/mex/log"
)

// logFormat is a custom type that configures the logger format as a side
// effect of parsing via encoding.TextUnmarshaler.
type logFormat string

// UnmarshalText implements encoding.TextUnmarshaler.
// As Kong parses the --log-format flag, this method is called, allowing us
// to configure the logger early enough to affect error messages during
// parsing.
func (f *logFormat) UnmarshalText(text []byte) error {
	*f = logFormat(text)
	log.Config(log.WithFormat(log.ParseFormat(string(*f))))

	return nil
}

// logLevel is a custom type that configures the logger level as a side
// effect of parsing via encoding.TextUnmarshaler.
type logLevel string

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *logLevel) UnmarshalText(text []byte) error {
	*l = logLevel(text)
	log.Config(log.WithLevel(log.ParseLevel(string(*l))))

	return nil
}

type logConfig struct {
	Level      logLevel  `default:"info" enum:"debug,info,warn,error" help:"Set log level."`
	Format     logFormat `default:"text" enum:"json,text"             help:"Set log format."`
	TimeLayout string    `default:"RFC3339"                           help:"Set timestamp format."`
	Caller     bool      `default:"false"                             help:"Include caller information."       negatable:""`
	Pretty     bool      `default:"false"                             help:"Enable colorized pretty printing." negatable:""`
}

func (*logConfig) group() kong.Group {
	var group kong.Group

	group.Key = "log"
	group.Title = "Logging options"

	return group
}

func (f *logConfig) start() {
	log.Config(
		log.WithLevel(log.ParseLevel(string(f.Level))),
		log.WithFormat(log.ParseFormat(string(f.Format))),
		log.WithTimeLayout(f.TimeLayout),
		log.WithCaller(f.Caller),
		log.WithPretty(f.Pretty),
	)

	log.Debug("logger initialized",
		slog.String("level", string(f.Level)),
		slog.String("format", string(f.Format)),
		slog.String("time", f.TimeLayout),
		slog.Bool("caller", f.Caller),
		slog.Bool("pretty", f.Pretty),
	)
}

// scan performs an early pass over command-line arguments to extract and
// apply logger configuration before Kong begins parsing. This ensures the
// logger is configured properly regardless of flag position on the command
// line.
func (f *logConfig) scan(args []string) {
	opts := make([]log.Option, 0, 3)

	for i, arg := range args {
		flag, value, assigned := strings.Cut(arg, "=")

		if !assigned && i+1 < len(args) {
			value = args[i+1]
		}

		switch flag {
		case "--log-level":
			opts = append(opts, log.WithLevel(log.ParseLevel(value)))

		case "--log-format":
			opts = append(opts, log.WithFormat(log.ParseFormat(value)))

		case "--log-pretty":
			opts = append(opts, log.WithPretty(true))

		case "--no-log-pretty":
			opts = append(opts, log.WithPretty(false))
		}
	}

	if len(opts) > 0 {
		log.Config(opts...)
	}
}
