// Package cli implements the mex command-line interface.
package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/chatframe/mex/cli/cmd"
	"github.com/chatframe/mex/pkg"
)

// CLI is the top-level command-line interface for mex.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Expand  cmd.Expand  `cmd:"" default:"withargs" help:"Expand macros in text"`
	List    cmd.List    `cmd:""                    help:"List registered macros"`
	Repl    cmd.Repl    `cmd:""                    help:"Interactive macro playground"`
	Version cmd.Version `cmd:""                    help:"Print version and exit"`
}

// Run executes the mex CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Pre-scan for logger flags to ensure early configuration regardless of
	// flag position. TextUnmarshaler on logFormat/logLevel handles those
	// flags during normal parsing, but this early scan also catches boolean
	// flags like --log-pretty.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact: true,
				Summary: true,
			}),
		cli.Pprof.vars(),
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Finalize logger configuration with all parsed values.
	cli.Log.start()

	// pprofConfig.start is a no-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
