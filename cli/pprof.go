//go:build pprof

package cli

import (
	"context"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/pkg/profile"

	"github.com/chatframe/mex/log"
)

type pprofConfig struct {
	Mode string `default:""        enum:",cpu,mem,block,mutex,trace" help:"Enable profiling"         placeholder:"${enum}" short:"p"`
	Dir  string `default:"${pprofDir}"                               help:"Profile output directory"                       type:"path"`
}

func (pprofConfig) vars() kong.Vars {
	return kong.Vars{"pprofDir": "."}
}

func (pprofConfig) group() kong.Group {
	var group kong.Group

	group.Key = "pprof"
	group.Title = "Profiling (pprof)"

	return group
}

// start starts profiling if configured.
func (f pprofConfig) start(ctx context.Context) (stop func()) {
	if f.Mode == "" {
		return func() {}
	}

	log.Debug("pprof start",
		slog.String("mode", f.Mode),
		slog.String("dir", f.Dir),
	)

	opts := []func(*profile.Profile){
		profile.ProfilePath(f.Dir),
		profile.Quiet,
	}

	switch f.Mode {
	case "cpu":
		opts = append(opts, profile.CPUProfile)
	case "mem":
		opts = append(opts, profile.MemProfile)
	case "block":
		opts = append(opts, profile.BlockProfile)
	case "mutex":
		opts = append(opts, profile.MutexProfile)
	case "trace":
		opts = append(opts, profile.TraceProfile)
	}

	profiler := profile.Start(opts...)

	return func() {
		profiler.Stop()
		log.Debug("pprof stop", slog.String("dir", f.Dir))
	}
}
