package cmd

import (
	"context"

	"github.com/chatframe/mex/cli/cmd/repl"
)

// Repl starts the interactive macro playground.
type Repl struct {
	Env string `help:"Environment configuration (YAML)" short:"e" type:"existingfile"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	sess, err := newSession(r.Env)
	if err != nil {
		return err
	}

	defs := sess.reg.List(nil)
	names := make([]string, 0, len(defs))

	for _, def := range defs {
		names = append(names, def.Name)

		for _, alias := range def.Aliases {
			if !alias.Hidden {
				names = append(names, alias.Name)
			}
		}
	}

	return repl.Run(ctx, repl.Config{
		Evaluate: sess.evaluate,
		Names:    names,
	})
}
