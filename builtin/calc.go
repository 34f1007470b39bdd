package builtin

import (
	"log/slog"
	"math"

	"github.com/expr-lang/expr"

	"github.com/chatframe/mex/macro"
)

// calcEnv is the expression environment exposed to {{calc}}.
//
//nolint:gochecknoglobals
var calcEnv = map[string]any{
	"pi":    math.Pi,
	"e":     math.E,
	"abs":   math.Abs,
	"ceil":  math.Ceil,
	"floor": math.Floor,
	"round": math.Round,
	"sqrt":  math.Sqrt,
	"min":   math.Min,
	"max":   math.Max,
}

// registerCalc installs the arithmetic expression macro.
func registerCalc(reg *macro.Registry, _ *Options) error {
	return reg.Register("calc", macro.Spec{
		Category: macro.CategoryUtility,
		Args: []macro.ArgDef{{
			Name:        "expression",
			Type:        macro.TypeString,
			Sample:      "(2 + 3) * 4",
			Description: "Arithmetic expression to evaluate.",
		}},
		Description:  "Evaluates an arithmetic expression.",
		ExampleUsage: "{{calc::{{getvar::hp}} - 7}}",
		Source:       macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			program, err := expr.Compile(ctx.Unnamed[0], expr.Env(calcEnv))
			if err != nil {
				return nil, macro.RuntimeError(
					macro.NewError("expression compilation failed").
						Wrap(err).
						With(slog.String("expression", ctx.Unnamed[0])),
				)
			}

			result, err := expr.Run(program, calcEnv)
			if err != nil {
				return nil, macro.RuntimeError(
					macro.NewError("expression evaluation failed").
						Wrap(err).
						With(slog.String("expression", ctx.Unnamed[0])),
				)
			}

			return result, nil
		},
	})
}
