package builtin

import (
	"log/slog"
	"regexp"
	"strconv"

	"github.com/chatframe/mex/macro"
)

var dicePattern = regexp.MustCompile(`^(\d*)[dD](\d+)([-+]\d+)?$`)

// maxDiceCount bounds a single roll to keep pathological inputs cheap.
const maxDiceCount = 1000

// registerRandom installs the dice and random-selection macros.
func registerRandom(reg *macro.Registry, o *Options) error {
	intn := o.IntN

	err := reg.Register("roll", macro.Spec{
		Category: macro.CategoryRandom,
		Args: []macro.ArgDef{{
			Name:        "formula",
			Type:        macro.TypeString,
			Sample:      "1d20",
			Description: "Dice formula NdM with an optional modifier.",
		}},
		Description: "Rolls dice and expands to the total.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			return rollDice(ctx.Unnamed[0], intn)
		},
	})
	if err != nil {
		return err
	}

	return reg.Register("random", macro.Spec{
		Category:    macro.CategoryRandom,
		List:        &macro.ListSpec{Min: 1, Max: macro.Unbounded},
		Description: "Expands to one of its arguments, chosen at random.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			if len(ctx.List) == 0 {
				return nil, macro.RuntimeErrorf("random requires at least one option")
			}

			return ctx.List[intn(len(ctx.List))], nil
		},
	})
}

// rollDice evaluates a NdM±K formula.
func rollDice(formula string, intn func(int) int) (any, error) {
	m := dicePattern.FindStringSubmatch(formula)
	if m == nil {
		return nil, macro.RuntimeErrorf("invalid dice formula",
			slog.String("formula", formula))
	}

	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}

	sides, _ := strconv.Atoi(m[2])

	if count < 1 || count > maxDiceCount || sides < 1 {
		return nil, macro.RuntimeErrorf("dice formula out of range",
			slog.String("formula", formula))
	}

	total := 0
	for range count {
		total += intn(sides) + 1
	}

	if m[3] != "" {
		mod, _ := strconv.Atoi(m[3])
		total += mod
	}

	return total, nil
}
