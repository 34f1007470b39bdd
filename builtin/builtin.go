package builtin

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/chatframe/mex/macro"
)

// Options configures the library's external sources.
type Options struct {
	// Store backs the chat-variable macros. Defaults to a fresh [MemStore].
	Store Store

	// Now supplies the current time. Defaults to [time.Now].
	Now func() time.Time

	// IntN supplies random integers in [0, n). Defaults to [rand.IntN].
	IntN func(n int) int
}

// Option mutates the library options.
type Option func(*Options)

// WithStore backs the variable macros with store.
func WithStore(store Store) Option {
	return func(o *Options) { o.Store = store }
}

// WithNow substitutes the time source.
func WithNow(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithIntN substitutes the random source.
func WithIntN(intn func(int) int) Option {
	return func(o *Options) { o.IntN = intn }
}

// Register installs the standard macro library into reg. Registration is
// all-or-nothing per macro; the first failure is returned.
func Register(reg *macro.Registry, opts ...Option) error {
	o := Options{
		Store: NewMemStore(),
		Now:   time.Now,
		IntN:  rand.IntN,
	}

	for _, opt := range opts {
		opt(&o)
	}

	groups := []func(*macro.Registry, *Options) error{
		registerNames,
		registerStructure,
		registerStrings,
		registerTime,
		registerRandom,
		registerVars,
		registerCalc,
	}

	for _, register := range groups {
		if err := register(reg, &o); err != nil {
			return err
		}
	}

	return nil
}

// registerNames installs the participant-name macros.
func registerNames(reg *macro.Registry, _ *Options) error {
	names := []struct {
		name    string
		aliases []macro.Alias
		desc    string
		value   func(*macro.Env) string
	}{
		{
			name:  "user",
			desc:  "Name of the user persona.",
			value: func(env *macro.Env) string { return env.Names.User },
		},
		{
			name: "char",
			aliases: []macro.Alias{
				{Name: "bot", Description: "Deprecated alias of char.", Hidden: true},
			},
			desc:  "Name of the active character.",
			value: func(env *macro.Env) string { return env.Names.Char },
		},
		{
			name:  "group",
			desc:  "Group name, or the character name in solo chats.",
			value: func(env *macro.Env) string { return env.Names.Group },
		},
		{
			name:  "groupNotMuted",
			desc:  "Group name restricted to unmuted members.",
			value: func(env *macro.Env) string { return env.Names.GroupNotMuted },
		},
		{
			name:  "notChar",
			desc:  "Everyone in the chat except the active character.",
			value: func(env *macro.Env) string { return env.Names.NotChar },
		},
		{
			name:  "charIfNotGroup",
			desc:  "Character name in solo chats, group name otherwise.",
			value: func(env *macro.Env) string { return env.Names.Group },
		},
		{
			name:  "model",
			desc:  "Identifier of the active model.",
			value: func(env *macro.Env) string { return env.System.Model },
		},
	}

	for _, n := range names {
		value := n.value

		err := reg.Register(n.name, macro.Spec{
			Category:    macro.CategoryState,
			Aliases:     n.aliases,
			Description: n.desc,
			Source:      macro.SourceBuiltin,
			Handler: func(ctx macro.Ctx) (any, error) {
				return value(ctx.Env), nil
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// registerStructure installs document-structure macros.
func registerStructure(reg *macro.Registry, _ *Options) error {
	err := reg.Register("newline", macro.Spec{
		Category: macro.CategoryUtility,
		Args: []macro.ArgDef{{
			Name:     "count",
			Type:     macro.TypeInteger,
			Optional: true,
			Default:  "1",
			Sample:   "2",
		}},
		Description: "Inserts one or more newline characters.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			n, err := strconv.Atoi(ctx.Unnamed[0])
			if err != nil || n < 1 {
				n = 1
			}

			return strings.Repeat("\n", n), nil
		},
	})
	if err != nil {
		return err
	}

	err = reg.Register("noop", macro.Spec{
		Category:    macro.CategoryUtility,
		Description: "Expands to nothing.",
		Source:      macro.SourceBuiltin,
		Handler:     func(macro.Ctx) (any, error) { return "", nil },
	})
	if err != nil {
		return err
	}

	// The trim marker is removed by post-processing, which can see across
	// invocation bounds; evaluation keeps it as a fixed point.
	err = reg.Register("trim", macro.Spec{
		Category:    macro.CategoryUtility,
		Description: "Removes surrounding newlines.",
		Source:      macro.SourceBuiltin,
		Handler:     func(macro.Ctx) (any, error) { return "{{trim}}", nil },
	})
	if err != nil {
		return err
	}

	err = reg.Register("original", macro.Spec{
		Category:    macro.CategoryState,
		Description: "The unexpanded text, usable once per evaluation.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			if ctx.Env.Functions.Original == nil {
				return "", nil
			}

			return ctx.Env.Functions.Original(), nil
		},
	})
	if err != nil {
		return err
	}

	return reg.Register("//", macro.Spec{
		Category: macro.CategoryUtility,
		Aliases: []macro.Alias{
			{Name: "comment", Description: "Spelled-out comment form."},
		},
		Args: []macro.ArgDef{{
			Name:     "body",
			Type:     macro.TypeString,
			Optional: true,
		}},
		List:        macro.UnboundedList(),
		Description: "A comment: accepts any body and expands to nothing.",
		Source:      macro.SourceBuiltin,
		Handler:     func(macro.Ctx) (any, error) { return "", nil },
	})
}

// registerStrings installs string-utility macros.
func registerStrings(reg *macro.Registry, _ *Options) error {
	utils := []struct {
		name string
		desc string
		fn   func(string) any
	}{
		{
			name: "reverse",
			desc: "Reverses the argument.",
			fn: func(s string) any {
				runes := []rune(s)
				for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
					runes[i], runes[j] = runes[j], runes[i]
				}

				return string(runes)
			},
		},
		{
			name: "upper",
			desc: "Uppercases the argument.",
			fn:   func(s string) any { return strings.ToUpper(s) },
		},
		{
			name: "lower",
			desc: "Lowercases the argument.",
			fn:   func(s string) any { return strings.ToLower(s) },
		},
		{
			name: "length",
			desc: "Length of the argument in characters.",
			fn:   func(s string) any { return len([]rune(s)) },
		},
	}

	for _, u := range utils {
		fn := u.fn

		err := reg.Register(u.name, macro.Spec{
			Category:    macro.CategoryUtility,
			NArgs:       1,
			Description: u.desc,
			Source:      macro.SourceBuiltin,
			Handler: func(ctx macro.Ctx) (any, error) {
				return fn(ctx.Unnamed[0]), nil
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}
