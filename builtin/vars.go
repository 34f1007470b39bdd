package builtin

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/chatframe/mex/macro"
)

// Store holds chat variables for the variable macros. Implementations must
// be safe for use from a single evaluation; the default [MemStore] is safe
// for concurrent use as well.
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string)
}

// MemStore is an in-memory [Store].
type MemStore struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{vars: make(map[string]string)}
}

// Get returns the value of name and whether it is set.
func (s *MemStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vars[name]

	return v, ok
}

// Set assigns value to name.
func (s *MemStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vars[name] = value
}

// registerVars installs the chat-variable macros.
func registerVars(reg *macro.Registry, o *Options) error {
	store := o.Store

	err := reg.Register("setvar", macro.Spec{
		Category:    macro.CategoryVariable,
		NArgs:       2,
		StrictArgs:  true,
		Description: "Sets a chat variable; expands to nothing.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			store.Set(ctx.Unnamed[0], ctx.Unnamed[1])

			return "", nil
		},
	})
	if err != nil {
		return err
	}

	err = reg.Register("getvar", macro.Spec{
		Category:    macro.CategoryVariable,
		NArgs:       1,
		StrictArgs:  true,
		Description: "Expands to the value of a chat variable.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			v, _ := store.Get(ctx.Unnamed[0])

			return v, nil
		},
	})
	if err != nil {
		return err
	}

	err = reg.Register("addvar", macro.Spec{
		Category: macro.CategoryVariable,
		Args: []macro.ArgDef{
			{Name: "name", Type: macro.TypeString},
			{Name: "increment", Type: macro.TypeInteger | macro.TypeNumber},
		},
		StrictArgs:  true,
		Description: "Adds a numeric increment to a chat variable.",
		Source:      macro.SourceBuiltin,
		Handler: func(ctx macro.Ctx) (any, error) {
			_, err := adjustVar(store, ctx.Unnamed[0], ctx.Unnamed[1])

			return "", err
		},
	})
	if err != nil {
		return err
	}

	steps := []struct {
		name string
		desc string
		step string
	}{
		{name: "incvar", desc: "Increments a chat variable by one.", step: "1"},
		{name: "decvar", desc: "Decrements a chat variable by one.", step: "-1"},
	}

	for _, s := range steps {
		step := s.step

		err := reg.Register(s.name, macro.Spec{
			Category:    macro.CategoryVariable,
			NArgs:       1,
			StrictArgs:  true,
			Description: s.desc,
			Source:      macro.SourceBuiltin,
			Handler: func(ctx macro.Ctx) (any, error) {
				return adjustVar(store, ctx.Unnamed[0], step)
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// adjustVar adds delta to the numeric value of name and returns the new
// value. Unset variables start at zero.
func adjustVar(store Store, name, delta string) (string, error) {
	d, err := strconv.ParseFloat(delta, 64)
	if err != nil {
		return "", macro.RuntimeErrorf("variable increment is not numeric",
			slog.String("name", name),
			slog.String("increment", delta),
		)
	}

	current := 0.0

	if v, ok := store.Get(name); ok && v != "" {
		current, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return "", macro.RuntimeErrorf("variable value is not numeric",
				slog.String("name", name),
				slog.String("value", v),
			)
		}
	}

	value := strconv.FormatFloat(current+d, 'f', -1, 64)
	store.Set(name, value)

	return value, nil
}
