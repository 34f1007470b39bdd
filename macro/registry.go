package macro

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ArgType constrains the string value an argument may hold. Types form a
// bitmask: a union is the OR of its members and passes when any member
// passes. [TypeString] always passes.
type ArgType uint

// Argument types.
const (
	TypeString ArgType = 1 << iota
	TypeInteger
	TypeNumber
	TypeBoolean

	typeMax
)

// String returns a pipe-joined name of the type set, e.g. "integer|number".
func (t ArgType) String() string {
	names := make([]string, 0, 4)

	if t&TypeString != 0 {
		names = append(names, "string")
	}

	if t&TypeInteger != 0 {
		names = append(names, "integer")
	}

	if t&TypeNumber != 0 {
		names = append(names, "number")
	}

	if t&TypeBoolean != 0 {
		names = append(names, "boolean")
	}

	if len(names) == 0 {
		return "invalid"
	}

	return strings.Join(names, "|")
}

// valid reports whether t contains only known type bits.
func (t ArgType) valid() bool {
	return t != 0 && t&^(typeMax-1) == 0
}

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

// check reports whether value satisfies the type set.
func (t ArgType) check(value string) bool {
	if t&TypeString != 0 {
		return true
	}

	if t&TypeInteger != 0 && integerPattern.MatchString(value) {
		return true
	}

	if t&TypeNumber != 0 {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return true
		}
	}

	if t&TypeBoolean != 0 {
		switch strings.ToLower(value) {
		case "true", "false", "1", "0", "yes", "no":
			return true
		}
	}

	return false
}

// ArgDef describes one positional argument slot.
type ArgDef struct {
	Name        string
	Type        ArgType
	Optional    bool
	Default     string
	Sample      string
	Description string
}

// Unbounded marks a list without an upper bound.
const Unbounded = -1

// ListSpec describes a variadic tail of positional arguments accepted after
// the fixed slots. Max is either >= Min or [Unbounded].
type ListSpec struct {
	Min int
	Max int
}

// UnboundedList returns a list spec accepting any number of tail arguments.
func UnboundedList() *ListSpec {
	return &ListSpec{Min: 0, Max: Unbounded}
}

// Alias is a secondary name resolving to the same definition as a primary.
type Alias struct {
	Name        string
	Description string
	Hidden      bool
}

// Category groups definitions for listings.
type Category string

// Well-known categories.
const (
	CategoryUtility  Category = "utility"
	CategoryState    Category = "state"
	CategoryRandom   Category = "random"
	CategoryVariable Category = "variable"
)

// Source records a definition's provenance.
type Source string

// Definition provenance values.
const (
	SourceBuiltin    Source = "builtin"
	SourceExtension  Source = "extension"
	SourceThirdParty Source = "third-party"
	SourceDynamic    Source = "dynamic"
)

// Handler computes the value of one invocation. User-level failures are
// returned as errors wrapping [ErrRuntime]; any other error (or panic) is
// treated as an internal definition bug.
type Handler func(Ctx) (any, error)

// Ctx is the uniform handler context.
type Ctx struct {
	// Unnamed holds the fixed positional arguments, defaults applied.
	Unnamed []string
	// List holds the variadic tail arguments.
	List []string
	// Env is the evaluation environment, shared and read-only.
	Env *Env
	// Call is the runtime invocation record.
	Call *Call
	// Range is the invocation's source range.
	Range Range
	// Normalize converts any handler value to its string form.
	Normalize func(any) string
}

// Range is an inclusive rune offset range into the evaluated input.
type Range struct {
	Start int
	End   int
}

// Call is a runtime invocation: created by the walker immediately prior to
// dispatch and never mutated afterwards.
type Call struct {
	Name string
	// Args holds the evaluated argument values, nested invocations already
	// expanded.
	Args []string
	Env  *Env
	// RawInner is the invocation body with nested values substituted.
	RawInner string
	// RawWithBraces is the verbatim source span including delimiters.
	RawWithBraces string
	Range         Range
	Node          *Invocation
}

// Raw returns the invocation rebuilt from its inner text, nested values
// substituted. This is the value preserved in the output when the
// invocation cannot (or must not) execute.
func (c *Call) Raw() string {
	return "{{" + c.RawInner + "}}"
}

// Spec configures one macro registration. Exactly one of NArgs (shorthand
// for that many required untyped string arguments) or Args may be set.
type Spec struct {
	Handler  Handler
	Aliases  []Alias
	Category Category

	// NArgs is shorthand for NArgs required string arguments.
	NArgs int
	// Args is the explicit ordered argument schema.
	Args []ArgDef

	// List accepts a variadic tail beyond the fixed slots.
	List *ListSpec

	// StrictArgs suppresses execution on arity or type violations,
	// preserving the raw invocation.
	StrictArgs bool

	// Presentational fields.
	Returns         string
	ReturnType      string
	ExampleUsage    string
	DisplayOverride string
	Description     string

	Source Source
}

// Definition is an installed macro: the validated form of a [Spec].
type Definition struct {
	Name            string
	Aliases         []Alias
	Category        Category
	Args            []ArgDef
	List            *ListSpec
	StrictArgs      bool
	Returns         string
	ReturnType      string
	ExampleUsage    string
	DisplayOverride string
	Description     string
	Source          Source
	Handler         Handler

	// AliasOf is set on lookup results when the definition was resolved
	// through an alias; it names the primary.
	AliasOf string
}

// MinArgs returns the count of leading required argument slots.
func (d *Definition) MinArgs() int {
	n := 0
	for _, a := range d.Args {
		if a.Optional {
			break
		}

		n++
	}

	return n
}

// MaxArgs returns the total count of fixed argument slots.
func (d *Definition) MaxArgs() int { return len(d.Args) }

// Registry is a mapping from invocation name (and alias) to definition.
// All methods are safe for concurrent use; lookup is read-locked.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Definition
	byAlias map[string]aliasEntry
	rep     *Reporter
}

type aliasEntry struct {
	def   *Definition
	alias Alias
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithRegistryReporter routes registration diagnostics to rep.
func WithRegistryReporter(rep *Reporter) RegistryOption {
	return func(r *Registry) { r.rep = rep }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName:  make(map[string]*Definition),
		byAlias: make(map[string]aliasEntry),
		rep:     DefaultReporter(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register validates and installs a definition. Registration is total:
// either the definition is installed and immediately visible, or a
// structured error is returned and no partial state remains.
func (r *Registry) Register(name string, spec Spec) error {
	def, err := buildDefinition(name, spec)
	if err != nil {
		r.rep.RegistrationError(err, name)

		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkCollisions(def); err != nil {
		r.rep.RegistrationError(err, name)

		return err
	}

	r.byName[def.Name] = def

	for _, alias := range def.Aliases {
		r.byAlias[alias.Name] = aliasEntry{def: def, alias: alias}
	}

	return nil
}

// buildDefinition validates spec and constructs the definition record.
func buildDefinition(name string, spec Spec) (*Definition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	if spec.Handler == nil {
		return nil, ErrMissingHandler.With(slog.String("name", name))
	}

	if spec.NArgs < 0 {
		return nil, ErrInvalidArgCount.With(
			slog.String("name", name),
			slog.Int("count", spec.NArgs),
		)
	}

	if spec.NArgs > 0 && len(spec.Args) > 0 {
		return nil, ErrConflictingSpec.With(slog.String("name", name))
	}

	args := spec.Args
	if spec.NArgs > 0 {
		args = make([]ArgDef, spec.NArgs)
		for i := range args {
			args[i] = ArgDef{Name: "arg" + strconv.Itoa(i+1), Type: TypeString}
		}
	}

	optional := false

	for i, a := range args {
		if !a.Type.valid() {
			return nil, ErrUnknownArgType.With(
				slog.String("name", name),
				slog.Int("index", i),
			)
		}

		if a.Optional {
			optional = true

			continue
		}

		if optional {
			return nil, ErrInvalidArgOrder.With(
				slog.String("name", name),
				slog.String("argument", a.Name),
			)
		}
	}

	if spec.List != nil {
		badMin := spec.List.Min < 0
		badMax := spec.List.Max != Unbounded && spec.List.Max < spec.List.Min

		if badMin || badMax {
			return nil, ErrInvalidList.With(
				slog.String("name", name),
				slog.Int("min", spec.List.Min),
				slog.Int("max", spec.List.Max),
			)
		}
	}

	source := spec.Source
	if source == "" {
		source = SourceThirdParty
	}

	return &Definition{
		Name:            name,
		Aliases:         spec.Aliases,
		Category:        spec.Category,
		Args:            args,
		List:            spec.List,
		StrictArgs:      spec.StrictArgs,
		Returns:         spec.Returns,
		ReturnType:      spec.ReturnType,
		ExampleUsage:    spec.ExampleUsage,
		DisplayOverride: spec.DisplayOverride,
		Description:     spec.Description,
		Source:          source,
		Handler:         spec.Handler,
	}, nil
}

// checkCollisions verifies that neither the name nor any alias is taken.
// Callers must hold the write lock.
func (r *Registry) checkCollisions(def *Definition) error {
	names := make([]string, 0, len(def.Aliases)+1)
	names = append(names, def.Name)

	seen := map[string]bool{def.Name: true}

	for _, alias := range def.Aliases {
		if seen[alias.Name] {
			return ErrNameCollision.With(
				slog.String("name", def.Name),
				slog.String("alias", alias.Name),
			)
		}

		seen[alias.Name] = true
		names = append(names, alias.Name)
	}

	for _, n := range names {
		if _, ok := r.byName[n]; ok {
			return ErrNameCollision.With(slog.String("name", n))
		}

		if _, ok := r.byAlias[n]; ok {
			return ErrNameCollision.With(slog.String("name", n))
		}
	}

	return nil
}

// Unregister removes a definition. Given a primary name it removes the
// primary and all its aliases; given an alias it removes only that alias.
// It reports whether anything was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def, ok := r.byName[name]; ok {
		delete(r.byName, name)

		for _, alias := range def.Aliases {
			delete(r.byAlias, alias.Name)
		}

		return true
	}

	entry, ok := r.byAlias[name]
	if !ok {
		return false
	}

	delete(r.byAlias, name)

	// Drop the alias from its primary's record as well.
	def := entry.def
	aliases := make([]Alias, 0, len(def.Aliases))

	for _, alias := range def.Aliases {
		if alias.Name != name {
			aliases = append(aliases, alias)
		}
	}

	def.Aliases = aliases

	return true
}

// Get performs an alias-aware lookup. Resolving an alias returns a copy of
// the primary definition with AliasOf set and any alias description applied.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.byName[name]; ok {
		resolved := *def

		return &resolved, true
	}

	entry, ok := r.byAlias[name]
	if !ok {
		return nil, false
	}

	resolved := *entry.def
	resolved.AliasOf = entry.def.Name

	if entry.alias.Description != "" {
		resolved.Description = entry.alias.Description
	}

	return &resolved, true
}

// Has reports whether name resolves to a definition, alias-aware.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byName[name]; ok {
		return true
	}

	_, ok := r.byAlias[name]

	return ok
}

// List enumerates installed definitions sorted by name. When filter is
// non-nil only definitions it accepts are returned.
func (r *Registry) List(filter func(*Definition) bool) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.byName))

	for _, def := range r.byName {
		if filter == nil || filter(def) {
			defs = append(defs, def)
		}
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	return defs
}

// ExecuteOptions modifies one dispatch.
type ExecuteOptions struct {
	// DefOverride bypasses registry lookup, e.g. for dynamic macros.
	DefOverride *Definition
}

// Execute is the dispatch path used by the engine: resolve, validate arity,
// apply defaults, validate types, split the list tail, invoke the handler,
// and normalize its value.
//
// Contract violations on a strict definition return the raw invocation with
// a nil error; on a non-strict definition they are reported and execution
// continues. Handler failures (including panics, recovered as internal
// errors) are returned to the caller, which owns the preserve-raw policy.
func (r *Registry) Execute(call *Call, opts ExecuteOptions) (string, error) {
	def := opts.DefOverride
	if def == nil {
		var ok bool
		if def, ok = r.Get(call.Name); !ok {
			return "", ErrUnknownMacro.With(slog.String("name", call.Name))
		}
	}

	args, ok := r.checkContract(call, def)
	if !ok {
		return call.Raw(), nil
	}

	unnamed, list := splitArgs(args, def.MaxArgs())

	value, err := invokeHandler(def, Ctx{
		Unnamed:   unnamed,
		List:      list,
		Env:       call.Env,
		Call:      call,
		Range:     call.Range,
		Normalize: Normalize,
	})
	if err != nil {
		return "", err
	}

	return Normalize(value), nil
}

// checkContract validates arity and argument types, applying defaults for
// trailing optional slots. It returns the effective argument list and
// whether execution should proceed.
func (r *Registry) checkContract(call *Call, def *Definition) ([]string, bool) {
	n := len(call.Args)
	required := def.MinArgs()
	positional := def.MaxArgs()

	listMin, listMax := 0, 0
	if def.List != nil {
		listMin = def.List.Min
		listMax = def.List.Max
	}

	ceiling := positional + listMax
	arityOK := n >= required &&
		(listMax == Unbounded || n <= ceiling) &&
		(n <= positional || n >= positional+listMin)

	if !arityOK {
		r.rep.RuntimeWarning("macro argument count mismatch", call,
			slog.Int("got", n),
			slog.Int("min", required),
			slog.Int("max", ceiling),
		)

		if def.StrictArgs {
			return nil, false
		}
	}

	args := make([]string, len(call.Args))
	copy(args, call.Args)

	// Fill trailing optional slots with their defaults. Stop at a missing
	// required slot (possible on non-strict underflow) so defaults never
	// shift into the wrong position.
	for i := len(args); i < positional; i++ {
		if !def.Args[i].Optional {
			break
		}

		args = append(args, def.Args[i].Default)
	}

	// Type-check the fixed positional slots against the post-expansion
	// string values.
	for i := 0; i < len(args) && i < positional; i++ {
		if def.Args[i].Type.check(args[i]) {
			continue
		}

		r.rep.RuntimeWarning("expected type "+def.Args[i].Type.String(), call,
			slog.String("argument", def.Args[i].Name),
			slog.String("value", args[i]),
		)

		if def.StrictArgs {
			return nil, false
		}
	}

	return args, true
}

// splitArgs divides the effective arguments into fixed slots and list tail.
func splitArgs(args []string, positional int) (unnamed, list []string) {
	if len(args) <= positional {
		return args, []string{}
	}

	return args[:positional], args[positional:]
}

// invokeHandler runs the handler with panics recovered as internal errors.
func invokeHandler(def *Definition, ctx Ctx) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError("macro handler panicked").With(
				slog.String("name", def.Name),
				slog.Any("panic", r),
			)
		}
	}()

	return def.Handler(ctx)
}
