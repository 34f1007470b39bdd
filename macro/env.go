package macro

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Env is the evaluation environment: built once per top-level evaluation
// and passed by shared reference to every handler. Handlers treat it as
// read-only; Extra is provider scratch space whose mutation ordering
// relative to sibling invocations is undefined.
type Env struct {
	// Content is the original input of the evaluation.
	Content string
	// ContentHash is a stable hash of Content.
	ContentHash string

	Names     Names
	Character *Character
	System    System

	// DynamicMacros maps names to per-evaluation ad-hoc definitions: a
	// value, or a zero-argument function producing one. They override the
	// registry with strict zero arity.
	DynamicMacros map[string]any

	Functions Functions

	// Extra is free-form provider scratch.
	Extra map[string]any
}

// Names holds the participant names visible to handlers.
type Names struct {
	User          string
	Char          string
	Group         string
	GroupNotMuted string
	NotChar       string
}

// System describes the runtime the evaluation executes under.
type System struct {
	Model string
}

// Character carries the character-card fields, populated only when the
// builder context asks for card replacement.
type Character struct {
	CharPrompt      string
	CharInstruction string
	Description     string
	Personality     string
	Scenario        string
	Persona         string
	MesExamplesRaw  string
	Version         string
	CharDepthPrompt string
	CreatorNotes    string
}

// Functions bundles the helper callbacks handlers may invoke.
type Functions struct {
	// PostProcess, when set, transforms every resolved macro value.
	PostProcess func(string) string
	// Original returns the pre-evaluation text on first call and the empty
	// string on every subsequent call within the same environment.
	Original func() string
}

// RawEnv is the builder input: the application state an environment is
// derived from.
type RawEnv struct {
	Content string

	Name1 string
	Name2 string

	Name1Override string
	Name2Override string

	// GroupSelected indicates a group chat; GroupName is its display name.
	GroupSelected bool
	GroupName     string
	GroupOverride string

	Model string

	// Original, when non-nil, seeds the one-shot original() helper.
	Original *string

	// ReplaceCharacterCard gates population of Character fields.
	ReplaceCharacterCard bool
	Character            *Character

	DynamicMacros map[string]any
	Extra         map[string]any
}

// Bucket orders providers within the builder chain.
type Bucket int

// Provider buckets, run in order.
const (
	BucketEarly Bucket = iota
	BucketNormal
	BucketLate

	bucketCount
)

// Provider contributes fields to an environment under construction.
type Provider func(env *Env, ctx RawEnv) error

// Builder assembles environments from an ordered provider chain. Each
// provider runs inside an isolated failure boundary: an error or panic is
// logged and construction continues.
type Builder struct {
	mu        sync.RWMutex
	providers [bucketCount][]Provider
	rep       *Reporter
}

// BuilderOption configures a [Builder].
type BuilderOption func(*Builder)

// WithBuilderReporter routes provider failures to rep.
func WithBuilderReporter(rep *Reporter) BuilderOption {
	return func(b *Builder) { b.rep = rep }
}

// NewBuilder creates a Builder preloaded with the standard providers.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{rep: DefaultReporter()}

	for _, opt := range opts {
		opt(b)
	}

	b.RegisterProvider(contentProvider, BucketEarly)
	b.RegisterProvider(namesProvider, BucketNormal)
	b.RegisterProvider(characterProvider, BucketNormal)
	b.RegisterProvider(systemProvider, BucketNormal)
	b.RegisterProvider(functionsProvider, BucketLate)

	return b
}

// RegisterProvider appends fn to the given bucket.
func (b *Builder) RegisterProvider(fn Provider, bucket Bucket) {
	if bucket < BucketEarly || bucket >= bucketCount {
		bucket = BucketNormal
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.providers[bucket] = append(b.providers[bucket], fn)
}

// Build runs the provider chain over ctx and overlays its dynamic macros.
func (b *Builder) Build(ctx RawEnv) *Env {
	env := &Env{
		Extra: make(map[string]any),
	}

	for k, v := range ctx.Extra {
		env.Extra[k] = v
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for bucket := BucketEarly; bucket < bucketCount; bucket++ {
		for _, fn := range b.providers[bucket] {
			b.runProvider(fn, env, ctx)
		}
	}

	if len(ctx.DynamicMacros) > 0 {
		env.DynamicMacros = make(map[string]any, len(ctx.DynamicMacros))
		for name, impl := range ctx.DynamicMacros {
			env.DynamicMacros[name] = impl
		}
	}

	return env
}

// runProvider is the per-provider failure boundary.
func (b *Builder) runProvider(fn Provider, env *Env, ctx RawEnv) {
	defer func() {
		if r := recover(); r != nil {
			b.rep.InternalError("environment provider panicked", nil, nil,
				slog.Any("panic", r))
		}
	}()

	if err := fn(env, ctx); err != nil {
		b.rep.InternalError("environment provider failed", err, nil)
	}
}

// contentProvider seeds the original content and its hash.
func contentProvider(env *Env, ctx RawEnv) error {
	env.Content = ctx.Content
	env.ContentHash = ContentHash(ctx.Content)

	return nil
}

// ContentHash returns the stable hash used for Env.ContentHash.
func ContentHash(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(content), 16)
}

// namesProvider resolves the participant names. In a group chat the group
// name stands in for the character; in solo mode the character does.
func namesProvider(env *Env, ctx RawEnv) error {
	user := ctx.Name1
	if ctx.Name1Override != "" {
		user = ctx.Name1Override
	}

	char := ctx.Name2
	if ctx.Name2Override != "" {
		char = ctx.Name2Override
	}

	env.Names.User = user
	env.Names.Char = char

	if ctx.GroupSelected {
		group := ctx.GroupName
		if ctx.GroupOverride != "" {
			group = ctx.GroupOverride
		}

		env.Names.Group = group
		env.Names.GroupNotMuted = group
		env.Names.NotChar = group

		return nil
	}

	env.Names.Group = char
	env.Names.GroupNotMuted = char
	env.Names.NotChar = user

	return nil
}

// characterProvider copies the character card when requested.
func characterProvider(env *Env, ctx RawEnv) error {
	if !ctx.ReplaceCharacterCard || ctx.Character == nil {
		return nil
	}

	card := *ctx.Character
	env.Character = &card

	return nil
}

// systemProvider records runtime information.
func systemProvider(env *Env, ctx RawEnv) error {
	env.System.Model = ctx.Model

	return nil
}

// functionsProvider installs the helper callbacks, including the one-shot
// original() accessor.
func functionsProvider(env *Env, ctx RawEnv) error {
	if ctx.Original == nil {
		return nil
	}

	original := *ctx.Original
	spent := false

	env.Functions.Original = func() string {
		if spent {
			return ""
		}

		spent = true

		return original
	}

	return nil
}
