package macro

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// DefaultMaxDepth caps invocation nesting to defend against pathological
// inputs. Exceeding it emits a runtime warning and preserves the raw span.
const DefaultMaxDepth = 64

// Processor transforms the document before lexing or after walking.
type Processor func(input string, env *Env) string

// Engine drives the full expansion pipeline: pre-process, lex, parse with
// recovery, walk, dispatch through the registry, post-process. It never
// fails a document; in the worst case the original input is returned.
type Engine struct {
	reg      *Registry
	rep      *Reporter
	pre      []Processor
	post     []Processor
	maxDepth int
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithReporter routes engine diagnostics to rep.
func WithReporter(rep *Reporter) EngineOption {
	return func(e *Engine) { e.rep = rep }
}

// WithMaxDepth overrides the nesting depth cap.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithPreProcessor appends a pre-processor after the required rewrites.
func WithPreProcessor(p Processor) EngineOption {
	return func(e *Engine) { e.pre = append(e.pre, p) }
}

// WithPostProcessor appends a post-processor after the required ones.
func WithPostProcessor(p Processor) EngineOption {
	return func(e *Engine) { e.post = append(e.post, p) }
}

// NewEngine creates an Engine dispatching through reg.
func NewEngine(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		reg:      reg,
		rep:      DefaultReporter(),
		pre:      []Processor{rewriteLegacyTime, rewriteMarkers},
		post:     []Processor{unescapeBraces, removeTrim},
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate expands every recognized invocation in input. Unknown and
// malformed invocations are preserved verbatim (nested values still
// expanded), so the document is lossless.
func (e *Engine) Evaluate(input string, env *Env) string {
	if input == "" {
		return ""
	}

	// Shallow copy: the environment is treated as immutable for the
	// duration of this evaluation.
	if env == nil {
		env = &Env{}
	} else {
		copied := *env
		env = &copied
	}

	for _, p := range e.pre {
		input = p(input, env)
	}

	doc, issues := Parse(input)
	if len(issues) > 0 {
		e.rep.SyntaxWarning("parse", issues, input)
	}

	if doc == nil {
		e.rep.InternalError("parser produced no syntax tree", nil, nil,
			slog.Int("input_len", len(input)))

		return input
	}

	w := &walker{
		src:      doc.src,
		env:      env,
		resolve:  e.resolveMacro,
		rep:      e.rep,
		maxDepth: e.maxDepth,
	}

	out := w.document(doc)

	for _, p := range e.post {
		out = p(out, env)
	}

	return out
}

// resolveMacro dispatches one invocation. Dynamic environment definitions
// take precedence over the registry; unknown names are preserved raw and
// not reported.
func (e *Engine) resolveMacro(call *Call) string {
	raw := call.Raw()

	if call.Name == "" {
		return raw
	}

	var opts ExecuteOptions

	if call.Env != nil {
		if impl, ok := call.Env.DynamicMacros[call.Name]; ok {
			opts.DefOverride = dynamicDefinition(call.Name, impl)
		}
	}

	if opts.DefOverride == nil && !e.reg.Has(call.Name) {
		return raw
	}

	out, err := e.reg.Execute(call, opts)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownMacro):
			// Unregistered between lookup and dispatch: preserved, silent.

		case IsRuntime(err):
			e.rep.RuntimeWarning("macro evaluation failed", call,
				slog.Any("error", err))

		default:
			e.rep.InternalError("macro handler failed", err, call)
		}

		return raw
	}

	if call.Env != nil && call.Env.Functions.PostProcess != nil {
		out = e.postProcessValue(call, call.Env.Functions.PostProcess, out)
	}

	return out
}

// postProcessValue applies the environment's value post-processor with a
// failure boundary: a panic is logged as internal and the value is used
// unchanged.
func (e *Engine) postProcessValue(
	call *Call,
	fn func(string) string,
	value string,
) (out string) {
	out = value

	defer func() {
		if r := recover(); r != nil {
			e.rep.InternalError("value post-process failed", nil, call,
				slog.Any("panic", r))
		}
	}()

	return fn(value)
}

// dynamicDefinition synthesizes a one-shot strict zero-arity definition
// from a dynamic macro value or thunk.
func dynamicDefinition(name string, impl any) *Definition {
	handler := func(Ctx) (any, error) {
		switch fn := impl.(type) {
		case func() string:
			return fn(), nil

		case func() any:
			return fn(), nil

		case func() (any, error):
			return fn()

		default:
			return impl, nil
		}
	}

	return &Definition{
		Name:       name,
		StrictArgs: true,
		Source:     SourceDynamic,
		Handler:    handler,
	}
}

// Normalize converts a handler return value to its output string: nil
// becomes empty, times render as RFC 3339, maps, slices, arrays and structs
// (or pointers to them) as JSON (with a plain-format fallback), everything
// else through fmt.
func Normalize(v any) string {
	switch val := v.(type) {
	case nil:
		return ""

	case string:
		return val

	case time.Time:
		return val.Format(time.RFC3339)

	case error:
		return val.Error()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(rv.Interface())
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(b)
	}

	return fmt.Sprint(rv.Interface())
}

// Pre-processor rewrites.
var (
	legacyTimePattern = regexp.MustCompile(`\{\{time_UTC([-+]\d+)\}\}`)
	markerPattern     = regexp.MustCompile(`(?i)<(USER|BOT|CHAR|GROUP|CHARIFNOTGROUP)>`)
	trimPattern       = regexp.MustCompile(`(?:\r?\n)*\{\{trim\}\}(?:\r?\n)*`)
)

// markerInvocations maps uppercase bare markers to their invocation forms.
//
//nolint:gochecknoglobals
var markerInvocations = map[string]string{
	"USER":           "{{user}}",
	"BOT":            "{{char}}",
	"CHAR":           "{{char}}",
	"GROUP":          "{{group}}",
	"CHARIFNOTGROUP": "{{charIfNotGroup}}",
}

// rewriteLegacyTime rewrites `{{time_UTC±N}}` to `{{time::UTC±N}}`.
func rewriteLegacyTime(input string, _ *Env) string {
	return legacyTimePattern.ReplaceAllString(input, "{{time::UTC$1}}")
}

// rewriteMarkers rewrites case-insensitive bare markers such as `<USER>`
// to their invocation forms.
func rewriteMarkers(input string, _ *Env) string {
	return markerPattern.ReplaceAllStringFunc(input, func(m string) string {
		key := strings.ToUpper(m[1 : len(m)-1])
		if inv, ok := markerInvocations[key]; ok {
			return inv
		}

		return m
	})
}

// unescapeBraces rewrites `\{` and `\}` to literal braces.
func unescapeBraces(input string, _ *Env) string {
	input = strings.ReplaceAll(input, `\{`, "{")

	return strings.ReplaceAll(input, `\}`, "}")
}

// removeTrim removes `{{trim}}` markers together with any immediately
// surrounding newline runs on both sides. The marker reaches across its own
// bounds, which is why it is handled here rather than by the evaluator.
func removeTrim(input string, _ *Env) string {
	return trimPattern.ReplaceAllString(input, "")
}
