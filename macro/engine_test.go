package macro

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/chatframe/mex/log"
)

// newTestRegistry installs a minimal macro set sufficient for the engine
// scenarios, reporting into w (or discarding when w is nil).
func newTestRegistry(t *testing.T, w io.Writer) *Registry {
	t.Helper()

	if w == nil {
		w = io.Discard
	}

	rep := NewReporter(log.Make(w, testLogOptions()...))
	reg := NewRegistry(WithRegistryReporter(rep))

	vars := make(map[string]string)

	register := func(name string, spec Spec) {
		t.Helper()

		if err := reg.Register(name, spec); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	register("user", Spec{Handler: func(ctx Ctx) (any, error) {
		return ctx.Env.Names.User, nil
	}})

	register("char", Spec{Handler: func(ctx Ctx) (any, error) {
		return ctx.Env.Names.Char, nil
	}})

	register("group", Spec{Handler: func(ctx Ctx) (any, error) {
		return ctx.Env.Names.Group, nil
	}})

	register("newline", Spec{Handler: func(Ctx) (any, error) {
		return "\n", nil
	}})

	register("reverse", Spec{NArgs: 1, Handler: func(ctx Ctx) (any, error) {
		runes := []rune(ctx.Unnamed[0])
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}

		return string(runes), nil
	}})

	register("setvar", Spec{NArgs: 2, StrictArgs: true,
		Handler: func(ctx Ctx) (any, error) {
			vars[ctx.Unnamed[0]] = ctx.Unnamed[1]

			return "", nil
		}})

	register("getvar", Spec{NArgs: 1, StrictArgs: true,
		Handler: func(ctx Ctx) (any, error) {
			return vars[ctx.Unnamed[0]], nil
		}})

	register("test-int-strict", Spec{
		Args:       []ArgDef{{Name: "value", Type: TypeInteger}},
		StrictArgs: true,
		Handler: func(ctx Ctx) (any, error) {
			return "int:" + ctx.Unnamed[0], nil
		}})

	return reg
}

// testLogOptions keeps test log output plain and verbose.
func testLogOptions() []log.Option {
	return []log.Option{log.WithFormat(log.FormatText), log.WithLevel(log.LevelDebug)}
}

func newTestEngine(t *testing.T, w io.Writer) *Engine {
	t.Helper()

	if w == nil {
		w = io.Discard
	}

	rep := NewReporter(log.Make(w, testLogOptions()...))

	return NewEngine(newTestRegistry(t, w), WithReporter(rep))
}

func testEnv() *Env {
	return &Env{
		Names: Names{
			User:          "User",
			Char:          "Character",
			Group:         "Character",
			GroupNotMuted: "Character",
			NotChar:       "User",
		},
	}
}

func TestEvaluateScenarios(t *testing.T) {
	eng := newTestEngine(t, nil)
	env := testEnv()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"newline", "Start {{newline}} end.", "Start \n end."},
		{
			"variables",
			"A {{setvar::test::4}}{{getvar::test}} B {{setvar::test::2}}{{getvar::test}} C",
			"A 4 B 2 C",
		},
		{"nested newline", "Result: {{reverse::{{newline}}}}", "Result: \n"},
		{
			"unknown keeps nested expanded",
			"Test: {{unknown::my {{newline}} example}}",
			"Test: {{unknown::my \n example}}",
		},
		{"trim", "foo\n\n{{trim}}\n\nbar", "foobar"},
		{"double open", "{{{{char}}", "{{Character"},
		{"unterminated", "Test {{ hehe {{user}}", "Test {{ hehe User"},
		{"strict type", "Value: {{test-int-strict::abc}}", "Value: {{test-int-strict::abc}}"},
		{"comment garbage", "{{//any // garbage}}X", "{{//any // garbage}}X"},
		{"user marker", "Hello <USER>!", "Hello User!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.Evaluate(tt.input, env); got != tt.want {
				t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvaluateEmptyInput(t *testing.T) {
	eng := newTestEngine(t, nil)

	if got := eng.Evaluate("", testEnv()); got != "" {
		t.Errorf("Evaluate(\"\") = %q, want \"\"", got)
	}
}

func TestEvaluateNoBracesIsIdentity(t *testing.T) {
	eng := newTestEngine(t, nil)

	inputs := []string{
		"plain text",
		"almost { an } invocation",
		"half {open and close}",
		"multi\nline\r\ntext with :: separators",
	}

	for _, input := range inputs {
		if got := eng.Evaluate(input, testEnv()); got != input {
			t.Errorf("Evaluate(%q) = %q, want input unchanged", input, got)
		}
	}
}

func TestEvaluatePreservesSurroundingBytes(t *testing.T) {
	eng := newTestEngine(t, nil)

	got := eng.Evaluate("  left\t{{user}}\tright  ", testEnv())
	want := "  left\tUser\tright  "

	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEvaluateSourceOrder(t *testing.T) {
	eng := newTestEngine(t, nil)

	var order []string

	env := testEnv()
	env.DynamicMacros = map[string]any{
		"first":  func() string { order = append(order, "first"); return "1" },
		"second": func() string { order = append(order, "second"); return "2" },
	}

	if got := eng.Evaluate("{{first}}{{second}}{{first}}", env); got != "121" {
		t.Errorf("got %q, want %q", got, "121")
	}

	want := []string{"first", "second", "first"}
	for i, w := range want {
		if i >= len(order) || order[i] != w {
			t.Fatalf("evaluation order = %v, want %v", order, want)
		}
	}
}

func TestEvaluateInsideOut(t *testing.T) {
	eng := newTestEngine(t, nil)

	// The outer handler must observe the expanded inner value.
	got := eng.Evaluate("{{reverse::ab{{user}}}}", testEnv())

	if got != "resUba" {
		t.Errorf("got %q, want %q", got, "resUba")
	}
}

func TestEvaluateNestedInsideUnterminated(t *testing.T) {
	eng := newTestEngine(t, nil)

	// Nested complete invocations expand even while the enclosing
	// invocation is flattened back to plaintext.
	got := eng.Evaluate("{{broken::{{user}} and {{char}}", testEnv())
	want := "{{broken::User and Character"

	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEvaluateStrictTypeWarning(t *testing.T) {
	var buf bytes.Buffer

	eng := newTestEngine(t, &buf)
	eng.Evaluate("{{test-int-strict::abc}}", testEnv())

	if !strings.Contains(buf.String(), "expected type integer") {
		t.Errorf("log output missing type warning: %s", buf.String())
	}
}

func TestEvaluateSyntaxWarning(t *testing.T) {
	var buf bytes.Buffer

	eng := newTestEngine(t, &buf)
	eng.Evaluate("Test {{ hehe {{user}}", testEnv())

	if !strings.Contains(buf.String(), "syntax") {
		t.Errorf("log output missing syntax warning: %s", buf.String())
	}
}

func TestEvaluateUnknownMacroNotLogged(t *testing.T) {
	var buf bytes.Buffer

	eng := newTestEngine(t, &buf)
	eng.Evaluate("{{definitely-not-registered}}", testEnv())

	if buf.Len() != 0 {
		t.Errorf("unknown macro produced log output: %s", buf.String())
	}
}

func TestEvaluateDynamicMacroOverridesRegistry(t *testing.T) {
	eng := newTestEngine(t, nil)

	env := testEnv()
	env.DynamicMacros = map[string]any{"user": "Override"}

	if got := eng.Evaluate("{{user}}", env); got != "Override" {
		t.Errorf("got %q, want %q", got, "Override")
	}
}

func TestEvaluateDynamicMacroStrictArity(t *testing.T) {
	eng := newTestEngine(t, nil)

	env := testEnv()
	env.DynamicMacros = map[string]any{"dyn": "value"}

	// Dynamic macros have strict zero arity: arguments keep it raw.
	if got := eng.Evaluate("{{dyn::x}}", env); got != "{{dyn::x}}" {
		t.Errorf("got %q, want raw", got)
	}

	if got := eng.Evaluate("{{dyn}}", env); got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
}

func TestEvaluateHandlerRuntimeErrorKeepsRaw(t *testing.T) {
	var buf bytes.Buffer

	eng := newTestEngine(t, &buf)

	env := testEnv()
	env.DynamicMacros = map[string]any{
		"boom": func() (any, error) {
			return nil, RuntimeErrorf("bad user input")
		},
	}

	if got := eng.Evaluate("{{boom}}", env); got != "{{boom}}" {
		t.Errorf("got %q, want raw", got)
	}

	out := buf.String()
	if !strings.Contains(out, "WARN") && !strings.Contains(out, "warn") {
		t.Errorf("runtime error not logged as warning: %s", out)
	}
}

func TestEvaluateHandlerPanicKeepsRaw(t *testing.T) {
	var buf bytes.Buffer

	eng := newTestEngine(t, &buf)

	env := testEnv()
	env.DynamicMacros = map[string]any{
		"crash": func() string { panic("definition bug") },
	}

	if got := eng.Evaluate("before {{crash}} after", env); got != "before {{crash}} after" {
		t.Errorf("got %q, want raw preserved", got)
	}

	out := buf.String()
	if !strings.Contains(out, "ERROR") && !strings.Contains(out, "error") {
		t.Errorf("panic not logged as internal error: %s", out)
	}
}

func TestEvaluateDepthCap(t *testing.T) {
	var buf bytes.Buffer

	rep := NewReporter(log.Make(&buf, testLogOptions()...))
	eng := NewEngine(newTestRegistry(t, io.Discard),
		WithReporter(rep), WithMaxDepth(2))

	input := "{{reverse::{{reverse::{{reverse::abc}}}}}}"
	got := eng.Evaluate(input, testEnv())

	if !strings.Contains(buf.String(), "depth") {
		t.Errorf("depth cap not reported: %s", buf.String())
	}

	// The innermost invocation beyond the cap stays raw; the two outer
	// reversals cancel out.
	if !strings.Contains(got, "{{reverse::abc}}") {
		t.Errorf("got %q, want innermost raw", got)
	}
}

func TestEvaluatePostProcessFunction(t *testing.T) {
	eng := newTestEngine(t, nil)

	env := testEnv()
	env.Functions.PostProcess = strings.ToUpper

	if got := eng.Evaluate("{{user}}", env); got != "USER" {
		t.Errorf("got %q, want %q", got, "USER")
	}
}

func TestEvaluatePostProcessPanicUsesValueUnchanged(t *testing.T) {
	eng := newTestEngine(t, nil)

	env := testEnv()
	env.Functions.PostProcess = func(string) string { panic("post bug") }

	if got := eng.Evaluate("{{user}}", env); got != "User" {
		t.Errorf("got %q, want %q", got, "User")
	}
}

func TestEvaluateUnescapesBraces(t *testing.T) {
	eng := newTestEngine(t, nil)

	got := eng.Evaluate(`\{\{user\}\}`, testEnv())

	if got != "{{user}}" {
		t.Errorf("got %q, want %q", got, "{{user}}")
	}
}

func TestEvaluateLegacyTimeRewrite(t *testing.T) {
	eng := newTestEngine(t, nil)

	env := testEnv()
	env.DynamicMacros = map[string]any{} // no time macro registered

	// The preprocessor rewrite must surface in the preserved raw form.
	got := eng.Evaluate("{{time_UTC+2}}", env)

	if got != "{{time::UTC+2}}" {
		t.Errorf("got %q, want %q", got, "{{time::UTC+2}}")
	}
}

func TestEvaluateIdempotentForPureHandlers(t *testing.T) {
	eng := newTestEngine(t, nil)
	env := testEnv()

	inputs := []string{
		"Hello {{user}} and {{char}}.",
		"{{unknown::{{user}}}} tail",
		"{{reverse::abc}} {{newline}}",
		"plain text without invocations",
	}

	for _, input := range inputs {
		once := eng.Evaluate(input, env)
		twice := eng.Evaluate(once, env)

		if once != twice {
			t.Errorf("input %q: second pass %q differs from first %q",
				input, twice, once)
		}
	}
}

func TestEvaluateRawInnerContainsExpandedValues(t *testing.T) {
	var captured *Call

	env := testEnv()

	reg := newTestRegistry(t, io.Discard)
	if err := reg.Register("capture", Spec{NArgs: 1,
		Handler: func(ctx Ctx) (any, error) {
			captured = ctx.Call

			return "ok", nil
		}}); err != nil {
		t.Fatal(err)
	}

	eng := NewEngine(reg,
		WithReporter(NewReporter(log.Make(io.Discard))))

	got := eng.Evaluate("{{capture::x {{user}} y}}", env)
	if got != "ok" {
		t.Fatalf("got %q, want ok", got)
	}

	if captured == nil {
		t.Fatal("handler not invoked")
	}

	if captured.RawInner != "capture::x User y" {
		t.Errorf("RawInner = %q, want %q", captured.RawInner, "capture::x User y")
	}

	if captured.Raw() != "{{capture::x User y}}" {
		t.Errorf("Raw() = %q", captured.Raw())
	}

	if captured.RawWithBraces != "{{capture::x {{user}} y}}" {
		t.Errorf("RawWithBraces = %q", captured.RawWithBraces)
	}

	if captured.Range.Start != 0 || captured.Range.End != 24 {
		t.Errorf("Range = %+v", captured.Range)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{42, "42"},
		{3.5, "3.5"},
		{true, "true"},
		{[]int{1, 2}, "[1,2]"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
