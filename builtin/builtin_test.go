package builtin

import (
	"io"
	"testing"
	"time"

	"github.com/chatframe/mex/log"
	"github.com/chatframe/mex/macro"
)

// fixedNow is a stable time source for deterministic expansions.
func fixedNow() time.Time {
	return time.Date(2024, time.March, 9, 15, 30, 45, 0, time.UTC)
}

// sequenceIntN returns 0, 1, 2, ... modulo n for reproducible rolls.
func sequenceIntN() func(int) int {
	i := 0

	return func(n int) int {
		v := i % n
		i++

		return v
	}
}

func newTestEngine(t *testing.T, opts ...Option) *macro.Engine {
	t.Helper()

	rep := macro.NewReporter(log.Make(io.Discard))
	reg := macro.NewRegistry(macro.WithRegistryReporter(rep))

	opts = append([]Option{WithNow(fixedNow), WithIntN(sequenceIntN())}, opts...)

	if err := Register(reg, opts...); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	return macro.NewEngine(reg, macro.WithReporter(rep))
}

func soloEnv() *macro.Env {
	return macro.NewBuilder(
		macro.WithBuilderReporter(macro.NewReporter(log.Make(io.Discard))),
	).Build(macro.RawEnv{
		Name1: "User",
		Name2: "Character",
		Model: "gpt-test",
	})
}

func TestRegisterInstallsCleanly(t *testing.T) {
	rep := macro.NewReporter(log.Make(io.Discard))
	reg := macro.NewRegistry(macro.WithRegistryReporter(rep))

	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, name := range []string{
		"user", "char", "bot", "group", "groupNotMuted", "notChar",
		"charIfNotGroup", "model", "newline", "noop", "trim", "original",
		"//", "comment", "reverse", "upper", "lower", "length",
		"time", "date", "weekday", "isotime", "isodate",
		"roll", "random", "setvar", "getvar", "addvar", "incvar", "decvar",
		"calc",
	} {
		if !reg.Has(name) {
			t.Errorf("macro %q not installed", name)
		}
	}
}

func TestNameMacros(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	tests := []struct {
		input string
		want  string
	}{
		{"{{user}}", "User"},
		{"{{char}}", "Character"},
		{"{{bot}}", "Character"},
		{"{{group}}", "Character"},
		{"{{charIfNotGroup}}", "Character"},
		{"{{model}}", "gpt-test"},
		{"Hello <USER>, I am <CHAR>.", "Hello User, I am Character."},
	}

	for _, tt := range tests {
		if got := eng.Evaluate(tt.input, env); got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStructureMacros(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	tests := []struct {
		input string
		want  string
	}{
		{"a{{newline}}b", "a\nb"},
		{"a{{newline::3}}b", "a\n\n\nb"},
		{"a{{noop}}b", "ab"},
		{"foo\n\n{{trim}}\n\nbar", "foobar"},
		{"{{//any // garbage}}X", "X"},
		{"{{comment this is ignored}}done", "done"},
		{"{{// nested {{user}} still consumed}}!", "!"},
	}

	for _, tt := range tests {
		if got := eng.Evaluate(tt.input, env); got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStringMacros(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	tests := []struct {
		input string
		want  string
	}{
		{"{{reverse::abc}}", "cba"},
		{"{{reverse::{{user}}}}", "resU"},
		{"{{upper::mixed Case}}", "MIXED CASE"},
		{"{{lower::MIXED Case}}", "mixed case"},
		{"{{length::héllo}}", "5"},
	}

	for _, tt := range tests {
		if got := eng.Evaluate(tt.input, env); got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTimeMacros(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	tests := []struct {
		input string
		want  string
	}{
		{"{{time}}", "3:30PM"},
		{"{{time::UTC+2}}", "5:30PM"},
		{"{{time::UTC-3}}", "12:30PM"},
		{"{{time_UTC+2}}", "5:30PM"},
		{"{{date}}", "March 9, 2024"},
		{"{{weekday}}", "Saturday"},
		{"{{isotime}}", "15:30:45"},
		{"{{isodate}}", "2024-03-09"},
	}

	for _, tt := range tests {
		if got := eng.Evaluate(tt.input, env); got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTimeInvalidOffsetKeepsRaw(t *testing.T) {
	eng := newTestEngine(t)

	got := eng.Evaluate("{{time::PST}}", soloEnv())
	if got != "{{time::PST}}" {
		t.Errorf("got %q, want raw preserved", got)
	}
}

func TestRollMacro(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	// The sequenced source yields 0,1,2,... so rolls are predictable.
	tests := []struct {
		input string
		want  string
	}{
		{"{{roll::1d20}}", "1"},
		{"{{roll::2d6}}", "5"},   // (1+1) + (2+1)
		{"{{roll::d4+10}}", "14"}, // 3+1 then +10
	}

	for _, tt := range tests {
		if got := eng.Evaluate(tt.input, env); got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRollLegacyWhitespaceForm(t *testing.T) {
	eng := newTestEngine(t)

	if got := eng.Evaluate("{{roll 1d20}}", soloEnv()); got != "1" {
		t.Errorf("got %q, want %q", got, "1")
	}
}

func TestRollInvalidFormulaKeepsRaw(t *testing.T) {
	eng := newTestEngine(t)

	got := eng.Evaluate("{{roll::banana}}", soloEnv())
	if got != "{{roll::banana}}" {
		t.Errorf("got %q, want raw preserved", got)
	}
}

func TestRandomMacro(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	// Sequenced source: first pick is index 0, second is index 1.
	if got := eng.Evaluate("{{random::a::b::c}}", env); got != "a" {
		t.Errorf("first pick = %q, want %q", got, "a")
	}

	if got := eng.Evaluate("{{random::a::b::c}}", env); got != "b" {
		t.Errorf("second pick = %q, want %q", got, "b")
	}
}

func TestVariableMacros(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	input := "A {{setvar::test::4}}{{getvar::test}} B {{setvar::test::2}}{{getvar::test}} C"
	if got := eng.Evaluate(input, env); got != "A 4 B 2 C" {
		t.Errorf("got %q, want %q", got, "A 4 B 2 C")
	}

	if got := eng.Evaluate("{{getvar::unset}}", env); got != "" {
		t.Errorf("unset variable = %q, want empty", got)
	}
}

func TestVariableArithmetic(t *testing.T) {
	store := NewMemStore()
	eng := newTestEngine(t, WithStore(store))
	env := soloEnv()

	eng.Evaluate("{{setvar::hp::10}}", env)

	if got := eng.Evaluate("{{addvar::hp::5}}", env); got != "" {
		t.Errorf("addvar output = %q, want empty", got)
	}

	if v, _ := store.Get("hp"); v != "15" {
		t.Errorf("hp = %q, want %q", v, "15")
	}

	if got := eng.Evaluate("{{incvar::hp}}", env); got != "16" {
		t.Errorf("incvar = %q, want %q", got, "16")
	}

	if got := eng.Evaluate("{{decvar::hp}}", env); got != "15" {
		t.Errorf("decvar = %q, want %q", got, "15")
	}

	// Counters may start from nothing.
	if got := eng.Evaluate("{{incvar::fresh}}", env); got != "1" {
		t.Errorf("incvar on unset = %q, want %q", got, "1")
	}
}

func TestVariableStrictArity(t *testing.T) {
	eng := newTestEngine(t)

	got := eng.Evaluate("{{setvar::only-name}}", soloEnv())
	if got != "{{setvar::only-name}}" {
		t.Errorf("got %q, want raw preserved", got)
	}
}

func TestCalcMacro(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	tests := []struct {
		input string
		want  string
	}{
		{"{{calc::1 + 2}}", "3"},
		{"{{calc::(2 + 3) * 4}}", "20"},
		{"{{calc::floor(7.9)}}", "7"},
		{"{{calc::max(3.0, 9.0)}}", "9"},
	}

	for _, tt := range tests {
		if got := eng.Evaluate(tt.input, env); got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCalcWithNestedVariable(t *testing.T) {
	eng := newTestEngine(t)
	env := soloEnv()

	eng.Evaluate("{{setvar::hp::12}}", env)

	if got := eng.Evaluate("{{calc::{{getvar::hp}} - 7}}", env); got != "5" {
		t.Errorf("got %q, want %q", got, "5")
	}
}

func TestCalcBadExpressionKeepsRaw(t *testing.T) {
	eng := newTestEngine(t)

	got := eng.Evaluate("{{calc::1 +}}", soloEnv())
	if got != "{{calc::1 +}}" {
		t.Errorf("got %q, want raw preserved", got)
	}
}

func TestOriginalMacroOneShot(t *testing.T) {
	eng := newTestEngine(t)

	original := "the original"

	env := macro.NewBuilder(
		macro.WithBuilderReporter(macro.NewReporter(log.Make(io.Discard))),
	).Build(macro.RawEnv{Original: &original})

	got := eng.Evaluate("{{original}}|{{original}}", env)
	if got != "the original|" {
		t.Errorf("got %q, want %q", got, "the original|")
	}
}
