package repl

import (
	"testing"
)

func testCompleter() *completer {
	return &completer{names: []string{
		"user", "char", "charIfNotGroup", "newline", "getvar", "setvar",
	}}
}

func TestCompleteRequiresOpenDelimiter(t *testing.T) {
	c := testCompleter()

	// No {{ before the word: nothing to complete.
	if got := c.complete("use", 3); got != nil {
		t.Errorf("completions = %v, want none", got)
	}

	if got := c.complete("{use", 4); got != nil {
		t.Errorf("completions after single brace = %v, want none", got)
	}
}

func TestCompletePartialName(t *testing.T) {
	c := testCompleter()

	got := c.complete("say {{cha", 9)
	if len(got) == 0 {
		t.Fatal("no completions for {{cha")
	}

	if got[0].Name != "char" && got[0].Name != "charIfNotGroup" {
		t.Errorf("top completion = %q, want a char match", got[0].Name)
	}

	if got[0].Start != 6 || got[0].End != 9 {
		t.Errorf("bounds = [%d,%d], want [6,9]", got[0].Start, got[0].End)
	}
}

func TestCompleteEmptyPartialListsAll(t *testing.T) {
	c := testCompleter()

	got := c.complete("{{", 2)
	if len(got) != len(c.names) {
		t.Errorf("completion count = %d, want %d", len(got), len(c.names))
	}
}

func TestCompleteFuzzyMatch(t *testing.T) {
	c := testCompleter()

	got := c.complete("{{gvar", 6)

	found := false

	for _, comp := range got {
		if comp.Name == "getvar" {
			found = true
		}
	}

	if !found {
		t.Errorf("fuzzy completions %v missing getvar", got)
	}
}

func TestCompleteCursorMidLine(t *testing.T) {
	c := testCompleter()

	// Cursor inside the word, trailing text after it.
	input := "{{newl}} tail"

	got := c.complete(input, 6)
	if len(got) == 0 || got[0].Name != "newline" {
		t.Fatalf("completions = %v, want newline first", got)
	}

	if got[0].Start != 2 || got[0].End != 6 {
		t.Errorf("bounds = [%d,%d], want [2,6]", got[0].Start, got[0].End)
	}
}
