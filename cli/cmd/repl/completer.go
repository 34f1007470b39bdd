// Package repl implements the interactive macro playground.
package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// maxSuggestions caps how many completion candidates are surfaced.
const maxSuggestions = 8

// completer suggests macro names for the invocation being typed.
type completer struct {
	names []string
}

// completion is one applicable suggestion: replacing input[start:end] with
// Name completes the invocation identifier under the cursor.
type completion struct {
	Name  string
	Start int
	End   int
}

// isNameRune reports whether r may appear in a macro identifier.
func isNameRune(r rune) bool {
	return r == '_' || r == '/' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// wordAt returns the partial identifier ending at the cursor together with
// its byte boundaries. The word must be immediately preceded by an open
// delimiter `{{` for completion to apply.
func (c *completer) wordAt(input string, cursor int) (string, int, int, bool) {
	if cursor > len(input) {
		cursor = len(input)
	}

	start := cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isNameRune(r) {
			break
		}

		start -= size
	}

	if !strings.HasSuffix(input[:start], "{{") {
		return "", 0, 0, false
	}

	return input[start:cursor], start, cursor, true
}

// complete returns suggestions for the identifier under the cursor, ranked
// by fuzzy match quality. An empty partial lists macro names in their given
// order. At most maxSuggestions candidates are returned.
func (c *completer) complete(input string, cursor int) []completion {
	word, start, end, ok := c.wordAt(input, cursor)
	if !ok {
		return nil
	}

	if word == "" {
		out := make([]completion, 0, maxSuggestions)

		for _, name := range c.names {
			if len(out) == maxSuggestions {
				break
			}

			out = append(out, completion{Name: name, Start: start, End: end})
		}

		return out
	}

	matches := fuzzy.Find(word, c.names)

	out := make([]completion, 0, maxSuggestions)

	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}

		out = append(out, completion{Name: m.Str, Start: start, End: end})
	}

	return out
}
