package macro

// Document is the concrete syntax tree of one input: an ordered sequence of
// plaintext runs and invocations, together with the source they index into.
type Document struct {
	Items []Item

	src []rune
}

// Item is a top-level document item: a [TextRun] or an [*Invocation].
type Item interface {
	// Span returns the inclusive rune offsets the item covers.
	Span() (start, end int)
}

// Source returns the input text the document was parsed from.
func (d *Document) Source() string { return string(d.src) }

// Slice returns the source text covered by the inclusive offset range.
// Out-of-range offsets are clamped.
func (d *Document) Slice(start, end int) string {
	return sliceRunes(d.src, start, end)
}

// sliceRunes returns src[start..end] (inclusive), clamped to bounds.
func sliceRunes(src []rune, start, end int) string {
	if start < 0 {
		start = 0
	}

	if end >= len(src) {
		end = len(src) - 1
	}

	if end < start {
		return ""
	}

	return string(src[start : end+1])
}

// TextRun is a plaintext item covering an inclusive offset range.
type TextRun struct {
	Start int
	End   int
}

// Span implements [Item].
func (t TextRun) Span() (int, int) { return t.Start, t.End }

// Invocation is a `{{…}}` span: open delimiter, identifier, optional
// arguments, close delimiter. A missing close delimiter is synthesized by
// the parser (SyntheticClose true) and positioned as an empty token at end
// of input, so the invocation's span extends through everything the parser
// consumed recovering from it.
type Invocation struct {
	Open  Token
	Ident Token
	Args  []*Argument
	Close Token

	// Legacy marks the single-colon / whitespace argument form, which
	// carries exactly one argument.
	Legacy bool

	// SyntheticClose marks a recovery-inserted close token. The walker
	// flattens such invocations back to plaintext.
	SyntheticClose bool
}

// Span implements [Item]. The canonical invocation range runs from the open
// delimiter through the (possibly synthetic) close delimiter.
func (inv *Invocation) Span() (int, int) { return inv.Open.Start, inv.Close.End }

// Argument is one `::`-separated argument subtree: a source range plus the
// nested invocations it contains, in source order. Text between nested
// invocations is addressed through the range rather than stored.
type Argument struct {
	Start  int
	End    int
	Nested []*Invocation
}

// Empty reports whether the argument covers no input.
func (a *Argument) Empty() bool { return a.End < a.Start }
