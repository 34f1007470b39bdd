package macro

import (
	"log/slog"
	"sort"
	"strings"
)

// Resolver computes the value of one invocation. The walker calls it with a
// fully constructed [Call] whose arguments are already expanded inside-out.
type Resolver func(*Call) string

// walker evaluates a Document against a resolver, reconstructing the output
// with byte-exact preservation of all text outside and between invocations.
type walker struct {
	src      []rune
	env      *Env
	resolve  Resolver
	rep      *Reporter
	maxDepth int
}

// document produces the evaluated output for the whole document.
//
// Invocations whose close token is recovery-inserted are flattened: their
// own text re-emerges verbatim through gap preservation while any complete
// nested invocations inside them are hoisted to items and evaluated.
func (w *walker) document(doc *Document) string {
	items := make([]Item, 0, len(doc.Items))

	for _, item := range doc.Items {
		if inv, ok := item.(*Invocation); ok && inv.SyntheticClose {
			for _, complete := range completeInvocations([]*Invocation{inv}) {
				items = append(items, complete)
			}

			continue
		}

		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		si, ei := items[i].Span()
		sj, ej := items[j].Span()

		if si != sj {
			return si < sj
		}

		return ei < ej
	})

	var sb strings.Builder

	cursor := 0

	for _, item := range items {
		start, end := item.Span()

		// Items overlapping already-emitted output are dropped; recovery
		// can produce overlapping ranges.
		if start < cursor {
			continue
		}

		if start > cursor {
			sb.WriteString(sliceRunes(w.src, cursor, start-1))
		}

		switch v := item.(type) {
		case TextRun:
			sb.WriteString(sliceRunes(w.src, start, end))

		case *Invocation:
			sb.WriteString(w.invocation(v, 0))
		}

		cursor = end + 1
	}

	if cursor < len(w.src) {
		sb.WriteString(sliceRunes(w.src, cursor, len(w.src)-1))
	}

	return sb.String()
}

// completeInvocations expands recovery-flattened invocations into the
// well-formed invocations they contain, in source order.
func completeInvocations(nested []*Invocation) []*Invocation {
	out := make([]*Invocation, 0, len(nested))

	for _, inv := range nested {
		if !inv.SyntheticClose {
			out = append(out, inv)

			continue
		}

		for _, arg := range inv.Args {
			out = append(out, completeInvocations(arg.Nested)...)
		}
	}

	return out
}

// invocation evaluates one well-formed invocation: arguments expand first
// (inside-out), the raw inner text is rebuilt around their values, and the
// resolver computes the final string.
func (w *walker) invocation(inv *Invocation, depth int) string {
	rawStart, rawEnd := inv.Span()
	raw := sliceRunes(w.src, rawStart, rawEnd)

	if depth >= w.maxDepth {
		w.rep.RuntimeWarning("maximum macro nesting depth exceeded", nil,
			slog.String("raw", raw),
			slog.Int("depth", depth),
		)

		return raw
	}

	values := make([]string, len(inv.Args))
	for i, arg := range inv.Args {
		values[i] = w.span(arg.Start, arg.End, arg.Nested, depth+1)
	}

	call := &Call{
		Name:          sliceRunes(w.src, inv.Ident.Start, inv.Ident.End),
		Args:          values,
		Env:           w.env,
		RawInner:      w.rawInner(inv, values),
		RawWithBraces: raw,
		Range:         Range{Start: rawStart, End: rawEnd},
		Node:          inv,
	}

	return w.resolve(call)
}

// rawInner reconstructs the invocation body with each argument span
// replaced by its expanded value. Text between argument spans (separators,
// identifier, legacy delimiters, whitespace) is copied verbatim.
func (w *walker) rawInner(inv *Invocation, values []string) string {
	innerStart := inv.Open.End + 1
	innerEnd := inv.Close.Start - 1

	var sb strings.Builder

	cursor := innerStart

	for i, arg := range inv.Args {
		if arg.Start > cursor {
			sb.WriteString(sliceRunes(w.src, cursor, arg.Start-1))
		}

		sb.WriteString(values[i])

		if next := arg.End + 1; next > cursor {
			cursor = next
		}
	}

	if cursor <= innerEnd {
		sb.WriteString(sliceRunes(w.src, cursor, innerEnd))
	}

	return sb.String()
}

// span evaluates an inclusive source range containing the given nested
// invocations: verbatim text around them, expanded values in their place.
// Nested invocations starting before the cursor are dropped (defensive
// against overlapping recovery ranges).
func (w *walker) span(start, end int, nested []*Invocation, depth int) string {
	complete := completeInvocations(nested)

	if len(complete) == 0 {
		return sliceRunes(w.src, start, end)
	}

	var sb strings.Builder

	cursor := start

	for _, inv := range complete {
		s, e := inv.Span()
		if s < cursor {
			continue
		}

		if s > cursor {
			sb.WriteString(sliceRunes(w.src, cursor, s-1))
		}

		sb.WriteString(w.invocation(inv, depth))
		cursor = e + 1
	}

	if cursor <= end {
		sb.WriteString(sliceRunes(w.src, cursor, end))
	}

	return sb.String()
}
