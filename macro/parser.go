package macro

// Parse lexes and parses input into a Document. It never fails: malformed
// fragments are recovered with synthetic close tokens (flattened back to
// plaintext by the walker) and every problem is reported in the returned
// issue list.
func Parse(input string) (*Document, []Issue) {
	src := []rune(input)
	tokens, issues := lex(src)

	p := &parser{
		src:    src,
		tokens: tokens,
		issues: issues,
	}

	doc := p.parseDocument()

	return doc, p.issues
}

// parser consumes the token stream produced by the lexer.
type parser struct {
	src    []rune
	tokens []Token
	pos    int
	issues []Issue
}

func (p *parser) eof() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() Token {
	if p.eof() {
		return Token{Kind: KindText, Start: len(p.src), End: len(p.src) - 1}
	}

	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.peek()
	p.pos++

	return tok
}

// offset returns the input offset of the next unconsumed token, or end of
// input when the stream is exhausted.
func (p *parser) offset() int {
	if p.eof() {
		return len(p.src)
	}

	return p.tokens[p.pos].Start
}

// parseDocument parses: document := (plaintext | invocation)*.
func (p *parser) parseDocument() *Document {
	doc := &Document{src: p.src}

	for !p.eof() {
		tok := p.peek()

		switch tok.Kind {
		case KindOpen:
			doc.Items = append(doc.Items, p.parseInvocation())

		case KindText:
			p.next()
			doc.Items = append(doc.Items, TextRun{Start: tok.Start, End: tok.End})

		default:
			// The lexer only emits CLOSE, SEP, and IDENT inside an
			// invocation; anything else here is treated as plaintext.
			p.next()
			doc.Items = append(doc.Items, TextRun{Start: tok.Start, End: tok.End})
		}
	}

	return doc
}

// parseInvocation parses: invocation := OPEN IDENT (SEP argument)* CLOSE,
// plus the legacy single-argument forms `{{name:arg}}` and `{{name arg}}`.
// A missing CLOSE is synthesized at end of input.
func (p *parser) parseInvocation() *Invocation {
	inv := &Invocation{Open: p.next()}

	// The lexer always emits an identifier token (possibly empty) after an
	// open delimiter.
	if p.peek().Kind == KindIdent {
		inv.Ident = p.next()
	} else {
		inv.Ident = Token{Kind: KindIdent, Start: p.offset(), End: p.offset() - 1}
	}

	switch p.peek().Kind {
	case KindSep:
		for p.peek().Kind == KindSep {
			p.next()
			inv.Args = append(inv.Args, p.parseArgument(p.offset(), false))
		}

	case KindText, KindOpen:
		inv.Legacy = true
		inv.Args = append(inv.Args, p.parseArgument(p.legacyArgStart(), true))
	}

	if p.peek().Kind == KindClose {
		inv.Close = p.next()

		return inv
	}

	// Recovery: synthesize an empty close token at end of input and record
	// the issue. The walker flattens this invocation back to plaintext.
	inv.Close = Token{Kind: KindClose, Start: len(p.src), End: len(p.src) - 1}
	inv.SyntheticClose = true

	line, col := position(p.src, inv.Open.Start)
	p.issues = append(p.issues, Issue{
		Message: "missing close delimiter",
		Line:    line,
		Column:  col,
		Length:  inv.Open.Len(),
		Start:   inv.Open.Start,
		End:     inv.Open.End,
	})

	return inv
}

// legacyArgStart returns the offset where a legacy argument begins. The
// single `:` delimiter, or exactly one whitespace rune, is excluded from the
// argument payload; any other leading rune belongs to it.
func (p *parser) legacyArgStart() int {
	start := p.offset()

	if p.peek().Kind != KindText || start >= len(p.src) {
		return start
	}

	if r := p.src[start]; r == ':' || isSpace(r) {
		return start + 1
	}

	return start
}

// parseArgument parses: argument := (argText | invocation)*. In legacy mode
// SEP tokens are payload rather than delimiters, so the invocation carries
// exactly one argument.
func (p *parser) parseArgument(start int, legacy bool) *Argument {
	arg := &Argument{Start: start, End: start - 1}

	for !p.eof() {
		tok := p.peek()

		switch tok.Kind {
		case KindClose:
			return arg

		case KindSep:
			if !legacy {
				return arg
			}

			p.next()
			arg.End = tok.End

		case KindOpen:
			nested := p.parseInvocation()
			arg.Nested = append(arg.Nested, nested)
			_, end := nested.Span()
			arg.End = end

		default:
			p.next()

			if tok.End > arg.End {
				arg.End = tok.End
			}
		}
	}

	return arg
}
