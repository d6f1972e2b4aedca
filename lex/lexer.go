// This file is part of plc.
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lex turns Perl source into a token stream. It drives a
// text/scanner.Scanner the same way the teacher's asm.parser does,
// plus a hand-rolled one-token-lookbehind state machine for the
// handful of lexical ambiguities Perl has that a generic tokenizer
// cannot resolve on its own (spec.md §4.3).
package lex

import (
	"strings"
	"text/scanner"
)

// Kind enumerates the token kinds named in spec.md §4.3.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Number
	String
	InterpString
	Operator
	Sigil
	Heredoc
	Regex
	Label
	Whitespace
	Newline
	Comment
)

var kindNames = [...]string{
	EOF: "EOF", Identifier: "Identifier", Number: "Number",
	String: "String", InterpString: "InterpString", Operator: "Operator",
	Sigil: "Sigil", Heredoc: "Heredoc", Regex: "Regex", Label: "Label",
	Whitespace: "Whitespace", Newline: "Newline", Comment: "Comment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// StringChunk is one piece of an interpolated string's payload: either
// a literal run or an unparsed variable-reference expression text, per
// spec.md §4.3 ("a mini-stream of literal chunks and variable
// references, consumed by the parser").
type StringChunk struct {
	Literal bool
	Text    string // literal text, or the raw "$foo"/"${...}" source
}

// Token is one lexical unit.
type Token struct {
	Kind Kind
	Pos  scanner.Position
	Text string // raw source text, or operator spelling

	// String/InterpString payload.
	Chunks []StringChunk

	// Heredoc payload: tag, interpolate?, indent-strip ("~TAG" form).
	HeredocTag         string
	HeredocInterpolate bool
	HeredocIndentStrip bool
	HeredocBody        string // filled in once the deferred body is scanned
}

// ErrorList accumulates lex errors the way the teacher's asm.ErrAsm
// does, capped so a badly garbled file doesn't produce unbounded
// diagnostics.
type ErrorList []struct {
	Pos scanner.Position
	Msg string
}

const maxErrors = 10

func (e *ErrorList) add(pos scanner.Position, msg string) {
	if len(*e) >= maxErrors {
		return
	}
	*e = append(*e, struct {
		Pos scanner.Position
		Msg string
	}{pos, msg})
}

func (e ErrorList) Error() string {
	var b strings.Builder
	for _, err := range e {
		b.WriteString(err.Pos.String())
		b.WriteString(": ")
		b.WriteString(err.Msg)
		b.WriteByte('\n')
	}
	return b.String()
}

// exprState tracks the one-token lookbehind state needed to
// disambiguate sigils-vs-operators and `/` (division vs. regex start),
// per spec.md §4.3.
type exprState int

const (
	expectOperand exprState = iota // start of expr: sigil starts a var, / starts a regex
	expectOperator
)

// Lexer produces tokens lazily from src.
type Lexer struct {
	s            scanner.Scanner
	Errs         ErrorList
	state        exprState
	heredocQueue []*Token // deferred bodies awaiting end-of-line
	atLineStart  bool
	pending      *Token // already scanned, returned by the next call to Next
}

func New(src string, filename string) *Lexer {
	l := &Lexer{state: expectOperand, atLineStart: true}
	l.s.Init(strings.NewReader(src))
	l.s.Filename = filename
	l.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanChars | scanner.ScanRawStrings | scanner.ScanComments
	l.s.IsIdentRune = isPerlIdentRune
	l.s.Error = func(_ *scanner.Scanner, msg string) { l.Errs.add(l.s.Pos(), msg) }
	return l
}

// isPerlIdentRune accepts [A-Za-z0-9_], digits only after the first
// rune, matching the shape (not the letter set) of the teacher's
// IsIdentRune override in asm/parser.go. It does not accept ':': only
// scanVariable reads `::`-qualified names, and a bareword directly
// followed by ':' is returned as a Label.
func isPerlIdentRune(ch rune, i int) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') ||
		(i > 0 && '0' <= ch && ch <= '9')
}

// Next returns the next significant token (comments are produced but
// the parser is expected to filter them, per spec.md §4.3; Next itself
// still returns them so tools like --tokenize can show everything).
func (l *Lexer) Next() *Token {
	if tok := l.pending; tok != nil {
		l.pending = nil
		l.state = expectOperand
		return tok
	}
	if len(l.heredocQueue) > 0 && l.atLineEnd() {
		l.resolveHeredocs()
	}

	r := l.s.Scan()
	pos := l.s.Pos()

	switch r {
	case scanner.EOF:
		return &Token{Kind: EOF, Pos: pos}
	case scanner.Ident:
		text := l.s.TokenText()
		l.state = expectOperator
		if l.peekIsColon() {
			return &Token{Kind: Label, Pos: pos, Text: text}
		}
		return &Token{Kind: Identifier, Pos: pos, Text: text}
	case scanner.Int, scanner.Float:
		l.state = expectOperator
		text := l.s.TokenText()
		if r == scanner.Float && strings.HasSuffix(text, ".") && l.s.Peek() == '.' {
			// "1..3": the scanner took the range operator's first dot as
			// a decimal point; keep the integer and queue the "..".
			l.s.Next()
			l.pending = &Token{Kind: Operator, Pos: l.s.Pos(), Text: ".."}
			text = strings.TrimSuffix(text, ".")
		}
		return &Token{Kind: Number, Pos: pos, Text: text}
	case scanner.Comment:
		return &Token{Kind: Comment, Pos: pos, Text: l.s.TokenText()}
	case '$', '@':
		// a variable is a complete term, so an operator must follow
		l.state = expectOperator
		return l.scanVariable(rune(r), pos)
	case '%':
		// sigil-vs-modulo: where a term is expected `%` starts a hash;
		// after a complete term it is the modulo operator unless it is
		// glued to something variable-shaped (`keys %h` arrives here
		// with operator state because `keys` is an identifier token).
		if l.state == expectOperand || isPerlIdentRune(l.s.Peek(), 0) ||
			l.s.Peek() == '{' || l.s.Peek() == '$' {
			l.state = expectOperator
			return l.scanVariable('%', pos)
		}
		l.state = expectOperand
		return &Token{Kind: Operator, Pos: pos, Text: "%"}
	case '/':
		if l.state == expectOperand {
			l.state = expectOperator
			return l.scanRegex(pos)
		}
		l.state = expectOperand
		return &Token{Kind: Operator, Pos: pos, Text: "/"}
	case '"':
		l.state = expectOperator
		return l.scanInterpString(pos, true)
	case '\'':
		l.state = expectOperator
		return l.scanInterpString(pos, false)
	case '<':
		if tok := l.tryHeredoc(pos); tok != nil {
			l.state = expectOperand
			return tok
		}
		l.state = expectOperand
		return l.scanOperator('<', pos)
	case '\n':
		l.atLineStart = true
		return &Token{Kind: Newline, Pos: pos, Text: "\n"}
	default:
		tok := l.scanOperator(r, pos)
		switch tok.Text {
		case ")", "]", "}", "++", "--":
			// a closed group or postfix step ends a term, so the next
			// `/` or `%` is an operator, not a regex or hash start
			l.state = expectOperator
		default:
			l.state = expectOperand
		}
		return tok
	}
}

func (l *Lexer) atLineEnd() bool {
	return l.s.Peek() == '\n' || l.s.Peek() == scanner.EOF
}

func (l *Lexer) peekIsColon() bool {
	return l.s.Peek() == ':'
}

// scanVariable reads the identifier part following a sigil, including
// Perl's `::`-qualified and punctuation-variable forms.
func (l *Lexer) scanVariable(sigil rune, pos scanner.Position) *Token {
	var b strings.Builder
	b.WriteRune(sigil)
	for {
		c := l.s.Peek()
		if c == ':' || isPerlIdentRune(c, 1) || c == '{' {
			if c == '{' {
				break
			}
			b.WriteRune(l.s.Next())
			continue
		}
		break
	}
	if b.Len() == 1 {
		// punctuation variable: $_, $@, $!, $1, $$, etc. — consume one
		// more rune verbatim.
		c := l.s.Next()
		b.WriteRune(c)
	}
	return &Token{Kind: Sigil, Pos: pos, Text: b.String()}
}

// scanRegex consumes a `/pattern/flags` literal verbatim; the body is
// not interpreted by the lexer (spec.md §4.3: interpolation is parser
// work).
func (l *Lexer) scanRegex(pos scanner.Position) *Token {
	var b strings.Builder
	for {
		c := l.s.Next()
		if c == scanner.EOF {
			l.Errs.add(pos, "unterminated regex literal")
			break
		}
		if c == '\\' {
			b.WriteRune(c)
			b.WriteRune(l.s.Next())
			continue
		}
		if c == '/' {
			break
		}
		b.WriteRune(c)
	}
	for isPerlIdentRune(l.s.Peek(), 1) {
		b.WriteRune(l.s.Next())
	}
	return &Token{Kind: Regex, Pos: pos, Text: b.String()}
}

// scanInterpString implements spec.md §4.3: the lexer does not expand
// interpolation, it emits literal/var-ref chunks for the parser.
func (l *Lexer) scanInterpString(pos scanner.Position, interpolate bool) *Token {
	quote := '"'
	if !interpolate {
		quote = '\''
	}
	var chunks []StringChunk
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			chunks = append(chunks, StringChunk{Literal: true, Text: lit.String()})
			lit.Reset()
		}
	}
	for {
		c := l.s.Next()
		if c == scanner.EOF {
			l.Errs.add(pos, "unterminated string")
			break
		}
		if c == quote {
			break
		}
		if c == '\\' {
			lit.WriteRune(c)
			lit.WriteRune(l.s.Next())
			continue
		}
		if interpolate && (c == '$' || c == '@') {
			flush()
			var v strings.Builder
			v.WriteRune(c)
			colon := false // a lone ':' ended the name and is literal text
			if l.s.Peek() == '{' {
				v.WriteRune(l.s.Next())
				depth := 1
				for depth > 0 {
					n := l.s.Next()
					if n == scanner.EOF {
						break
					}
					v.WriteRune(n)
					if n == '{' {
						depth++
					} else if n == '}' {
						depth--
					}
				}
			} else {
				for isPerlIdentRune(l.s.Peek(), 1) || l.s.Peek() == ':' {
					r := l.s.Next()
					if r == ':' && l.s.Peek() != ':' {
						colon = true
						break
					}
					v.WriteRune(r)
					if r == ':' {
						v.WriteRune(l.s.Next())
					}
				}
				if v.Len() == 1 && c == '$' && !colon && isPunctVarRune(l.s.Peek()) {
					v.WriteRune(l.s.Next())
				}
				if v.Len() == 1 {
					// lone sigil with nothing variable-like after it:
					// it's just a literal character.
					lit.WriteRune(c)
					if colon {
						lit.WriteRune(':')
					}
					continue
				}
				for !colon && (l.s.Peek() == '[' || l.s.Peek() == '{') {
					open, close := l.s.Peek(), closeFor(l.s.Peek())
					v.WriteRune(l.s.Next())
					_ = open
					depth := 1
					for depth > 0 {
						n := l.s.Next()
						if n == scanner.EOF {
							break
						}
						v.WriteRune(n)
						if n == rune(close) {
							depth--
						}
					}
				}
			}
			chunks = append(chunks, StringChunk{Literal: false, Text: v.String()})
			if colon {
				lit.WriteRune(':')
			}
			continue
		}
		lit.WriteRune(c)
	}
	flush()
	kind := String
	if interpolate {
		kind = InterpString
	}
	return &Token{Kind: kind, Pos: pos, Chunks: chunks}
}

// isPunctVarRune limits which characters form a punctuation variable
// inside an interpolated string ("$@" and "$!" interpolate, "100$ "
// stays literal).
func isPunctVarRune(ch rune) bool {
	switch ch {
	case '@', '!', '&', ';', '/', '\\', ',', '.', '0':
		return true
	}
	return false
}

func closeFor(open rune) rune {
	if open == '[' {
		return ']'
	}
	return '}'
}

// tryHeredoc recognizes `<<TAG`, `<<"TAG"`, `<<'TAG'`, `<<~TAG` at the
// point `<` was already consumed once; it peeks for a second `<`.
func (l *Lexer) tryHeredoc(pos scanner.Position) *Token {
	if l.s.Peek() != '<' {
		return nil
	}
	l.s.Next() // consume second '<'
	indentStrip := false
	if l.s.Peek() == '~' {
		indentStrip = true
		l.s.Next()
	}
	interpolate := true
	var tag strings.Builder
	switch l.s.Peek() {
	case '"':
		l.s.Next()
		for l.s.Peek() != '"' && l.s.Peek() != scanner.EOF {
			tag.WriteRune(l.s.Next())
		}
		l.s.Next()
	case '\'':
		interpolate = false
		l.s.Next()
		for l.s.Peek() != '\'' && l.s.Peek() != scanner.EOF {
			tag.WriteRune(l.s.Next())
		}
		l.s.Next()
	default:
		for isPerlIdentRune(l.s.Peek(), 1) {
			tag.WriteRune(l.s.Next())
		}
	}
	if tag.Len() == 0 {
		// "<<" with no tag is the left-shift operator; both '<' runes
		// are already consumed at this point.
		return &Token{Kind: Operator, Pos: pos, Text: "<<"}
	}
	tok := &Token{
		Kind: Heredoc, Pos: pos, HeredocTag: tag.String(),
		HeredocInterpolate: interpolate, HeredocIndentStrip: indentStrip,
	}
	l.heredocQueue = append(l.heredocQueue, tok)
	return tok
}

// resolveHeredocs scans the deferred bodies once the current logical
// line ends (spec.md §4.3).
func (l *Lexer) resolveHeredocs() {
	queue := l.heredocQueue
	l.heredocQueue = nil
	for _, tok := range queue {
		var lines []string
		for {
			line := l.scanRawLine()
			trimmed := strings.TrimRight(line, "\r")
			if strings.TrimSpace(trimmed) == tok.HeredocTag {
				break
			}
			if line == "" && l.s.Peek() == scanner.EOF {
				l.Errs.add(tok.Pos, "unterminated heredoc: "+tok.HeredocTag)
				break
			}
			lines = append(lines, trimmed)
		}
		if tok.HeredocIndentStrip {
			lines = stripCommonIndent(lines)
		}
		tok.HeredocBody = strings.Join(lines, "\n")
		if len(lines) > 0 {
			tok.HeredocBody += "\n"
		}
	}
}

func (l *Lexer) scanRawLine() string {
	var b strings.Builder
	for {
		c := l.s.Next()
		if c == scanner.EOF || c == '\n' {
			break
		}
		b.WriteRune(c)
	}
	return b.String()
}

func stripCommonIndent(lines []string) []string {
	min := -1
	for _, ln := range lines {
		trimmed := strings.TrimLeft(ln, " \t")
		indent := len(ln) - len(trimmed)
		if trimmed == "" {
			continue
		}
		if min == -1 || indent < min {
			min = indent
		}
	}
	if min <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, ln := range lines {
		if len(ln) >= min {
			out[i] = ln[min:]
		} else {
			out[i] = strings.TrimLeft(ln, " \t")
		}
	}
	return out
}

// two-character operators, checked against a single rune of lookahead
// (text/scanner.Scanner.Peek only buffers one rune, so three-character
// compound-assignment forms like `**=` are tokenized as two operators,
// `**` then `=`, which the parser's assignment-folding handles the
// same way it already must handle `x=`).
var twoCharOps = map[string]bool{
	"->": true, "=>": true, "==": true, "!=": true, "<=": true, ">=": true,
	"&&": true, "||": true, "//": true, "**": true, "++": true, "--": true,
	"+=": true, "-=": true, "*=": true, "/=": true, ".=": true, "%=": true,
	"=~": true, "!~": true, "..": true, "::": true, "<<": true, ">>": true,
}

func (l *Lexer) scanOperator(first rune, pos scanner.Position) *Token {
	cand := string(first) + string(l.s.Peek())
	if twoCharOps[cand] {
		l.s.Next()
		// <=> is the one three-character operator worth the extra
		// lookahead since <= and => are both meaningful prefixes of it.
		if cand == "<=" && l.s.Peek() == '>' {
			l.s.Next()
			return &Token{Kind: Operator, Pos: pos, Text: "<=>"}
		}
		return &Token{Kind: Operator, Pos: pos, Text: cand}
	}
	return &Token{Kind: Operator, Pos: pos, Text: string(first)}
}
