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

package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/perl-plc/plc/ast"
	"github.com/perl-plc/plc/lex"
	"github.com/pkg/errors"
)

// ErrorList mirrors lex.ErrorList's accumulate-and-cap behaviour
// (spec.md §4.4: parse errors are collected, not fatal on first hit).
type ErrorList []error

const maxParseErrors = 20

func (e *ErrorList) add(format string, args ...interface{}) {
	if len(*e) >= maxParseErrors {
		return
	}
	*e = append(*e, errors.Errorf(format, args...))
}

func (e ErrorList) Error() string {
	var b strings.Builder
	for _, err := range e {
		b.WriteString(err.Error())
		b.WriteByte('\n')
	}
	return b.String()
}

// Parser builds an *ast.Node tree from a lexer's token stream.
type Parser struct {
	s    *stream
	errs ErrorList
	tok  int // monotonically increasing node source-token index
}

func New(lx *lex.Lexer) *Parser {
	return &Parser{s: newStream(lx)}
}

func (p *Parser) Errors() ErrorList { return p.errs }

func (p *Parser) nextTok() int {
	p.tok++
	return p.tok
}

func (p *Parser) errorf(format string, args ...interface{}) {
	t := p.s.peek()
	msg := fmt.Sprintf(format, args...)
	p.errs.add("%s: %s", t.Pos.String(), msg)
}

// Parse parses an entire compilation unit into an OpProgram node, the
// parser's single entry point (spec.md §4.4).
func Parse(lx *lex.Lexer) (*ast.Node, error) {
	p := New(lx)
	prog := ast.New(ast.OpProgram, p.nextTok())
	for p.s.peek().Kind != lex.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Children = append(prog.Children, stmt)
		}
	}
	AnalyzeLvalues(prog)
	if len(p.errs) > 0 {
		return prog, p.errs
	}
	return prog, nil
}

// --- statements --------------------------------------------------------

func (p *Parser) parseStatement() *ast.Node {
	t := p.s.peek()

	if t.Kind == lex.Label {
		labelTok := p.s.next()
		p.expectOperatorText(":")
		label := ast.New(ast.OpLabel, p.nextTok())
		label.Name = labelTok.Text
		stmt := p.parseStatement()
		if stmt != nil {
			label.Children = append(label.Children, stmt)
		}
		return label
	}

	if t.Kind == lex.Identifier {
		switch t.Text {
		case "if":
			return p.parseIf(false)
		case "unless":
			return p.parseIf(true)
		case "while":
			return p.parseWhile(false)
		case "until":
			return p.parseWhile(true)
		case "for", "foreach":
			return p.parseFor()
		case "sub":
			if p.s.peekN(1).Kind == lex.Identifier {
				return p.parseSubDecl()
			}
		case "package":
			return p.parsePackage()
		case "use", "no":
			return p.parseUse()
		case "last", "next", "redo":
			return p.parseLoopControl(t.Text)
		case "return":
			return p.parseReturn()
		case "goto":
			return p.parseGoto()
		case "local", "my", "our", "state":
			// fall through to expression statement: declarations are
			// also valid expressions (e.g. `my $x = 1 if $cond;`).
		}
	}

	if t.Kind == lex.Operator && t.Text == "{" {
		if p.braceLooksLikeHash() {
			return p.parseExprStatement()
		}
		return p.parseBlockStatement()
	}

	return p.parseExprStatement()
}

// braceLooksLikeHash implements the statement-position `{ ... }`
// ambiguity rule (spec.md §4.4): a block, unless a lookahead inside
// sees `,` or `=>` before the matching `}` with no intervening `;`.
func (p *Parser) braceLooksLikeHash() bool {
	depth := 0
	for i := 0; ; i++ {
		t := p.s.peekN(i)
		if t.Kind == lex.EOF {
			return false
		}
		if t.Kind != lex.Operator {
			continue
		}
		switch t.Text {
		case "{", "(", "[":
			depth++
		case ")", "]":
			depth--
		case "}":
			depth--
			if depth == 0 {
				return false
			}
		case ";":
			if depth == 1 {
				return false
			}
		case ",", "=>":
			if depth == 1 {
				return true
			}
		}
	}
}

func (p *Parser) parseBlockStatement() *ast.Node {
	block := p.parseBlock()
	return block
}

func (p *Parser) parseBlock() *ast.Node {
	p.expectOperatorText("{")
	block := ast.New(ast.OpBlock, p.nextTok())
	for {
		t := p.s.peek()
		if t.Kind == lex.EOF {
			p.errorf("unexpected end of input, expected '}'")
			break
		}
		if t.Kind == lex.Operator && t.Text == "}" {
			p.s.next()
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Children = append(block.Children, stmt)
		}
	}
	return block
}

func (p *Parser) parseExprStatement() *ast.Node {
	expr := p.parseExpr(0)
	stmt := ast.New(ast.OpExprStmt, p.nextTok(), expr)
	return p.applyStatementModifier(stmt)
}

// applyStatementModifier handles the trailing `EXPR if COND` family
// (spec.md §4.4: "statement modifiers bind to the full expression to
// their left"); it applies to any simple statement, including return
// and loop controls. The wrapped statement becomes a one-statement
// block so the emitter's block handling applies uniformly.
func (p *Parser) applyStatementModifier(stmt *ast.Node) *ast.Node {
	if t := p.s.peek(); t.Kind == lex.Identifier {
		body := ast.New(ast.OpBlock, stmt.Tok, stmt)
		switch t.Text {
		case "if":
			p.s.next()
			cond := p.parseExpr(0)
			p.consumeSemicolons()
			return ast.New(ast.OpIf, stmt.Tok, cond, body)
		case "unless":
			p.s.next()
			cond := p.parseExpr(0)
			p.consumeSemicolons()
			return ast.New(ast.OpUnless, stmt.Tok, cond, body)
		case "while":
			p.s.next()
			cond := p.parseExpr(0)
			p.consumeSemicolons()
			return ast.New(ast.OpWhile, stmt.Tok, cond, body)
		case "until":
			p.s.next()
			cond := p.parseExpr(0)
			p.consumeSemicolons()
			return ast.New(ast.OpUntil, stmt.Tok, cond, body)
		case "for", "foreach":
			p.s.next()
			list := p.parseExpr(0)
			p.consumeSemicolons()
			return ast.New(ast.OpForeach, stmt.Tok, list, body)
		}
	}
	p.consumeSemicolons()
	return stmt
}

func (p *Parser) consumeSemicolons() {
	for p.s.peek().Kind == lex.Operator && p.s.peek().Text == ";" {
		p.s.next()
	}
}

func (p *Parser) expectOperatorText(text string) bool {
	t := p.s.peek()
	if t.Kind == lex.Operator && t.Text == text {
		p.s.next()
		return true
	}
	p.errorf("expected %q, got %q", text, t.Text)
	return false
}

func (p *Parser) parseIf(negate bool) *ast.Node {
	tok := p.nextTok()
	p.s.next() // if/unless
	p.expectOperatorText("(")
	cond := p.parseExpr(0)
	p.expectOperatorText(")")
	then := p.parseBlock()
	op := ast.OpIf
	if negate {
		op = ast.OpUnless
	}
	node := ast.New(op, tok, cond, then)
	for {
		t := p.s.peek()
		if t.Kind == lex.Identifier && t.Text == "elsif" {
			p.s.next()
			p.expectOperatorText("(")
			elCond := p.parseExpr(0)
			p.expectOperatorText(")")
			elThen := p.parseBlock()
			node.Children = append(node.Children, elCond, elThen)
			continue
		}
		if t.Kind == lex.Identifier && t.Text == "else" {
			p.s.next()
			elseBlock := p.parseBlock()
			node.Children = append(node.Children, elseBlock)
		}
		break
	}
	return node
}

func (p *Parser) parseWhile(negate bool) *ast.Node {
	tok := p.nextTok()
	p.s.next() // while/until
	p.expectOperatorText("(")
	cond := p.parseExpr(0)
	p.expectOperatorText(")")
	body := p.parseBlock()
	op := ast.OpWhile
	if negate {
		op = ast.OpUntil
	}
	return ast.New(op, tok, cond, body)
}

// parseFor handles both `for (INIT; COND; STEP) BLOCK` and
// `foreach my $x (LIST) BLOCK` (spec.md §4.4's two for-loop forms).
func (p *Parser) parseFor() *ast.Node {
	tok := p.nextTok()
	p.s.next() // for/foreach
	var loopVar *ast.Node
	if t := p.s.peek(); t.Kind == lex.Identifier && (t.Text == "my" || t.Text == "our") {
		kindTok := p.s.next().Text
		v := p.parsePrimary()
		if kindTok == "my" {
			decl := ast.New(ast.OpMy, v.Tok, v)
			loopVar = decl
		} else {
			decl := ast.New(ast.OpOur, v.Tok, v)
			loopVar = decl
		}
	} else if t.Kind == lex.Sigil {
		loopVar = p.parsePrimary()
	}

	p.expectOperatorText("(")
	if loopVar == nil && p.looksLikeCStyleFor() {
		init := p.parseExprOrEmpty()
		p.expectOperatorText(";")
		cond := p.parseExprOrEmpty()
		p.expectOperatorText(";")
		step := p.parseExprOrEmpty()
		p.expectOperatorText(")")
		body := p.parseBlock()
		return ast.New(ast.OpForC, tok, init, cond, step, body)
	}
	list := p.parseExpr(0)
	p.expectOperatorText(")")
	body := p.parseBlock()
	node := ast.New(ast.OpForeach, tok, list, body)
	if loopVar != nil {
		node.Children = append([]*ast.Node{loopVar}, node.Children...)
	}
	return node
}

// looksLikeCStyleFor distinguishes `for (;;)` from `for (LIST)` by
// scanning ahead for a bare top-level `;` before the matching `)`.
func (p *Parser) looksLikeCStyleFor() bool {
	depth := 0
	for i := 0; ; i++ {
		t := p.s.peekN(i)
		if t.Kind == lex.EOF {
			return false
		}
		if t.Kind == lex.Operator {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					return false
				}
				depth--
			case ";":
				if depth == 0 {
					return true
				}
			}
		}
	}
}

func (p *Parser) parseExprOrEmpty() *ast.Node {
	if t := p.s.peek(); t.Kind == lex.Operator && (t.Text == ";" || t.Text == ")") {
		return ast.New(ast.OpUndefLit, p.nextTok())
	}
	return p.parseExpr(0)
}

func (p *Parser) parseSubDecl() *ast.Node {
	tok := p.nextTok()
	p.s.next() // sub
	name := p.s.next().Text
	sig := p.parseOptionalSignature()
	body := p.parseBlock()
	node := ast.New(ast.OpSubDecl, tok, body)
	node.Name = name
	if sig != nil {
		node.Annotate("signature", sig)
	}
	return node
}

// parseOptionalSignature parses a parenthesized prototype/signature
// (spec.md's supplemental signature support) if present.
func (p *Parser) parseOptionalSignature() *Signature {
	if t := p.s.peek(); t.Kind != lex.Operator || t.Text != "(" {
		return nil
	}
	p.s.next()
	sig := &Signature{}
	for {
		t := p.s.peek()
		if t.Kind == lex.Operator && t.Text == ")" {
			p.s.next()
			break
		}
		if t.Kind == lex.Sigil {
			p.s.next()
			param := Param{Sigil: ast.Sigil(t.Text[0]), Name: t.Text[1:]}
			if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "=" {
				p.s.next()
				param.Default = p.parseExpr(binOps[","].prec + 1)
			}
			sig.Params = append(sig.Params, param)
		} else {
			// bare prototype character sequence, e.g. sub foo($$;@)
			p.s.next()
		}
		if t := p.s.peek(); t.Kind == lex.Operator && t.Text == "," {
			p.s.next()
		}
	}
	return sig
}

func (p *Parser) parsePackage() *ast.Node {
	tok := p.nextTok()
	p.s.next() // package
	name := p.s.next().Text
	node := ast.New(ast.OpPackage, tok)
	node.Name = name
	if t := p.s.peek(); t.Kind == lex.Operator && t.Text == "{" {
		node.Children = append(node.Children, p.parseBlock())
		return node
	}
	p.consumeSemicolons()
	return node
}

func (p *Parser) parseUse() *ast.Node {
	tok := p.nextTok()
	p.s.next() // use/no
	node := ast.New(ast.OpUse, tok)
	if t := p.s.peek(); t.Kind == lex.Identifier {
		node.Name = t.Text
		p.s.next()
	}
	for {
		t := p.s.peek()
		if t.Kind == lex.Operator && t.Text == ";" {
			break
		}
		if t.Kind == lex.EOF {
			break
		}
		p.s.next()
	}
	p.consumeSemicolons()
	if node.Name == "strict" || node.Name == "integer" || node.Name == "bytes" {
		node.Op = ast.OpStrictPragma
	}
	return node
}

func (p *Parser) parseLoopControl(kind string) *ast.Node {
	tok := p.nextTok()
	p.s.next()
	var op ast.Op
	switch kind {
	case "last":
		op = ast.OpLast
	case "next":
		op = ast.OpNext
	case "redo":
		op = ast.OpRedo
	}
	node := ast.New(op, tok)
	if t := p.s.peek(); t.Kind == lex.Identifier && !statementModifierWord(t.Text) {
		node.Name = t.Text
		p.s.next()
	}
	return p.applyStatementModifier(node)
}

func statementModifierWord(s string) bool {
	switch s {
	case "if", "unless", "while", "until", "for", "foreach":
		return true
	}
	return false
}

func (p *Parser) parseReturn() *ast.Node {
	tok := p.nextTok()
	p.s.next()
	node := ast.New(ast.OpReturn, tok)
	if t := p.s.peek(); !(t.Kind == lex.Operator && t.Text == ";") && t.Kind != lex.EOF &&
		!(t.Kind == lex.Identifier && statementModifierWord(t.Text)) {
		node.Children = append(node.Children, p.parseExpr(0))
	}
	return p.applyStatementModifier(node)
}

// parseGoto handles both `goto LABEL` and the tail-call form
// `goto &sub`; the latter keeps its leading `&` in the node name so
// the runtime can tell the two markers apart.
func (p *Parser) parseGoto() *ast.Node {
	tok := p.nextTok()
	p.s.next()
	node := ast.New(ast.OpGoto, tok)
	switch t := p.s.peek(); {
	case t.Kind == lex.Operator && t.Text == "&":
		p.s.next()
		if n := p.s.peek(); n.Kind == lex.Identifier {
			node.Name = "&" + n.Text
			p.s.next()
		}
	case t.Kind == lex.Sigil && len(t.Text) > 1 && t.Text[0] == '&':
		node.Name = t.Text
		p.s.next()
	case t.Kind == lex.Identifier && !statementModifierWord(t.Text):
		node.Name = t.Text
		p.s.next()
	}
	return p.applyStatementModifier(node)
}

// --- expressions (Pratt) ------------------------------------------------

// parseExpr implements precedence climbing over binOps, folding
// lexer-split compound-assignment pairs back into one node.
func (p *Parser) parseExpr(minPrec int) *ast.Node {
	left := p.parseUnary()
	for {
		t := p.s.peek()
		opText := t.Text
		if t.Kind != lex.Operator && t.Kind != lex.Identifier {
			break
		}
		if fused, ok := compoundAssignOps[opText]; ok && t.Kind == lex.Operator {
			if n := p.s.peekN(1); n.Kind == lex.Operator && n.Text == "=" {
				opText = fused
			}
		}
		entry, ok := binOps[opText]
		if !ok || entry.prec < minPrec {
			break
		}
		p.s.next()
		if opText != t.Text {
			p.s.next() // consume the fused trailing '='
		}

		if opText == "=" || strings.HasSuffix(opText, "=") && opText != "==" && opText != "!=" &&
			opText != "<=" && opText != ">=" {
			nextMin := entry.prec
			right := p.parseExpr(nextMin)
			left = ast.New(ast.OpAssign, p.nextTok(), left, right)
			left.Name = opText
			continue
		}

		nextMin := entry.prec + 1
		if entry.rightAssoc {
			nextMin = entry.prec
		}
		right := p.parseExpr(nextMin)

		switch opText {
		case ",", "=>":
			left = flattenList(left, right, p.tok)
		case "..", "...":
			left = ast.New(ast.OpRange, p.nextTok(), left, right)
		default:
			left = ast.New(ast.OpBinOp, p.nextTok(), left, right)
			left.Name = opText
		}
	}
	// ternary sits between the comma level and the comparison levels
	// (spec.md §4.4's level 7); handled explicitly after binary
	// climbing so `? :` binds looser than every climbing operator above
	// the assignment level but tighter than assignment and commas;
	// named unaries (namedUnaryPrec) bind tighter than it.
	if t := p.s.peek(); t.Kind == lex.Operator && t.Text == "?" && minPrec <= 55 {
		p.s.next()
		thenExpr := p.parseExpr(0)
		p.expectOperatorText(":")
		elseExpr := p.parseExpr(30)
		tern := ast.New(ast.OpTernary, p.nextTok(), left, thenExpr, elseExpr)
		left = tern
	}
	return left
}

func flattenList(left, right *ast.Node, tok int) *ast.Node {
	if left.Op == ast.OpListExpr {
		left.Children = append(left.Children, right)
		return left
	}
	return &ast.Node{Op: ast.OpListExpr, Tok: tok, Children: []*ast.Node{left, right}}
}

var unaryOps = map[string]bool{
	"!": true, "~": true, "\\": true, "-": true, "+": true,
}

func incDecName(prefix, op string) string {
	if op == "++" {
		return prefix + "Inc"
	}
	return prefix + "Dec"
}

func (p *Parser) parseUnary() *ast.Node {
	t := p.s.peek()
	if t.Kind == lex.Identifier && t.Text == "not" {
		p.s.next()
		operand := p.parseExpr(20)
		n := ast.New(ast.OpUnOp, p.nextTok(), operand)
		n.Name = "not"
		return n
	}
	if t.Kind == lex.Operator && unaryOps[t.Text] {
		// `-BAREWORD =>` is the autoquoted string "-BAREWORD", not a
		// negation (spec.md §4.4's ambiguity rule).
		if t.Text == "-" {
			if id := p.s.peekN(1); id.Kind == lex.Identifier {
				if fa := p.s.peekN(2); fa.Kind == lex.Operator && fa.Text == "=>" {
					p.s.next()
					p.s.next()
					str := ast.New(ast.OpStringLit, p.nextTok())
					str.Str = "-" + id.Text
					return str
				}
			}
		}
		p.s.next()
		operand := p.parseExpr(binOps["**"].prec)
		n := ast.New(ast.OpUnOp, p.nextTok(), operand)
		n.Name = t.Text
		return n
	}
	if t.Kind == lex.Operator && (t.Text == "++" || t.Text == "--") {
		p.s.next()
		operand := p.parseUnary()
		n := ast.New(ast.OpUnOp, p.nextTok(), operand)
		n.Name = incDecName("pre", t.Text)
		return n
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() *ast.Node {
	n := p.parsePrimary()
	for {
		t := p.s.peek()
		switch {
		case t.Kind == lex.Operator && t.Text == "->":
			p.s.next()
			n = p.parseArrowTail(n)
		case t.Kind == lex.Operator && t.Text == "[" && n.Op == ast.OpVar && n.Sigil == ast.SigilScalar:
			p.s.next()
			idx := p.parseExpr(0)
			p.expectOperatorText("]")
			n = ast.New(ast.OpIndex, p.nextTok(), n, idx)
		case t.Kind == lex.Operator && t.Text == "{" && n.Op == ast.OpVar && n.Sigil == ast.SigilScalar:
			p.s.next()
			key := p.parseHashKey()
			p.expectOperatorText("}")
			n = ast.New(ast.OpKeyIndex, p.nextTok(), n, key)
		case t.Kind == lex.Operator && t.Text == "[" && n.Op == ast.OpVar && n.Sigil == ast.SigilArray:
			// @a[...] array slice
			p.s.next()
			idx := p.parseExpr(0)
			p.expectOperatorText("]")
			slice := ast.New(ast.OpSlice, p.nextTok(), n, idx)
			slice.Str = "array"
			n = slice
		case t.Kind == lex.Operator && t.Text == "{" && n.Op == ast.OpVar &&
			(n.Sigil == ast.SigilArray || n.Sigil == ast.SigilHash):
			// @h{...} hash slice; %h{...} key/value slice
			p.s.next()
			key := p.parseExpr(0)
			p.expectOperatorText("}")
			slice := ast.New(ast.OpSlice, p.nextTok(), n, key)
			if n.Sigil == ast.SigilHash {
				slice.Str = "kv"
			} else {
				slice.Str = "hash"
			}
			n = slice
		case t.Kind == lex.Operator && (t.Text == "++" || t.Text == "--"):
			p.s.next()
			post := ast.New(ast.OpUnOp, p.nextTok(), n)
			post.Name = incDecName("post", t.Text)
			n = post
		default:
			return n
		}
	}
}

// parseHashKey implements the bareword-autoquoting rule: an
// identifier immediately followed by `}` is a string key, not a
// function call (spec.md §4.4's named ambiguity).
func (p *Parser) parseHashKey() *ast.Node {
	t := p.s.peek()
	if t.Kind == lex.Identifier && p.s.peekN(1).Kind == lex.Operator && p.s.peekN(1).Text == "}" {
		p.s.next()
		n := ast.New(ast.OpStringLit, p.nextTok())
		n.Str = t.Text
		return n
	}
	return p.parseExpr(0)
}

func (p *Parser) parseArrowTail(recv *ast.Node) *ast.Node {
	t := p.s.peek()
	switch {
	case t.Kind == lex.Operator && t.Text == "[":
		p.s.next()
		idx := p.parseExpr(0)
		p.expectOperatorText("]")
		return ast.New(ast.OpArrow, p.nextTok(), recv, ast.New(ast.OpIndex, p.tok, idx))
	case t.Kind == lex.Operator && t.Text == "{":
		p.s.next()
		key := p.parseHashKey()
		p.expectOperatorText("}")
		return ast.New(ast.OpArrow, p.nextTok(), recv, ast.New(ast.OpKeyIndex, p.tok, key))
	case t.Kind == lex.Operator && t.Text == "(":
		args := p.parseParenArgs()
		call := ast.New(ast.OpCall, p.nextTok(), args)
		return ast.New(ast.OpArrow, p.tok, recv, call)
	case t.Kind == lex.Identifier:
		p.s.next()
		method := ast.New(ast.OpMethodCall, p.nextTok())
		method.Name = t.Text
		if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "(" {
			method.Children = append(method.Children, p.parseParenArgs())
		}
		return ast.New(ast.OpArrow, p.tok, recv, method)
	}
	p.errorf("unexpected token %q after '->'", t.Text)
	return recv
}

func (p *Parser) parseParenArgs() *ast.Node {
	p.expectOperatorText("(")
	args := ast.New(ast.OpListExpr, p.nextTok())
	if t := p.s.peek(); t.Kind == lex.Operator && t.Text == ")" {
		p.s.next()
		return args
	}
	args.Children = append(args.Children, p.parseExpr(binOps[","].prec+1))
	for {
		t := p.s.peek()
		if t.Kind == lex.Operator && t.Text == "," {
			p.s.next()
			if n := p.s.peek(); n.Kind == lex.Operator && n.Text == ")" {
				break
			}
			args.Children = append(args.Children, p.parseExpr(binOps[","].prec+1))
			continue
		}
		break
	}
	p.expectOperatorText(")")
	return args
}

func (p *Parser) parsePrimary() *ast.Node {
	t := p.s.peek()
	switch t.Kind {
	case lex.Number:
		p.s.next()
		return p.parseNumberLit(t)
	case lex.String:
		p.s.next()
		n := ast.New(ast.OpStringLit, p.nextTok())
		n.Str = joinLiteralChunks(t.Chunks)
		return n
	case lex.InterpString:
		p.s.next()
		return p.buildInterpString(t)
	case lex.Heredoc:
		p.s.next()
		n := ast.New(ast.OpStringLit, p.nextTok())
		n.Str = t.HeredocBody
		return n
	case lex.Regex:
		p.s.next()
		n := ast.New(ast.OpRegexLit, p.nextTok())
		n.Str = t.Text
		return n
	case lex.Sigil:
		p.s.next()
		return p.buildVarNode(t)
	case lex.Operator:
		switch t.Text {
		case "(":
			p.s.next()
			if n := p.s.peek(); n.Kind == lex.Operator && n.Text == ")" {
				p.s.next()
				return ast.New(ast.OpListExpr, p.nextTok())
			}
			inner := p.parseExpr(0)
			p.expectOperatorText(")")
			return inner
		case "[":
			p.s.next()
			items := ast.New(ast.OpArrayLit, p.nextTok())
			for {
				if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "]" {
					p.s.next()
					break
				}
				items.Children = append(items.Children, p.parseExpr(binOps[","].prec+1))
				if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "," {
					p.s.next()
				}
			}
			return items
		case "{":
			p.s.next()
			items := ast.New(ast.OpHashLit, p.nextTok())
			for {
				if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "}" {
					p.s.next()
					break
				}
				items.Children = append(items.Children, p.parseExpr(binOps[","].prec+1))
				if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "," {
					p.s.next()
				}
			}
			return items
		case "\\":
			p.s.next()
			operand := p.parseUnary()
			n := ast.New(ast.OpUnOp, p.nextTok(), operand)
			n.Name = "\\"
			return n
		}
	case lex.Identifier:
		switch t.Text {
		case "my", "our", "state":
			return p.parseDecl(t.Text)
		case "local":
			return p.parseLocal()
		case "do":
			return p.parseDo()
		case "eval":
			return p.parseEval()
		case "sub":
			return p.parseAnonSub()
		case "undef":
			p.s.next()
			return ast.New(ast.OpUndefLit, p.nextTok())
		}
		p.s.next()
		return p.buildCallOrBareword(t)
	}
	p.errorf("unexpected token %q", t.Text)
	p.s.next()
	return ast.New(ast.OpUndefLit, p.nextTok())
}

func (p *Parser) parseNumberLit(t *lex.Token) *ast.Node {
	if strings.ContainsAny(t.Text, ".eE") && !strings.HasPrefix(t.Text, "0x") {
		f, _ := strconv.ParseFloat(t.Text, 64)
		n := ast.New(ast.OpFloatLit, p.nextTok())
		n.Float = f
		return n
	}
	i, err := strconv.ParseInt(t.Text, 0, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(t.Text, 64)
		n := ast.New(ast.OpFloatLit, p.nextTok())
		n.Float = f
		return n
	}
	n := ast.New(ast.OpIntLit, p.nextTok())
	n.Int = i
	return n
}

func joinLiteralChunks(chunks []lex.StringChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(decodeSingleQuoted(c.Text))
	}
	return b.String()
}

// decodeSingleQuoted resolves the only two escapes single-quoted
// strings honor: \' and \\.
func decodeSingleQuoted(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\'' || s[i+1] == '\\') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// decodeDoubleQuoted resolves double-quoted escape sequences; an
// unrecognized escape keeps the escaped character, matching Perl.
func decodeDoubleQuoted(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'e':
			b.WriteByte(0x1b)
		case 'a':
			b.WriteByte(7)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// buildInterpString turns the lexer's literal/var-ref chunk stream
// into an OpInterpString node whose children alternate string literals
// and parsed variable-reference expressions (spec.md §4.3's deferred
// interpolation, resolved here).
func (p *Parser) buildInterpString(t *lex.Token) *ast.Node {
	n := ast.New(ast.OpInterpString, p.nextTok())
	for _, c := range t.Chunks {
		if c.Literal {
			lit := ast.New(ast.OpStringLit, p.tok)
			lit.Str = decodeDoubleQuoted(c.Text)
			n.Children = append(n.Children, lit)
			continue
		}
		sub := New(lex.New(c.Text, "<interp>"))
		expr := sub.parseExpr(0)
		n.Children = append(n.Children, expr)
	}
	return n
}

func (p *Parser) buildVarNode(t *lex.Token) *ast.Node {
	n := ast.New(ast.OpVar, p.nextTok())
	n.Sigil = ast.Sigil(t.Text[0])
	n.Name = t.Text[1:]
	return n
}

// blockFuncs take an optional `{ ... }` callback as their first
// argument (spec.md §4.4's block-vs-hash ambiguity resolves to a block
// after these names).
var blockFuncs = map[string]bool{"map": true, "grep": true, "sort": true}

// namedUnaryFuncs take a single argument at named-unary precedence
// (tighter than comparison and the ternary, looser than arithmetic),
// so `exists $h{k} ? ... : ...` tests the exists.
var namedUnaryFuncs = map[string]bool{
	"defined": true, "exists": true, "delete": true, "ref": true,
	"length": true, "uc": true, "lc": true, "ucfirst": true,
	"lcfirst": true, "shift": true, "pop": true, "chr": true,
	"ord": true, "int": true, "abs": true, "sqrt": true,
	"scalar": true, "chomp": true, "keys": true, "values": true,
}

// namedUnaryPrec sits between the shift (140) and comparison (120)
// levels.
const namedUnaryPrec = 130

// buildCallOrBareword resolves the named-subroutine-call ambiguity:
// IDENT(...) is always a call, IDENT LIST is a list-operator call
// grabbing everything up to the next lower-precedence boundary
// (spec.md §4.4's level-4 list operators), `IDENT =>` autoquotes to a
// string, and a bareword in term position with nothing following
// becomes a string (used for hash keys and class names).
func (p *Parser) buildCallOrBareword(t *lex.Token) *ast.Node {
	if n := p.s.peek(); n.Kind == lex.Operator && (n.Text == "=>" || n.Text == "->") {
		// `Key =>` autoquotes; `Class->method` treats the bareword as
		// the invocant's package name.
		str := ast.New(ast.OpStringLit, p.nextTok())
		str.Str = t.Text
		return str
	}
	if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "(" {
		args := p.parseParenArgs()
		call := ast.New(ast.OpCall, p.nextTok(), args)
		call.Name = t.Text
		return call
	}
	args := ast.New(ast.OpListExpr, p.nextTok())
	if blockFuncs[t.Text] {
		if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "{" {
			body := p.parseBlock()
			cb := ast.New(ast.OpAnonSub, p.tok, body)
			args.Children = append(args.Children, cb)
		}
	}
	if namedUnaryFuncs[t.Text] {
		if n := p.s.peek(); startsTerm(n) {
			args.Children = append(args.Children, p.parseExpr(namedUnaryPrec))
		}
		call := ast.New(ast.OpCall, p.tok, args)
		call.Name = t.Text
		return call
	}
	if n := p.s.peek(); startsTerm(n) {
		args.Children = append(args.Children, p.parseExpr(binOps[","].prec+1))
		for {
			n := p.s.peek()
			if n.Kind != lex.Operator || n.Text != "," {
				break
			}
			p.s.next()
			if nn := p.s.peek(); !startsTerm(nn) {
				break
			}
			args.Children = append(args.Children, p.parseExpr(binOps[","].prec+1))
		}
	}
	if len(args.Children) == 0 {
		call := ast.New(ast.OpCall, p.nextTok(), args)
		call.Name = t.Text
		return call
	}
	call := ast.New(ast.OpCall, p.tok, args)
	call.Name = t.Text
	return call
}

func startsTerm(t *lex.Token) bool {
	switch t.Kind {
	case lex.Number, lex.String, lex.InterpString, lex.Sigil, lex.Regex, lex.Heredoc:
		return true
	case lex.Operator:
		return t.Text == "(" || t.Text == "[" || t.Text == "{" || t.Text == "\\" || t.Text == "-"
	case lex.Identifier:
		return t.Text != "if" && t.Text != "unless" && t.Text != "while" && t.Text != "until" &&
			t.Text != "for" && t.Text != "foreach" && t.Text != "or" && t.Text != "and" && t.Text != "xor"
	}
	return false
}

func (p *Parser) parseDecl(kind string) *ast.Node {
	tok := p.nextTok()
	p.s.next() // my/our/state
	var op ast.Op
	switch kind {
	case "my":
		op = ast.OpMy
	case "our":
		op = ast.OpOur
	case "state":
		op = ast.OpState
	}
	var vars []*ast.Node
	if t := p.s.peek(); t.Kind == lex.Operator && t.Text == "(" {
		p.s.next()
		for {
			if n := p.s.peek(); n.Kind == lex.Operator && n.Text == ")" {
				p.s.next()
				break
			}
			vars = append(vars, p.parseDeclVar())
			if n := p.s.peek(); n.Kind == lex.Operator && n.Text == "," {
				p.s.next()
			}
		}
	} else {
		vars = append(vars, p.parseDeclVar())
	}
	return &ast.Node{Op: op, Tok: tok, Children: vars}
}

// parseDeclVar reads one declared variable, annotating the declared-
// reference form (`my \$x`, `local \@a`) so the emitter knows to bind
// a reference rather than a value (spec.md §4.4).
func (p *Parser) parseDeclVar() *ast.Node {
	if t := p.s.peek(); t.Kind == lex.Operator && t.Text == "\\" {
		p.s.next()
		v := p.parsePrimary()
		v.SetDeclaredRef(true)
		return v
	}
	return p.parsePrimary()
}

func (p *Parser) parseLocal() *ast.Node {
	tok := p.nextTok()
	p.s.next()
	target := p.parsePostfix()
	return ast.New(ast.OpLocal, tok, target)
}

func (p *Parser) parseDo() *ast.Node {
	tok := p.nextTok()
	p.s.next()
	block := p.parseBlock()
	return ast.New(ast.OpDo, tok, block)
}

func (p *Parser) parseEval() *ast.Node {
	tok := p.nextTok()
	p.s.next()
	if t := p.s.peek(); t.Kind == lex.Operator && t.Text == "{" {
		block := p.parseBlock()
		return ast.New(ast.OpEval, tok, block)
	}
	expr := p.parseExpr(binOps[","].prec + 1)
	return ast.New(ast.OpEval, tok, expr)
}

func (p *Parser) parseAnonSub() *ast.Node {
	tok := p.nextTok()
	p.s.next()
	sig := p.parseOptionalSignature()
	body := p.parseBlock()
	n := ast.New(ast.OpAnonSub, tok, body)
	if sig != nil {
		n.Annotate("signature", sig)
	}
	return n
}
