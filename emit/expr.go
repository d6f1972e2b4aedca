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

package emit

import (
	"strings"

	"github.com/perl-plc/plc/ast"
	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/scope"
)

// emitExpr lowers one expression node, leaving exactly one value on
// the stack. Aggregates travel as a single reference-carrying scalar,
// the same representation OpMakeArray/OpMakeHash already build for
// anonymous array/hash literals.
func (e *emitter) emitExpr(n *ast.Node) {
	switch n.Op {
	case ast.OpIntLit:
		e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: n.Int})
	case ast.OpFloatLit:
		e.emit(bytecode.Instr{Op: bytecode.OpConstFloat, F: n.Float})
	case ast.OpStringLit:
		e.emit(bytecode.Instr{Op: bytecode.OpConstString, Str: n.Str})
	case ast.OpUndefLit:
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
	case ast.OpInterpString:
		e.emitInterpString(n)
	case ast.OpArrayLit:
		for _, c := range n.Children {
			e.emitExpr(c)
		}
		e.emit(bytecode.Instr{Op: bytecode.OpMakeArray, A: int64(len(n.Children))})
	case ast.OpHashLit:
		for _, c := range n.Children {
			e.emitExpr(c)
		}
		e.emit(bytecode.Instr{Op: bytecode.OpMakeHash, A: int64(len(n.Children))})
	case ast.OpListExpr:
		for _, c := range n.Children {
			e.emitExpr(c)
		}
		e.emit(bytecode.Instr{Op: bytecode.OpMakeList, A: int64(len(n.Children))})
	case ast.OpVar:
		e.loadVar(n)

	case ast.OpMy, ast.OpOur, ast.OpState:
		e.emitDeclExpr(n)
	case ast.OpAnonSub:
		e.emitAnonSub(n)

	case ast.OpBinOp:
		e.emitBinOp(n)
	case ast.OpUnOp:
		e.emitUnOp(n)
	case ast.OpAssign:
		e.emitAssign(n)
	case ast.OpTernary:
		e.emitTernary(n)
	case ast.OpRange:
		e.emitExpr(n.Children[0])
		e.emitExpr(n.Children[1])
		e.emit(bytecode.Instr{Op: bytecode.OpRange})

	case ast.OpIndex:
		e.emitContainerRef(n.Children[0], ast.SigilArray)
		e.emitExpr(n.Children[1])
		e.emit(bytecode.Instr{Op: bytecode.OpIndex})
	case ast.OpKeyIndex:
		e.emitContainerRef(n.Children[0], ast.SigilHash)
		e.emitExpr(n.Children[1])
		e.emit(bytecode.Instr{Op: bytecode.OpKeyIndex})
	case ast.OpSlice:
		containerSigil := ast.SigilHash
		if n.Str == "array" {
			containerSigil = ast.SigilArray
		}
		e.emitContainerRef(n.Children[0], containerSigil)
		e.emitExpr(n.Children[1])
		e.emit(bytecode.Instr{Op: bytecode.OpSlice, Str: n.Str})
	case ast.OpDeref:
		e.emitExpr(n.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpDeref})
	case ast.OpArrow:
		e.emitArrow(n)
	case ast.OpCall:
		e.emitCall(n)
	case ast.OpRegexLit:
		e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobal, Str: "main::_"})
		e.emit(bytecode.Instr{Op: bytecode.OpRegexMatch, Str: n.Str})

	case ast.OpLocal:
		e.emitLocal(n)
	case ast.OpEval:
		e.emitEval(n)
	case ast.OpDo:
		e.emitBlockValue(n.Children[0])

	default:
		e.errorf("emit: unsupported expression node (op=%d)", n.Op)
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
	}
}

// emitBlockValue emits a block the way `do { ... }` and `eval { ... }`
// need it: every statement but a trailing bare expression runs for
// effect only, and that trailing expression's value survives on the
// stack as the block's own value.
func (e *emitter) emitBlockValue(n *ast.Node) {
	e.scope.Push()
	base := e.localCount
	snap := blockHasRegex(n)
	if snap {
		e.emit(bytecode.Instr{Op: bytecode.OpRegexSnapPush})
	}
	lastIsExpr := false
	for i, stmt := range n.Children {
		if stmt.Op == ast.OpSubDecl {
			continue
		}
		if i == len(n.Children)-1 && stmt.Op == ast.OpExprStmt {
			e.emitExpr(stmt.Children[0])
			lastIsExpr = true
			continue
		}
		e.emitStmt(stmt)
	}
	if !lastIsExpr {
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
	}
	e.emitScopeExit(base, snap)
	e.scope.Pop()
}

// emitEval inlines `eval { BLOCK }` / `eval EXPR` directly into the
// enclosing method so the guarded code keeps sharing the surrounding
// lexical pad, wrapped in the OpEvalBegin/OpEvalEnd region the
// interpreter's fail() helper catches mid-stream.
func (e *emitter) emitEval(n *ast.Node) {
	endLabel := e.newLabel()
	idx := e.emit(bytecode.Instr{Op: bytecode.OpEvalBegin})
	endLabel.patchOrRecord(idx, e.instrs)
	body := n.Children[0]
	if body.Op == ast.OpBlock {
		e.emitBlockValue(body)
	} else {
		// eval STRING: evaluate the string, then hand it to the
		// compiler re-entrantly through the interpreter's eval entry
		// point; the surrounding region still catches its die.
		e.emitExpr(body)
		e.emit(bytecode.Instr{Op: bytecode.OpCall, Str: "main::" + EvalStringSub, A: 1})
	}
	e.emit(bytecode.Instr{Op: bytecode.OpEvalEnd})
	e.placeLabel(endLabel)
}

// emitLocal implements `local $x` / `local $x = EXPR` for scalar
// targets (array and hash targets are rejected with a compile
// error): it saves the current global value so the enclosing
// OpLocalPop restores it, and leaves the (possibly just-assigned)
// value live as the expression's own value.
func (e *emitter) emitLocal(n *ast.Node) {
	target := n.Children[0]
	if target.Op != ast.OpVar || target.Sigil != ast.SigilScalar {
		e.errorf("emit: local is only supported for scalar variables")
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
		return
	}
	name := e.globalScalarName(target.Name)
	e.emit(bytecode.Instr{Op: bytecode.OpLocalPush, Str: name})
	e.localCount++
	e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobal, Str: name})
}

// globalScalarName resolves a bareword to its runtime-qualified global
// name, honoring an enclosing `our` alias if one is in lexical scope.
func (e *emitter) globalScalarName(name string) string {
	if b, ok := e.resolveLex(ast.SigilScalar, name); ok && b.Kind == scope.Our {
		return b.Global
	}
	return e.pkg + "::" + name
}

func (e *emitter) globalArrayName(name string) string {
	if b, ok := e.resolveLex(ast.SigilArray, name); ok && b.Kind == scope.Our {
		return b.Global
	}
	return e.pkg + "::" + name
}

func (e *emitter) globalHashName(name string) string {
	if b, ok := e.resolveLex(ast.SigilHash, name); ok && b.Kind == scope.Our {
		return b.Global
	}
	return e.pkg + "::" + name
}

// loadVar pushes a variable's current value: a lexical hit (other than
// an `our` alias) loads the pad slot directly, anything else falls
// back to the package-qualified global table.
func (e *emitter) loadVar(n *ast.Node) {
	if n.Sigil == ast.SigilArray && n.Name == "_" {
		if _, ok := e.resolveLex(ast.SigilArray, "_"); !ok {
			e.emit(bytecode.Instr{Op: bytecode.OpLoadArgsArray})
			return
		}
	}
	// $1..$n and $&/$`/$' read the regex capture state, not a symbol
	// table slot.
	if n.Sigil == ast.SigilScalar {
		if ord, ok := captureOrdinal(n.Name); ok {
			e.emit(bytecode.Instr{Op: bytecode.OpRegexCapture, A: int64(ord)})
			return
		}
		switch n.Name {
		case "&", "`", "'":
			e.emit(bytecode.Instr{Op: bytecode.OpRegexCapture, Str: n.Name})
			return
		}
	}
	b, ok := e.resolveLex(n.Sigil, n.Name)
	if ok && b.Kind != scope.Our {
		e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(b.Slot)})
		return
	}
	switch n.Sigil {
	case ast.SigilArray:
		e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobalArray, Str: e.globalArrayName(n.Name)})
	case ast.SigilHash:
		e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobalHash, Str: e.globalHashName(n.Name)})
	default:
		e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobal, Str: e.globalScalarName(n.Name)})
	}
}

// captureOrdinal reports whether name spells a positive all-digit
// capture variable ($1, $2, ... but not $0, which is the program
// name).
func captureOrdinal(name string) (int, bool) {
	if name == "" || name == "0" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return 0, false
		}
		n = n*10 + int(name[i]-'0')
	}
	return n, true
}

// emitContainerRef pushes the aggregate a `$x[...]`/`$x{...}` element
// access indexes into. The receiver is spelled with a scalar sigil in
// source (`$x[0]` indexes `@x`), so the lookup is redirected to the
// sigil the subscript operator implies rather than the one written.
func (e *emitter) emitContainerRef(recv *ast.Node, containerSigil ast.Sigil) {
	if recv.Op != ast.OpVar {
		e.emitExpr(recv)
		return
	}
	b, ok := e.resolveLex(containerSigil, recv.Name)
	if ok && b.Kind != scope.Our {
		e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(b.Slot)})
		return
	}
	name := e.pkg + "::" + recv.Name
	if ok && b.Kind == scope.Our {
		name = b.Global
	}
	if containerSigil == ast.SigilHash {
		e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobalHash, Str: name})
	} else {
		e.emit(bytecode.Instr{Op: bytecode.OpLoadGlobalArray, Str: name})
	}
}

func (e *emitter) emitInterpString(n *ast.Node) {
	if len(n.Children) == 0 {
		e.emit(bytecode.Instr{Op: bytecode.OpConstString, Str: ""})
		return
	}
	e.emitExpr(n.Children[0])
	for _, c := range n.Children[1:] {
		e.emitExpr(c)
		e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: "."})
	}
}

var shortCircuit = map[string]bytecode.Op{
	"&&": bytecode.OpJumpIfFalse, "and": bytecode.OpJumpIfFalse,
	"||": bytecode.OpJumpIfTrue, "or": bytecode.OpJumpIfTrue,
}

func (e *emitter) emitBinOp(n *ast.Node) {
	if n.Name == "=~" || n.Name == "!~" {
		e.emitRegexBind(n)
		return
	}
	if skipOp, ok := shortCircuit[n.Name]; ok {
		e.emitExpr(n.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpDup})
		endLabel := e.newLabel()
		idx := e.emit(bytecode.Instr{Op: skipOp})
		endLabel.patchOrRecord(idx, e.instrs)
		e.emit(bytecode.Instr{Op: bytecode.OpPop})
		e.emitExpr(n.Children[1])
		e.placeLabel(endLabel)
		return
	}
	e.emitExpr(n.Children[0])
	e.emitExpr(n.Children[1])
	e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: n.Name})
}

// emitRegexBind lowers `EXPR =~ /pattern/`; only a literal regex on
// the right-hand side is supported, a dynamic pattern built from a
// string being a documented scope cut.
func (e *emitter) emitRegexBind(n *ast.Node) {
	target, pattern := n.Children[0], n.Children[1]
	e.emitExpr(target)
	if pattern.Op != ast.OpRegexLit {
		e.errorf("emit: =~/!~ requires a literal regex right-hand side")
		e.emit(bytecode.Instr{Op: bytecode.OpPop})
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
		return
	}
	e.emit(bytecode.Instr{Op: bytecode.OpRegexMatch, Str: pattern.Str})
	if n.Name == "!~" {
		e.emit(bytecode.Instr{Op: bytecode.OpUnOp, Str: "!"})
	}
}

func (e *emitter) emitUnOp(n *ast.Node) {
	switch n.Name {
	case "\\":
		e.emitExpr(n.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpMakeScalarRef})
	case "postInc", "postDec", "preInc", "preDec":
		e.emitIncDec(n)
	default:
		e.emitExpr(n.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpUnOp, Str: n.Name})
	}
}

// emitIncDec lowers ++/--: the operand is loaded as a live handle
// (pad slot or global slot) and mutated in place by the runtime's
// increment operator, which implements the magic string auto-increment
// of §4.1 as well as the numeric forms. Subscripted targets load the
// element's slot handle the same way.
func (e *emitter) emitIncDec(n *ast.Node) {
	target := n.Children[0]
	switch target.Op {
	case ast.OpVar:
		if target.Sigil != ast.SigilScalar {
			e.errorf("emit: ++/-- requires a scalar target")
			e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
			return
		}
		e.loadVar(target)
	case ast.OpIndex:
		e.emitContainerRef(target.Children[0], ast.SigilArray)
		e.emitExpr(target.Children[1])
		e.emit(bytecode.Instr{Op: bytecode.OpIndex})
	case ast.OpKeyIndex:
		e.emitContainerRef(target.Children[0], ast.SigilHash)
		e.emitExpr(target.Children[1])
		e.emit(bytecode.Instr{Op: bytecode.OpKeyIndex})
	default:
		e.errorf("emit: ++/-- requires a variable or element target")
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
		return
	}
	e.emit(bytecode.Instr{Op: bytecode.OpUnOp, Str: n.Name})
}

// storeScalarVar stores the top-of-stack value into a plain scalar
// variable and leaves a copy of it on the stack, since OpStoreLex and
// OpStoreGlobal both consume their operand without re-pushing it.
func (e *emitter) storeScalarVar(v *ast.Node) {
	b, ok := e.resolveLex(v.Sigil, v.Name)
	e.emit(bytecode.Instr{Op: bytecode.OpDup})
	if ok && b.Kind != scope.Our {
		e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(b.Slot)})
		return
	}
	e.emit(bytecode.Instr{Op: bytecode.OpStoreGlobal, Str: e.globalScalarName(v.Name)})
}

func (e *emitter) emitTernary(n *ast.Node) {
	cond, thenExpr, elseExpr := n.Children[0], n.Children[1], n.Children[2]
	e.emitExpr(cond)
	elseLabel := e.newLabel()
	idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
	elseLabel.patchOrRecord(idx, e.instrs)
	e.emitExpr(thenExpr)
	endLabel := e.newLabel()
	jidx := e.emit(bytecode.Instr{Op: bytecode.OpJump})
	endLabel.patchOrRecord(jidx, e.instrs)
	e.placeLabel(elseLabel)
	e.emitExpr(elseExpr)
	e.placeLabel(endLabel)
}

// emitCall lowers a named-subroutine call; the callee is resolved by
// name at run time via bytecode.Caller so forward references and
// redefinition both behave the way dynamic dispatch does.
func (e *emitter) emitCall(n *ast.Node) {
	args := n.Children[0]
	argc := len(args.Children)
	// exists/delete operate on the element's container without
	// autovivifying the element itself, so the subscript is split into
	// (container, key) arguments instead of being evaluated.
	if (n.Name == "exists" || n.Name == "delete") && argc == 1 {
		if t := args.Children[0]; t.Op == ast.OpKeyIndex || t.Op == ast.OpIndex {
			sig := ast.SigilHash
			if t.Op == ast.OpIndex {
				sig = ast.SigilArray
			}
			e.emitContainerRef(t.Children[0], sig)
			e.emitExpr(t.Children[1])
			e.emit(bytecode.Instr{Op: bytecode.OpCall, Str: "main::" + n.Name, A: 2})
			return
		}
	}
	for _, a := range args.Children {
		e.emitExpr(a)
	}
	if argc == 0 && (n.Name == "shift" || n.Name == "pop") {
		// bare shift/pop default to @_ inside a sub (the top-level
		// body's @_ is simply empty).
		e.emit(bytecode.Instr{Op: bytecode.OpLoadArgsArray})
		argc = 1
	}
	name := n.Name
	if !strings.Contains(name, "::") {
		name = e.pkg + "::" + name
	}
	e.emit(bytecode.Instr{Op: bytecode.OpCall, Str: name, A: int64(argc)})
}

// emitArrow lowers one `->` chain step: `[...]`/`{...}` index through
// the receiver's reference, `(...)` calls the receiver as a code ref,
// and a bareword invokes a method with the receiver as its first
// argument, resolved at run time by bytecode.Caller.ResolveMethod
// walking @ISA.
func (e *emitter) emitArrow(n *ast.Node) {
	recv, tail := n.Children[0], n.Children[1]
	switch tail.Op {
	case ast.OpIndex:
		e.emitExpr(recv)
		e.emitExpr(tail.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpIndex})
	case ast.OpKeyIndex:
		e.emitExpr(recv)
		e.emitExpr(tail.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpKeyIndex})
	case ast.OpCall:
		e.emitExpr(recv)
		args := tail.Children[0]
		for _, a := range args.Children {
			e.emitExpr(a)
		}
		e.emit(bytecode.Instr{Op: bytecode.OpCallDyn, A: int64(len(args.Children))})
	case ast.OpMethodCall:
		e.emitExpr(recv)
		argc := 1
		if len(tail.Children) > 0 {
			args := tail.Children[0]
			for _, a := range args.Children {
				e.emitExpr(a)
			}
			argc += len(args.Children)
		}
		e.emit(bytecode.Instr{Op: bytecode.OpMethodCall, Str: tail.Name, A: int64(argc)})
	default:
		e.errorf("emit: unsupported arrow tail (op=%d)", tail.Op)
		e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
	}
}

// emitDeclExpr handles `my`/`our`/`state` used without an enclosing
// assignment (e.g. a bare `my $x;`, or a loop variable declaration):
// it declares every named variable, gives array/hash lexicals a fresh
// empty aggregate so later indexing has something to dereference, and
// yields undef as the declaration's own value.
func (e *emitter) emitDeclExpr(n *ast.Node) {
	kind := declKind(n.Op)
	for _, v := range n.Children {
		b := e.scope.Declare(v.Sigil, v.Name, kind)
		if kind == scope.Our {
			continue // backed by the persistent global table already
		}
		switch v.Sigil {
		case ast.SigilArray:
			e.emit(bytecode.Instr{Op: bytecode.OpMakeList, A: 0})
			e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(b.Slot)})
		case ast.SigilHash:
			e.emit(bytecode.Instr{Op: bytecode.OpMakeList, A: 0})
			e.emit(bytecode.Instr{Op: bytecode.OpToHash})
			e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(b.Slot)})
		}
	}
	e.emit(bytecode.Instr{Op: bytecode.OpConstUndef})
}

func declKind(op ast.Op) scope.Kind {
	switch op {
	case ast.OpOur:
		return scope.Our
	case ast.OpState:
		return scope.State
	default:
		return scope.My
	}
}

// emitAssign dispatches assignment by lvalue shape: a declaration
// wrapper (`my`/`our`/`state`) is unwrapped first so `my $x = 1` and
// `$x = 1` share the same storage logic once the binding exists.
func (e *emitter) emitAssign(n *ast.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	opText := n.Name

	target := lhs
	isDecl := false
	var dk scope.Kind
	if lhs.Op == ast.OpMy || lhs.Op == ast.OpOur || lhs.Op == ast.OpState {
		isDecl = true
		dk = declKind(lhs.Op)
		target = lhs.Children[0]
	}

	if target.Op == ast.OpLocal {
		e.emitLocalAssign(target, opText, rhs)
		return
	}

	switch target.Op {
	case ast.OpVar:
		e.emitVarAssign(target, isDecl, dk, opText, rhs)
	case ast.OpIndex:
		e.emitIndexAssign(target, opText, rhs, false)
	case ast.OpKeyIndex:
		e.emitIndexAssign(target, opText, rhs, true)
	case ast.OpArrow:
		e.emitArrowAssign(target, opText, rhs)
	case ast.OpDeref:
		e.emitDerefAssign(target, opText, rhs)
	default:
		e.errorf("emit: unsupported assignment target (op=%d)", target.Op)
		e.emitExpr(rhs)
	}
}

// emitArrowAssign implements `$x->[i] = EXPR` / `$x->{k} = EXPR`,
// autovivifying through an undef receiver at run time.
func (e *emitter) emitArrowAssign(target *ast.Node, opText string, rhs *ast.Node) {
	recv, tail := target.Children[0], target.Children[1]
	if opText != "=" {
		e.errorf("emit: compound assignment to an arrow element is not supported")
	}
	switch tail.Op {
	case ast.OpIndex:
		e.emitExpr(recv)
		e.emitExpr(tail.Children[0])
		e.emitExpr(rhs)
		e.emit(bytecode.Instr{Op: bytecode.OpIndexStore})
	case ast.OpKeyIndex:
		e.emitExpr(recv)
		e.emitExpr(tail.Children[0])
		e.emitExpr(rhs)
		e.emit(bytecode.Instr{Op: bytecode.OpKeyIndexStore})
	default:
		e.errorf("emit: unsupported arrow assignment target")
		e.emitExpr(rhs)
	}
}

// emitLocalAssign implements `local $x = EXPR`: the save is pushed
// before the new value lands, so the enclosing block's teardown
// restores the caller-visible value on every exit path.
func (e *emitter) emitLocalAssign(target *ast.Node, opText string, rhs *ast.Node) {
	inner := target.Children[0]
	if inner.Op != ast.OpVar || inner.Sigil != ast.SigilScalar {
		e.errorf("emit: local assignment is only supported for scalar variables")
		e.emitExpr(rhs)
		return
	}
	if opText != "=" {
		e.errorf("emit: compound assignment cannot introduce a local")
	}
	name := e.globalScalarName(inner.Name)
	e.emit(bytecode.Instr{Op: bytecode.OpLocalPush, Str: name})
	e.localCount++
	e.emitExpr(rhs)
	e.emit(bytecode.Instr{Op: bytecode.OpDup})
	e.emit(bytecode.Instr{Op: bytecode.OpStoreGlobal, Str: name})
}

// emitVarAssign implements plain and compound assignment to a scalar,
// array, or hash variable, declaring it first if the assignment came
// from a `my`/`our`/`state` statement. Compound assignment ("+=" and
// friends) only makes sense for scalars; array/hash targets only
// support plain "=" (whole-aggregate replacement).
func (e *emitter) emitVarAssign(v *ast.Node, isDecl bool, dk scope.Kind, opText string, rhs *ast.Node) {
	var b scope.Binding
	var ok bool
	if isDecl {
		b = e.scope.Declare(v.Sigil, v.Name, dk)
		ok = true
	} else {
		b, ok = e.resolveLex(v.Sigil, v.Name)
	}
	lexical := ok && b.Kind != scope.Our

	if isDecl && dk == scope.State && v.Sigil == ast.SigilScalar && opText == "=" {
		e.emitStateInit(b, v, rhs)
		return
	}

	if opText != "=" && v.Sigil == ast.SigilScalar {
		base := strings.TrimSuffix(opText, "=")
		e.loadVar(v)
		e.emitExpr(rhs)
		e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: base})
	} else {
		e.emitExpr(rhs)
		// Aggregate assignment copies the flattened right-hand list
		// into a fresh container (Perl's `@x = LIST` / `%h = LIST`
		// semantics) rather than aliasing the source.
		switch v.Sigil {
		case ast.SigilArray:
			e.emit(bytecode.Instr{Op: bytecode.OpToArray})
		case ast.SigilHash:
			e.emit(bytecode.Instr{Op: bytecode.OpToHash})
		}
	}

	e.emit(bytecode.Instr{Op: bytecode.OpDup})
	if lexical {
		e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(b.Slot)})
		return
	}
	switch v.Sigil {
	case ast.SigilArray:
		name := e.pkg + "::" + v.Name
		if ok && b.Kind == scope.Our {
			name = b.Global
		}
		e.emit(bytecode.Instr{Op: bytecode.OpStoreGlobalArray, Str: name})
	case ast.SigilHash:
		name := e.pkg + "::" + v.Name
		if ok && b.Kind == scope.Our {
			name = b.Global
		}
		e.emit(bytecode.Instr{Op: bytecode.OpStoreGlobalHash, Str: name})
	default:
		name := e.pkg + "::" + v.Name
		if ok && b.Kind == scope.Our {
			name = b.Global
		}
		e.emit(bytecode.Instr{Op: bytecode.OpStoreGlobal, Str: name})
	}
}

// emitStateInit implements `state $x = EXPR`'s once-only initializer
// (spec.md §4.5: "my with once-initialization semantics, first-write
// guard emitted as a branch on a hidden boolean slot"): the
// initializer runs the first time the statement is reached, later
// passes just yield the variable's current value.
func (e *emitter) emitStateInit(b scope.Binding, v *ast.Node, rhs *ast.Node) {
	guard := e.scope.Declare(ast.SigilScalar, "__state_init_"+v.Name+"__", scope.Implicit).Slot
	e.stateSlots = append(e.stateSlots, b.Slot, guard)
	done := e.newLabel()
	end := e.newLabel()
	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(guard)})
	idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfTrue})
	done.patchOrRecord(idx, e.instrs)
	e.emitExpr(rhs)
	e.emit(bytecode.Instr{Op: bytecode.OpDup})
	e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(b.Slot)})
	e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: 1})
	e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(guard)})
	idx = e.emit(bytecode.Instr{Op: bytecode.OpJump})
	end.patchOrRecord(idx, e.instrs)
	e.placeLabel(done)
	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(b.Slot)})
	e.placeLabel(end)
}

// emitIndexAssign implements `$x[i] = EXPR` / `$x{k} = EXPR`. Compound
// assignment to an indexed element is a documented scope cut.
func (e *emitter) emitIndexAssign(target *ast.Node, opText string, rhs *ast.Node, isHash bool) {
	containerSigil := ast.SigilArray
	if isHash {
		containerSigil = ast.SigilHash
	}
	e.emitContainerRef(target.Children[0], containerSigil)
	e.emitExpr(target.Children[1])
	if opText != "=" {
		e.errorf("emit: compound assignment to an indexed element is not supported")
	}
	e.emitExpr(rhs)
	if isHash {
		e.emit(bytecode.Instr{Op: bytecode.OpKeyIndexStore})
	} else {
		e.emit(bytecode.Instr{Op: bytecode.OpIndexStore})
	}
}

// emitDerefAssign implements `${$ref} = EXPR` / `$$ref = EXPR`.
// Compound assignment through a dereference is a documented scope cut.
func (e *emitter) emitDerefAssign(target *ast.Node, opText string, rhs *ast.Node) {
	e.emitExpr(target.Children[0])
	if opText != "=" {
		e.errorf("emit: compound assignment through a dereference is not supported")
	}
	e.emitExpr(rhs)
	e.emit(bytecode.Instr{Op: bytecode.OpStoreDeref})
}
