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
	"github.com/perl-plc/plc/ast"
	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/scope"
)

func (e *emitter) emitStmt(n *ast.Node) {
	// Statement boundary: the cooperative signal-check point of
	// spec.md §5, where the interpreter tests the die flag. Loop-control
	// markers are not read here: bytecode.Interp takes them from the
	// control-flow registry after each call.
	e.emit(bytecode.Instr{Op: bytecode.OpLine, A: int64(n.Tok)})
	switch n.Op {
	case ast.OpExprStmt:
		e.emitExpr(n.Children[0])
		e.emit(bytecode.Instr{Op: bytecode.OpPop})
	case ast.OpBlock:
		e.emitBlock(n)
	case ast.OpIf, ast.OpUnless:
		e.emitIf(n)
	case ast.OpWhile, ast.OpUntil:
		e.emitWhile(n, "")
	case ast.OpForeach:
		e.emitForeach(n, "")
	case ast.OpForC:
		e.emitForC(n, "")
	case ast.OpLabel:
		e.emitLabeled(n)
	case ast.OpLast, ast.OpNext, ast.OpRedo:
		e.emitLoopControl(n)
	case ast.OpGoto:
		e.emit(bytecode.Instr{Op: bytecode.OpGoto, Str: n.Name})
	case ast.OpReturn:
		e.emitReturn(n)
	case ast.OpPackage:
		prev := e.pkg
		e.pkg = n.Name
		e.scope.SetPackage(n.Name)
		if len(n.Children) > 0 {
			e.emitBlock(n.Children[0])
			e.pkg = prev
			e.scope.SetPackage(prev)
		}
	case ast.OpUse, ast.OpStrictPragma:
		e.emitUse(n)
	case ast.OpSubDecl:
		// already compiled by hoistSubs; nothing to emit at the
		// declaration site itself (Perl's compile-time sub binding).
	default:
		e.emitExpr(n)
		e.emit(bytecode.Instr{Op: bytecode.OpPop})
	}
}

func (e *emitter) emitBlock(n *ast.Node) {
	e.scope.Push()
	base := e.localCount
	snap := blockHasRegex(n)
	if snap {
		e.emit(bytecode.Instr{Op: bytecode.OpRegexSnapPush})
	}
	for _, stmt := range n.Children {
		if stmt.Op == ast.OpSubDecl {
			continue // hoisted
		}
		e.emitStmt(stmt)
	}
	e.emitScopeExit(base, snap)
	e.scope.Pop()
}

// emitScopeExit tears down everything a block set up on the dynamic
// side: one OpLocalPop per live `local` entered inside it, then the
// regex-state restore if the block pushed a snapshot. Every normal
// exit path runs this; non-local exits (markers from callees) unwind
// via the loop frame's recorded mark instead.
func (e *emitter) emitScopeExit(base int, snap bool) {
	for e.localCount > base {
		e.emit(bytecode.Instr{Op: bytecode.OpLocalPop})
		e.localCount--
	}
	if snap {
		e.emit(bytecode.Instr{Op: bytecode.OpRegexSnapPop})
	}
}

// blockHasRegex reports whether a block syntactically contains a
// match or substitution, excluding nested sub bodies, which snapshot
// for themselves (spec.md §4.2's regex-state stack rule).
func blockHasRegex(n *ast.Node) bool {
	if n.Op == ast.OpRegexLit || n.Op == ast.OpRegexMatch {
		return true
	}
	if n.Op == ast.OpAnonSub || n.Op == ast.OpSubDecl {
		return false
	}
	for _, c := range n.Children {
		if blockHasRegex(c) {
			return true
		}
	}
	return false
}

// emitIf lowers OpIf/OpUnless's flattened (cond,then,[elsifcond,elsifthen]*,[else])
// children list into a cascade of conditional jumps.
func (e *emitter) emitIf(n *ast.Node) {
	endLabel := e.newLabel()
	children := n.Children
	negateFirst := n.Op == ast.OpUnless
	i := 0
	for i+1 < len(children) {
		cond, then := children[i], children[i+1]
		isLast := i+2 >= len(children) || (i+2 == len(children)-1)
		e.emitExpr(cond)
		if i == 0 && negateFirst {
			e.emit(bytecode.Instr{Op: bytecode.OpUnOp, Str: "!"})
		}
		skip := e.newLabel()
		idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
		skip.patchOrRecord(idx, e.instrs)
		e.emitBlock(then)
		idx = e.emit(bytecode.Instr{Op: bytecode.OpJump})
		endLabel.patchOrRecord(idx, e.instrs)
		e.placeLabel(skip)
		i += 2
		_ = isLast
	}
	if i < len(children) {
		e.emitBlock(children[i]) // trailing else block
	}
	e.placeLabel(endLabel)
}

func (e *emitter) emitWhile(n *ast.Node, label string) {
	negate := n.Op == ast.OpUntil
	cond, body := n.Children[0], n.Children[1]

	lbIdx := e.emit(bytecode.Instr{Op: bytecode.OpLoopBegin, Str: label})
	top := e.newLabel()
	e.placeLabel(top)
	exit := e.newLabel()

	lf := &loopFrame{label: label, redoLabel: e.newLabel(), nextLabel: e.newLabel(), lastLabel: exit, localBase: e.localCount}
	e.loops = append(e.loops, lf)

	e.emitExpr(cond)
	if negate {
		e.emit(bytecode.Instr{Op: bytecode.OpUnOp, Str: "!"})
	}
	idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
	exit.patchOrRecord(idx, e.instrs)

	e.placeLabel(lf.redoLabel)
	e.emitBlock(body)
	e.placeLabel(lf.nextLabel)
	idx = e.emit(bytecode.Instr{Op: bytecode.OpJump})
	top.patchOrRecord(idx, e.instrs)
	e.placeLabel(exit)
	e.emit(bytecode.Instr{Op: bytecode.OpLoopEnd})

	e.loops = e.loops[:len(e.loops)-1]
	e.patchLoopBegin(lbIdx, lf)
}

// patchLoopBegin backfills a loop's runtime frame descriptor once all
// three control addresses are known: redo and next stay inside the
// frame, last lands after the OpLoopEnd so a marker-driven exit does
// not double-pop the frame it already consumed.
func (e *emitter) patchLoopBegin(lbIdx int, lf *loopFrame) {
	e.instrs[lbIdx].A = int64(lf.redoLabel.addr)
	e.instrs[lbIdx].B = int64(lf.nextLabel.addr)
	e.instrs[lbIdx].C = int64(len(e.instrs))
}

// emitForeach lowers `foreach [my] $var (LIST) BLOCK` to: stash the
// list as an array of copies in a hidden pad slot, walk it by index,
// and copy each element into $var's slot before every iteration.
// $var is a copy, not an alias: assigning to it inside the loop does
// not change the element of the original list.
func (e *emitter) emitForeach(n *ast.Node, label string) {
	var loopVar *ast.Node
	list := n.Children[0]
	body := n.Children[1]
	if len(n.Children) == 3 {
		loopVar = n.Children[0]
		list = n.Children[1]
		body = n.Children[2]
	}

	e.scope.Push()

	arrSlot := e.scope.Declare(ast.SigilArray, "__foreach_arr__", scope.Implicit).Slot
	idxSlot := e.scope.Declare(ast.SigilScalar, "__foreach_idx__", scope.Implicit).Slot

	e.emitExpr(list)
	e.emit(bytecode.Instr{Op: bytecode.OpToArray})
	e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(arrSlot)})
	e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: 0})
	e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(idxSlot)})

	var varSlot int
	hasVar := loopVar != nil
	if hasVar {
		v := loopVar
		if v.Op == ast.OpMy || v.Op == ast.OpOur {
			v = v.Children[0]
		}
		varSlot = e.scope.Declare(ast.SigilScalar, v.Name, scope.My).Slot
	} else {
		// An implicit loop variable dynamically scopes $_ to the loop,
		// restoring whatever it held outside (Perl's `for (LIST)`).
		e.emit(bytecode.Instr{Op: bytecode.OpLocalPush, Str: "main::_"})
		e.localCount++
	}

	lbIdx := e.emit(bytecode.Instr{Op: bytecode.OpLoopBegin, Str: label})
	top := e.newLabel()
	e.placeLabel(top)
	exit := e.newLabel()

	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(idxSlot)})
	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(arrSlot)})
	e.emit(bytecode.Instr{Op: bytecode.OpArrayLen})
	e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: "<"})
	idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
	exit.patchOrRecord(idx, e.instrs)

	lf := &loopFrame{label: label, redoLabel: e.newLabel(), nextLabel: e.newLabel(), lastLabel: exit, localBase: e.localCount}
	e.loops = append(e.loops, lf)

	e.placeLabel(lf.redoLabel)
	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(arrSlot)})
	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(idxSlot)})
	e.emit(bytecode.Instr{Op: bytecode.OpIndex})
	if hasVar {
		e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(varSlot)})
	} else {
		e.emit(bytecode.Instr{Op: bytecode.OpStoreGlobal, Str: "main::_"})
	}
	e.emitBlock(body)
	e.placeLabel(lf.nextLabel)
	e.emit(bytecode.Instr{Op: bytecode.OpLoadLex, A: int64(idxSlot)})
	e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: 1})
	e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: "+"})
	e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(idxSlot)})
	idx = e.emit(bytecode.Instr{Op: bytecode.OpJump})
	top.patchOrRecord(idx, e.instrs)
	e.placeLabel(exit)
	e.emit(bytecode.Instr{Op: bytecode.OpLoopEnd})

	e.loops = e.loops[:len(e.loops)-1]
	e.patchLoopBegin(lbIdx, lf)
	if !hasVar {
		e.emit(bytecode.Instr{Op: bytecode.OpLocalPop})
		e.localCount--
	}
	e.scope.Pop()
}

func (e *emitter) emitForC(n *ast.Node, label string) {
	init, cond, step, body := n.Children[0], n.Children[1], n.Children[2], n.Children[3]
	e.scope.Push()
	e.emitExpr(init)
	e.emit(bytecode.Instr{Op: bytecode.OpPop})

	lbIdx := e.emit(bytecode.Instr{Op: bytecode.OpLoopBegin, Str: label})
	top := e.newLabel()
	e.placeLabel(top)
	exit := e.newLabel()
	if cond.Op == ast.OpUndefLit {
		e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: 1}) // for (;;) never tests false
	} else {
		e.emitExpr(cond)
	}
	idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
	exit.patchOrRecord(idx, e.instrs)

	lf := &loopFrame{label: label, redoLabel: e.newLabel(), nextLabel: e.newLabel(), lastLabel: exit, localBase: e.localCount}
	e.loops = append(e.loops, lf)

	e.placeLabel(lf.redoLabel)
	e.emitBlock(body)
	e.placeLabel(lf.nextLabel)
	e.emitExpr(step)
	e.emit(bytecode.Instr{Op: bytecode.OpPop})
	idx = e.emit(bytecode.Instr{Op: bytecode.OpJump})
	top.patchOrRecord(idx, e.instrs)
	e.placeLabel(exit)
	e.emit(bytecode.Instr{Op: bytecode.OpLoopEnd})

	e.loops = e.loops[:len(e.loops)-1]
	e.patchLoopBegin(lbIdx, lf)
	e.scope.Pop()
}

// emitLabeled handles `LABEL: while (...) {}`-style labeled loops by
// re-dispatching to the relevant loop-emitter with the label attached.
func (e *emitter) emitLabeled(n *ast.Node) {
	inner := n.Children[0]
	switch inner.Op {
	case ast.OpWhile, ast.OpUntil:
		e.emitWhile(inner, n.Name)
	case ast.OpForeach:
		e.emitForeach(inner, n.Name)
	case ast.OpForC:
		e.emitForC(inner, n.Name)
	default:
		e.emitStmt(inner)
	}
}

// emitLoopControl resolves `last`/`next`/`redo [LABEL]` against the
// innermost matching loopFrame (spec.md §4.7's loop-label semantics),
// falling back to a runtime Signal the interpreter's join-point
// protocol will propagate outward if no matching loop is lexically
// enclosing (e.g. `last` crossing a sub-call boundary via a bare
// bytecode.OpLast/Next/Redo carrying the label).
func (e *emitter) emitLoopControl(n *ast.Node) {
	var lf *loopFrame
	lfIdx := -1
	for i := len(e.loops) - 1; i >= 0; i-- {
		if n.Name == "" || e.loops[i].label == n.Name {
			lf = e.loops[i]
			lfIdx = i
			break
		}
	}
	if lf == nil {
		var op bytecode.Op
		switch n.Op {
		case ast.OpLast:
			op = bytecode.OpLast
		case ast.OpNext:
			op = bytecode.OpNext
		case ast.OpRedo:
			op = bytecode.OpRedo
		}
		e.emit(bytecode.Instr{Op: op, Str: n.Name})
		return
	}
	// This jump leaves every block between here and the loop without
	// running their teardown; emit the skipped `local` pops and the
	// runtime frames of any loops being jumped over, so the dynamic
	// stack and the loop-frame stack both stay balanced (spec.md §5).
	for i := e.localCount - lf.localBase; i > 0; i-- {
		e.emit(bytecode.Instr{Op: bytecode.OpLocalPop})
	}
	for i := len(e.loops) - 1; i > lfIdx; i-- {
		e.emit(bytecode.Instr{Op: bytecode.OpLoopEnd})
	}
	var target *label
	var op bytecode.Op
	switch n.Op {
	case ast.OpLast:
		target, op = lf.lastLabel, bytecode.OpJump
	case ast.OpNext:
		target, op = lf.nextLabel, bytecode.OpJump
	case ast.OpRedo:
		target, op = lf.redoLabel, bytecode.OpJump
	}
	idx := e.emit(bytecode.Instr{Op: op})
	target.patchOrRecord(idx, e.instrs)
}

func (e *emitter) emitReturn(n *ast.Node) {
	if len(n.Children) == 0 {
		e.emit(bytecode.Instr{Op: bytecode.OpReturn, A: 0})
		return
	}
	e.emitExpr(n.Children[0])
	e.emit(bytecode.Instr{Op: bytecode.OpReturn, A: 1})
}

func (e *emitter) emitUse(n *ast.Node) {
	strict := e.scope.Strict()
	switch n.Name {
	case "strict":
		strict.Refs, strict.Vars, strict.Subs = true, true, true
	case "integer":
		strict.Integer = true
	case "bytes":
		strict.Bytes = true
	}
	e.scope.SetStrict(strict)
}
