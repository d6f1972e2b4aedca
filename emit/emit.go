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

// Package emit lowers an *ast.Node tree into bytecode.Method streams:
// one per compilation unit's top-level body plus one per named or
// anonymous subroutine, per spec.md §4.6.
package emit

import (
	"fmt"

	"github.com/perl-plc/plc/ast"
	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/scope"
	"github.com/pkg/errors"
)

// Unit is everything Compile produces for one source file: the
// top-level body plus every named and anonymous sub it declares,
// keyed by fully-qualified or synthetic name so the interpreter can
// register them into the symbol table before running Main.
type Unit struct {
	Main *bytecode.Method
	Subs map[string]*bytecode.Method

	anonCtr int
}

// EvalStringSub names the runtime entry point `eval STRING` lowers to:
// the interpreter registers a native sub under this name that
// re-enters the compiler on its argument (spec.md §4.6's "eval STRING
// is lowered to a call into the compiler re-entrantly").
const EvalStringSub = "__eval_string__"

// label tracks a not-yet-placed jump target the same way the
// teacher's asm.parser tracks label sites: a list of patch locations
// recorded before the address is known, resolved once it is
// (asm/parser.go's labelSite/label pattern, generalized from a single
// assembler pass to one per emitted method).
type label struct {
	addr    int
	defined bool
	patches []int // instruction indices whose A field needs addr
}

func (l *label) place(addr int, instrs []bytecode.Instr) {
	l.addr, l.defined = addr, true
	for _, idx := range l.patches {
		instrs[idx].A = int64(addr)
	}
}

func (l *label) patchOrRecord(idx int, instrs []bytecode.Instr) {
	if l.defined {
		instrs[idx].A = int64(l.addr)
		return
	}
	l.patches = append(l.patches, idx)
}

// loopFrame records the jump targets `last`/`next`/`redo` resolve to
// for the loop currently being emitted, plus its optional label
// (spec.md §4.7's four loop labels: redo, next/continue, last/exit,
// and the control-flow-handler join point consuming propagated
// Signals from nested calls).
type loopFrame struct {
	label     string
	redoLabel *label
	nextLabel *label
	lastLabel *label
	// localBase is the live `local` count at loop entry; a lexical
	// last/next/redo emits pops down to it before jumping.
	localBase int
}

// emitter holds the mutable state for compiling one Method.
type emitter struct {
	unit   *Unit
	scope  *scope.Stack
	instrs []bytecode.Instr
	loops  []*loopFrame
	labels map[string]*label // named Perl labels (goto targets), method-scoped
	errs   []error
	pkg    string

	// parent is the lexically enclosing method's emitter for anonymous
	// subs; lookups that miss this method's own scope walk up through
	// it and record a pad capture (spec.md §3's code-reference
	// "captured environment").
	parent   *emitter
	captures []bytecode.Capture
	capMap   map[capKey]int

	// stateSlots accumulates pad slots declared `state` (plus their
	// hidden guards) for the Method's cross-activation persistence.
	stateSlots []int

	// localCount tracks how many `local` saves are live on the current
	// emission path so every block and loop exit emits the matching
	// number of OpLocalPop instructions (spec.md §5's "every local push
	// is matched by a pop on every exit path").
	localCount int
}

type capKey struct {
	sigil ast.Sigil
	name  string
}

// resolveLex looks a variable up in this method's lexical scope, then
// in enclosing methods' scopes. A hit in an enclosing method allocates
// a slot here and records a capture pairing, so OpLoadAnonCode can
// alias the outer pad slot into the closure's own pad at run time.
func (e *emitter) resolveLex(sigil ast.Sigil, name string) (scope.Binding, bool) {
	if b, ok := e.scope.Lookup(sigil, name); ok {
		return b, true
	}
	if e.parent == nil {
		return scope.Binding{}, false
	}
	pb, ok := e.parent.resolveLex(sigil, name)
	if !ok || pb.Kind == scope.Our {
		return pb, ok
	}
	key := capKey{sigil, name}
	if e.capMap == nil {
		e.capMap = make(map[capKey]int)
	}
	if inner, seen := e.capMap[key]; seen {
		return scope.Binding{Slot: inner, Kind: pb.Kind}, true
	}
	b := e.scope.Declare(sigil, name, pb.Kind)
	e.capMap[key] = b.Slot
	e.captures = append(e.captures, bytecode.Capture{Outer: pb.Slot, Inner: b.Slot})
	return b, true
}

// Compile lowers a parsed program into a Unit. The caller (the
// interpreter) is responsible for registering Unit.Subs into the
// symbol table before running Unit.Main.
func Compile(prog *ast.Node) (*Unit, error) {
	u := &Unit{Subs: make(map[string]*bytecode.Method)}
	e := &emitter{unit: u, scope: scope.New(), labels: make(map[string]*label), pkg: "main"}
	e.hoistSubs(prog)
	// The top-level body is a value-producing block like a sub body:
	// its trailing expression is the unit's result, which is what
	// `eval STRING` observes when it re-enters the compiler.
	var stmtOffsets []int
	lastIsExpr := false
	for i, stmt := range prog.Children {
		if stmt.Op == ast.OpSubDecl {
			continue
		}
		stmtOffsets = append(stmtOffsets, len(e.instrs))
		if i == len(prog.Children)-1 && stmt.Op == ast.OpExprStmt {
			e.emitExpr(stmt.Children[0])
			lastIsExpr = true
			continue
		}
		e.emitStmt(stmt)
	}
	if lastIsExpr {
		e.emit(bytecode.Instr{Op: bytecode.OpReturn, A: 1})
	} else {
		e.emit(bytecode.Instr{Op: bytecode.OpReturn, A: 0})
	}
	u.Main = &bytecode.Method{Name: "main", Instrs: e.instrs, NumSlots: e.scope.SlotCount(), Package: e.pkg, StateSlots: e.stateSlots}
	if len(e.errs) > 0 {
		return u, combineErrors(e.errs)
	}
	applySizeFallback(u, stmtOffsets)
	return u, nil
}

func combineErrors(errs []error) error {
	msg := ""
	for _, e := range errs {
		msg += e.Error() + "\n"
	}
	return errors.New(msg)
}

func (e *emitter) emit(in bytecode.Instr) int {
	e.instrs = append(e.instrs, in)
	return len(e.instrs) - 1
}

func (e *emitter) errorf(format string, args ...interface{}) {
	e.errs = append(e.errs, fmt.Errorf(format, args...))
}

func (e *emitter) newLabel() *label { return &label{} }

func (e *emitter) placeLabel(l *label) { l.place(len(e.instrs), e.instrs) }

// hoistSubs compiles every named subroutine, including those declared
// inside nested blocks, before any statement runs, matching Perl's
// compile-time sub binding, so forward calls resolve; emitStmt skips
// the OpSubDecl nodes afterwards. Because they are compiled here and
// not at their position in the block, named subs do not capture the
// enclosing lexical pad.
func (e *emitter) hoistSubs(n *ast.Node) {
	for _, c := range n.Children {
		switch c.Op {
		case ast.OpSubDecl:
			e.emitSubDecl(c)
		case ast.OpAnonSub:
			// compiled at its use site, where the enclosing pad is known
		default:
			e.hoistSubs(c)
		}
	}
}
