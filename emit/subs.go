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
	"github.com/perl-plc/plc/parse"
	"github.com/perl-plc/plc/scope"
)

// emitSubDecl compiles a named subroutine into its own Method and
// registers it under its package-qualified name, ahead of any
// statement running (Perl's compile-time sub binding, spec.md §4.6).
func (e *emitter) emitSubDecl(n *ast.Node) {
	qualified := e.pkg + "::" + n.Name
	var sig *parse.Signature
	if a, ok := n.Annotation("signature"); ok {
		sig = a.(*parse.Signature)
	}
	// Named subs are hoisted ahead of the statements around them, so
	// they see package globals and @_ but never capture the enclosing
	// pad (parent == nil); only anonymous subs close over lexicals.
	e.unit.Subs[qualified] = e.compileSubMethod(qualified, sig, n.Children[0], nil)
}

// emitAnonSub compiles an anonymous sub body under a synthetic name
// and leaves a reference to it on the stack, the way `sub { ... }`
// evaluates to a code ref rather than binding a name. The enclosing
// emitter is passed through so free variables in the body resolve to
// captured pad slots.
func (e *emitter) emitAnonSub(n *ast.Node) {
	e.unit.anonCtr++
	name := anonName(e.pkg, e.unit.anonCtr)
	var sig *parse.Signature
	if a, ok := n.Annotation("signature"); ok {
		sig = a.(*parse.Signature)
	}
	e.unit.Subs[name] = e.compileSubMethod(name, sig, n.Children[0], e)
	e.emit(bytecode.Instr{Op: bytecode.OpLoadAnonCode, Str: name})
}

func anonName(pkg string, n int) string {
	return pkg + "::__ANON__" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// compileSubMethod lowers one sub body into a bytecode.Method with a
// fresh pad and scope, sharing this unit's Subs registry. A sub body's
// value is its last evaluated expression, so the body is emitted the
// way do-blocks are: the trailing expression survives and feeds the
// implicit return.
func (e *emitter) compileSubMethod(name string, sig *parse.Signature, body *ast.Node, parent *emitter) *bytecode.Method {
	sub := &emitter{unit: e.unit, scope: scope.New(), labels: make(map[string]*label), pkg: e.pkg, parent: parent}
	sub.scope.SetPackage(e.pkg)
	sub.hoistSubs(body)
	sub.emitSignature(sig)
	sub.emitBlockValue(body)
	sub.emit(bytecode.Instr{Op: bytecode.OpReturn, A: 1})
	e.errs = append(e.errs, sub.errs...)
	return &bytecode.Method{
		Name:       name,
		Instrs:     sub.instrs,
		NumSlots:   sub.scope.SlotCount(),
		Package:    e.pkg,
		Captures:   sub.captures,
		StateSlots: sub.stateSlots,
	}
}

// emitSignature lowers a parenthesized parameter list into positional
// `my $x = $_[i]`-style bindings against the call's @_ (spec.md's
// supplemental signature support, grounded in how original_source/
// unpacks arguments explicitly rather than via magic prototypes).
func (e *emitter) emitSignature(sig *parse.Signature) {
	if sig == nil {
		return
	}
	for i, param := range sig.Params {
		slot := e.scope.Declare(param.Sigil, param.Name, scope.My).Slot
		switch param.Sigil {
		case ast.SigilArray, ast.SigilHash:
			// slurpy trailing parameter: bind the rest of @_, i.e.
			// @_[i .. $#_], copied into a fresh array or hash.
			e.emit(bytecode.Instr{Op: bytecode.OpLoadArgsArray})
			e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: int64(i)})
			e.emit(bytecode.Instr{Op: bytecode.OpLoadArgsArray})
			e.emit(bytecode.Instr{Op: bytecode.OpArrayLen})
			e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: 1})
			e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: "-"})
			e.emit(bytecode.Instr{Op: bytecode.OpRange})
			e.emit(bytecode.Instr{Op: bytecode.OpSlice, Str: "array"})
			if param.Sigil == ast.SigilHash {
				e.emit(bytecode.Instr{Op: bytecode.OpToHash})
			} else {
				e.emit(bytecode.Instr{Op: bytecode.OpToArray})
			}
			e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(slot)})
		default:
			if param.Default != nil {
				e.emit(bytecode.Instr{Op: bytecode.OpLoadArgsArray})
				e.emit(bytecode.Instr{Op: bytecode.OpArrayLen})
				e.emit(bytecode.Instr{Op: bytecode.OpConstInt, A: int64(i)})
				e.emit(bytecode.Instr{Op: bytecode.OpBinOp, Str: ">"})
				defaultLabel := e.newLabel()
				idx := e.emit(bytecode.Instr{Op: bytecode.OpJumpIfFalse})
				defaultLabel.patchOrRecord(idx, e.instrs)
				e.emit(bytecode.Instr{Op: bytecode.OpLoadArg, A: int64(i)})
				doneLabel := e.newLabel()
				jidx := e.emit(bytecode.Instr{Op: bytecode.OpJump})
				doneLabel.patchOrRecord(jidx, e.instrs)
				e.placeLabel(defaultLabel)
				e.emitExpr(param.Default)
				e.placeLabel(doneLabel)
			} else {
				e.emit(bytecode.Instr{Op: bytecode.OpLoadArg, A: int64(i)})
			}
			e.emit(bytecode.Instr{Op: bytecode.OpStoreLex, A: int64(slot)})
		}
	}
}
