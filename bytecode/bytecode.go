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

// Package bytecode defines the stack-machine target the emitter lowers
// AST into and the interpreter loop that runs it, generalized from an
// integer Forth VM to a Perl scalar/list value model (spec.md §4.6,
// §4.7).
package bytecode

import "github.com/perl-plc/plc/value"

// Op is one bytecode instruction opcode.
type Op int

const (
	OpNop Op = iota
	OpConstInt
	OpConstFloat
	OpConstString
	OpConstUndef
	OpPop
	OpDup

	OpLoadLex    // load lexical pad slot A
	OpStoreLex   // store top of stack to lexical pad slot A
	OpLoadGlobal // load global scalar named Str
	OpStoreGlobal
	OpLoadGlobalArray
	OpLoadGlobalHash
	OpLoadArg       // A = positional index into @_, copied
	OpLoadArgsArray // pushes a reference to the current call's @_

	OpLocalPush // Str = global scalar name; saves its value on the local stack, restored at scope exit via OpLocalPop
	OpLocalPop

	OpMakeArray // build an anonymous array (unmarked reference) from A stack values
	OpMakeHash  // build an anonymous hash (unmarked reference) from A stack (key,value) pairs
	OpMakeList  // build a marked, flattening list from A stack values
	OpToArray   // pop a value, flatten it, push a fresh marked array holding copies
	OpToHash    // pop a value, flatten it, push a fresh marked hash built pairwise
	OpIndex     // $a[EXPR]
	OpKeyIndex  // $a{EXPR}
	OpSlice     // Str = "array" | "hash" | "kv"; stack: container, index-list -> marked list
	OpArrayLen  // pops an array ref, pushes its element count
	OpArrow     // -> chain step
	OpDeref

	OpIndexStore       // stack: recv, idx, value -> stores value at recv[idx], re-pushes value
	OpKeyIndexStore    // stack: recv, key, value -> stores value at recv{key}, re-pushes value
	OpMakeScalarRef    // pops a scalar handle, pushes a reference to that same handle (true aliasing)
	OpStoreGlobalArray // Str = name; pops an array-ref value, replaces the named global array wholesale
	OpStoreGlobalHash  // Str = name; pops a hash-ref value, replaces the named global hash wholesale

	OpBinOp // Str names the operator
	OpUnOp
	OpRange      // pops hi, lo; pushes an array ref of lo..hi
	OpStoreDeref // stack: ref, value -> stores value through ref, re-pushes value

	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	OpCall         // Str = sub name, A = arg count already pushed as one list
	OpCallDyn      // call the code value on top of the stack
	OpMethodCall   // Str = method name
	OpLoadAnonCode // Str = synthetic sub name registered in the owning Unit

	OpRegexMatch   // Str = pattern
	OpRegexBind    // =~ / !~ against a specific target already on the stack
	OpRegexCapture // A = capture ordinal ($1..$n); Str = "&", "`", "'" for the derived views

	OpReturn // returns A values (0 or 1 "return the list below") from the method
	OpLast
	OpNext
	OpRedo
	OpGoto

	OpEvalBegin // A = address to resume at (with $@ set) if the region raises
	OpEvalEnd   // normal-exit marker for the region opened by the matching OpEvalBegin

	OpLoopBegin // Str = label; A/B/C = redo/next/last addresses; pushes a runtime loop frame
	OpLoopEnd   // pops the innermost runtime loop frame

	OpRegexSnapPush // block entry for a block containing match operations
	OpRegexSnapPop  // matching block-exit restore

	OpLine // Str/A carry source position for diagnostics; no stack effect
)

// Instr is one bytecode instruction. Operand fields are reused across
// opcodes the same way the teacher's single-width Cell stream encodes
// both opcodes and their immediate operands (vm/opcodes.go), except
// here we keep the operands typed instead of packing everything into
// one integer cell, since Perl values aren't integers.
type Instr struct {
	Op   Op
	A    int64   // integer operand: slot index, jump target, arg count
	B, C int64   // extra jump targets (OpLoopBegin's next/last addresses)
	F    float64 // float constant
	Str  string  // string constant, operator name, sub/method/global name
	Line int     // source line, for diagnostics and disassembly
}

// Method is one compiled unit: a top-level program body or a named or
// anonymous subroutine (spec.md §4.6 "per compilation-unit method
// emission").
type Method struct {
	Name     string
	Instrs   []Instr
	NumSlots int // lexical pad size, from scope.Stack.SlotCount
	Package  string

	// Code holds the compact backend's artifact when the inline
	// instruction slice was too large for the platform limit; Instrs
	// is nil until the first run decodes it.
	Code *CompactCode

	// Captures lists the pad slots this method aliases from its
	// lexically enclosing method's pad: Outer indexes the enclosing
	// pad at closure-creation time, Inner the slot in this method's
	// own pad (spec.md §3's "captured environment: array of handles
	// to lexical slots").
	Captures []Capture

	// StateSlots lists pad slots declared `state` (including their
	// hidden init guards): their scalars persist across activations
	// instead of being re-cleared at method entry (spec.md §4.5).
	StateSlots []int

	stateVals map[int]*value.Scalar
}

// Capture is one closed-over slot pairing.
type Capture struct {
	Outer, Inner int
}

// MaxMethodInstrs is the size threshold above which the emitter leaves
// the inline form: an oversized main body is first split into hoisted
// chunk methods, and a chunk or sub still over the limit is packed into
// the compact encoding (spec.md §4.6, §9's size-fallback design note).
const MaxMethodInstrs = 1 << 16
