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

package bytecode

import (
	"fmt"
	"strings"
)

var opNames = [...]string{
	OpNop:              "nop",
	OpConstInt:         "const.int",
	OpConstFloat:       "const.float",
	OpConstString:      "const.str",
	OpConstUndef:       "const.undef",
	OpPop:              "pop",
	OpDup:              "dup",
	OpLoadLex:          "load.lex",
	OpStoreLex:         "store.lex",
	OpLoadGlobal:       "load.global",
	OpStoreGlobal:      "store.global",
	OpLoadGlobalArray:  "load.global.array",
	OpLoadGlobalHash:   "load.global.hash",
	OpLoadArg:          "load.arg",
	OpLoadArgsArray:    "load.args.array",
	OpLocalPush:        "local.push",
	OpLocalPop:         "local.pop",
	OpMakeArray:        "make.array",
	OpMakeHash:         "make.hash",
	OpMakeList:         "make.list",
	OpToArray:          "to.array",
	OpToHash:           "to.hash",
	OpIndex:            "index",
	OpKeyIndex:         "keyindex",
	OpSlice:            "slice",
	OpArrayLen:         "array.len",
	OpArrow:            "arrow",
	OpDeref:            "deref",
	OpIndexStore:       "index.store",
	OpKeyIndexStore:    "keyindex.store",
	OpMakeScalarRef:    "ref.scalar",
	OpStoreGlobalArray: "store.global.array",
	OpStoreGlobalHash:  "store.global.hash",
	OpBinOp:            "binop",
	OpUnOp:             "unop",
	OpRange:            "range",
	OpStoreDeref:       "store.deref",
	OpJump:             "jump",
	OpJumpIfFalse:      "jump.iffalse",
	OpJumpIfTrue:       "jump.iftrue",
	OpCall:             "call",
	OpCallDyn:          "call.dyn",
	OpMethodCall:       "call.method",
	OpLoadAnonCode:     "load.anoncode",
	OpRegexMatch:       "regex.match",
	OpRegexBind:        "regex.bind",
	OpRegexCapture:     "regex.capture",
	OpReturn:           "return",
	OpLast:             "last",
	OpNext:             "next",
	OpRedo:             "redo",
	OpGoto:             "goto",
	OpEvalBegin:        "eval.begin",
	OpEvalEnd:          "eval.end",
	OpLoopBegin:        "loop.begin",
	OpLoopEnd:          "loop.end",
	OpRegexSnapPush:    "regex.snap.push",
	OpRegexSnapPop:     "regex.snap.pop",
	OpLine:             "line",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Disassemble renders a Method as one line per instruction, grounded
// on the teacher's asm.Disassemble listing format (address, mnemonic,
// operand).
func Disassemble(m *Method) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; %s\n", m.Name)
	for i, in := range m.ensureInstrs() {
		fmt.Fprintf(&b, "%6d\t%s", i, in.Op)
		switch in.Op {
		case OpConstInt, OpLoadLex, OpStoreLex, OpJump, OpJumpIfFalse, OpJumpIfTrue,
			OpMakeArray, OpMakeHash, OpMakeList, OpCall, OpCallDyn, OpReturn, OpEvalBegin, OpLoadArg:
			fmt.Fprintf(&b, " %d", in.A)
		case OpLoopBegin:
			fmt.Fprintf(&b, " %d %d %d", in.A, in.B, in.C)
		case OpConstFloat:
			fmt.Fprintf(&b, " %g", in.F)
		}
		switch in.Op {
		case OpConstString, OpLoadGlobal, OpStoreGlobal, OpLoadGlobalArray, OpLoadGlobalHash,
			OpStoreGlobalArray, OpStoreGlobalHash,
			OpLocalPush, OpCall, OpMethodCall, OpLoadAnonCode, OpBinOp, OpUnOp, OpRegexMatch,
			OpLast, OpNext, OpRedo, OpGoto:
			if in.Str != "" {
				fmt.Fprintf(&b, " %q", in.Str)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
