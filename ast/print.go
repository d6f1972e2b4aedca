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

package ast

import (
	"fmt"
	"io"
	"strings"
)

var opNames = map[Op]string{
	OpProgram: "program", OpBlock: "block",
	OpIntLit: "int", OpFloatLit: "float", OpStringLit: "string",
	OpInterpString: "interp-string", OpUndefLit: "undef",
	OpArrayLit: "array-lit", OpHashLit: "hash-lit", OpVar: "var",
	OpMy: "my", OpOur: "our", OpState: "state",
	OpSubDecl: "sub-decl", OpAnonSub: "anon-sub", OpPackage: "package",
	OpBinOp: "binop", OpUnOp: "unop", OpAssign: "assign",
	OpTernary: "ternary", OpRange: "range", OpListExpr: "list",
	OpIndex: "index", OpKeyIndex: "key-index", OpSlice: "slice",
	OpDeref: "deref",
	OpArrow: "arrow", OpCall: "call", OpMethodCall: "method-call",
	OpRegexMatch: "regex-match", OpRegexLit: "regex",
	OpExprStmt: "expr-stmt", OpIf: "if", OpUnless: "unless",
	OpWhile: "while", OpUntil: "until", OpForC: "for-c",
	OpForeach: "foreach", OpLast: "last", OpNext: "next",
	OpRedo: "redo", OpGoto: "goto", OpReturn: "return",
	OpLocal: "local", OpEval: "eval", OpDo: "do", OpLabel: "label",
	OpUse: "use", OpStrictPragma: "pragma",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Fprint writes an indented tree listing of n, one node per line, for
// the CLI's --parse diagnostic.
func Fprint(w io.Writer, n *Node) {
	fprint(w, n, 0)
}

func fprint(w io.Writer, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s", indent, n.Op)
	if n.Sigil != 0 {
		fmt.Fprintf(w, " %c%s", n.Sigil, n.Name)
	} else if n.Name != "" {
		fmt.Fprintf(w, " %s", n.Name)
	}
	switch n.Op {
	case OpIntLit:
		fmt.Fprintf(w, " %d", n.Int)
	case OpFloatLit:
		fmt.Fprintf(w, " %g", n.Float)
	case OpStringLit, OpRegexLit:
		fmt.Fprintf(w, " %q", n.Str)
	}
	fmt.Fprintln(w)
	for _, c := range n.Children {
		fprint(w, c, depth+1)
	}
}
