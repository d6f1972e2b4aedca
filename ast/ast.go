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

// Package ast defines the uniform AST node shape shared by the parser
// and the emitter (spec.md §3: "AST node").
package ast

// Op tags every node with its operator/statement kind. Node shape is
// uniform (op + children + annotations) rather than one Go type per
// production, mirroring the teacher's flat opcode-indexed design in
// vm/opcodes.go generalized from bytecode to syntax tree nodes.
type Op int

const (
	OpProgram Op = iota
	OpBlock

	// literals and variables
	OpIntLit
	OpFloatLit
	OpStringLit
	OpInterpString // children are literal chunks and var-ref nodes
	OpUndefLit
	OpArrayLit
	OpHashLit
	OpVar // Sigil + Name set, declaration-kind resolved by scope pass

	// declarations
	OpMy
	OpOur
	OpState
	OpSubDecl
	OpAnonSub
	OpPackage

	// expressions
	OpBinOp  // Name = operator text ("+", ".", "==", ...)
	OpUnOp   // Name = operator text ("-", "!", "\\", ...)
	OpAssign // Name = operator text ("=", "+=", ...)
	OpTernary
	OpRange
	OpListExpr // comma-expression / list literal
	OpIndex    // $a[EXPR]
	OpKeyIndex // $a{EXPR}
	OpSlice    // @a[...], @h{...}, %h{...}; Str = "array" | "hash" | "kv"
	OpDeref    // ${EXPR}, @{EXPR}, %{EXPR}, block-dereference
	OpArrow    // -> chain: ->[ ], ->{ }, ->( ), ->method
	OpCall     // named sub call
	OpMethodCall
	OpRegexMatch // =~ / !~
	OpRegexLit

	// statements
	OpExprStmt
	OpIf
	OpUnless
	OpWhile
	OpUntil
	OpForC    // C-style for(;;)
	OpForeach // for/foreach my $x (LIST)
	OpLast
	OpNext
	OpRedo
	OpGoto
	OpReturn
	OpLocal
	OpEval
	OpDo
	OpLabel
	OpUse
	OpStrictPragma
)

// Sigil identifies a variable's namespace-selecting leading character
// (GLOSSARY: "Sigil").
type Sigil byte

const (
	SigilScalar Sigil = '$'
	SigilArray  Sigil = '@'
	SigilHash   Sigil = '%'
	SigilCode   Sigil = '&'
	SigilGlob   Sigil = '*'
)

// Node is the single AST node type: an operator tag, children, a
// source-token index for diagnostics, and a sparse annotation map for
// emitter-side hints (spec.md §3's exact wording).
type Node struct {
	Op       Op
	Children []*Node
	Tok      int // index into the token stream that produced this node

	// scalar payload slots; which are meaningful depends on Op.
	Sigil Sigil
	Name  string
	Int   int64
	Float float64
	Str   string

	Annotations map[string]interface{}
}

func New(op Op, tok int, children ...*Node) *Node {
	return &Node{Op: op, Tok: tok, Children: children}
}

// Annotate attaches an emitter-side hint, e.g. "needs array-of-alias"
// or "is declared reference" (spec.md §3, §4.4).
func (n *Node) Annotate(key string, val interface{}) {
	if n.Annotations == nil {
		n.Annotations = make(map[string]interface{})
	}
	n.Annotations[key] = val
}

func (n *Node) Annotation(key string) (interface{}, bool) {
	if n.Annotations == nil {
		return nil, false
	}
	v, ok := n.Annotations[key]
	return v, ok
}

// Lvalue classification, assigned by the second visitor pass described
// in spec.md §4.4 ("Lvalue analysis").
type LvalueKind int

const (
	NotLvalue LvalueKind = iota
	ScalarLvalue
	ListLvalue
)

const annotationLvalue = "lvalue"
const annotationDeclaredRef = "declared-ref"

func (n *Node) SetLvalue(k LvalueKind) { n.Annotate(annotationLvalue, k) }

func (n *Node) Lvalue() LvalueKind {
	v, ok := n.Annotation(annotationLvalue)
	if !ok {
		return NotLvalue
	}
	return v.(LvalueKind)
}

func (n *Node) SetDeclaredRef(b bool) { n.Annotate(annotationDeclaredRef, b) }

func (n *Node) DeclaredRef() bool {
	v, ok := n.Annotation(annotationDeclaredRef)
	return ok && v.(bool)
}
