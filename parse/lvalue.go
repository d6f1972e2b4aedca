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

import "github.com/perl-plc/plc/ast"

// AnalyzeLvalues is the second visitor pass of spec.md §4.4: it walks
// the finished tree and marks the left-hand side of every assignment,
// `my`/`our`/`local` target, and foreach loop variable with its lvalue
// kind, plus propagates the "this was declared behind a `\`" hint onto
// reference-taking unary nodes.
func AnalyzeLvalues(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case ast.OpAssign:
		markLvalue(n.Children[0])
	case ast.OpMy, ast.OpOur, ast.OpState, ast.OpLocal:
		for _, c := range n.Children {
			markLvalue(c)
		}
	case ast.OpForeach:
		if len(n.Children) > 0 && n.Children[0].Op == ast.OpVar {
			markLvalue(n.Children[0])
		}
	case ast.OpUnOp:
		if n.Name == "\\" && len(n.Children) > 0 {
			n.Children[0].SetDeclaredRef(true)
		}
	}
	for _, c := range n.Children {
		AnalyzeLvalues(c)
	}
}

func markLvalue(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case ast.OpVar:
		if n.Sigil == ast.SigilArray || n.Sigil == ast.SigilHash {
			n.SetLvalue(ast.ListLvalue)
		} else {
			n.SetLvalue(ast.ScalarLvalue)
		}
	case ast.OpIndex, ast.OpKeyIndex, ast.OpArrow:
		n.SetLvalue(ast.ScalarLvalue)
	case ast.OpSlice:
		n.SetLvalue(ast.ListLvalue)
	case ast.OpListExpr:
		n.SetLvalue(ast.ListLvalue)
		for _, c := range n.Children {
			markLvalue(c)
		}
	case ast.OpMy, ast.OpOur, ast.OpState:
		for _, c := range n.Children {
			markLvalue(c)
		}
	}
}
