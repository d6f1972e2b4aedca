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
	"testing"

	"github.com/perl-plc/plc/ast"
	"github.com/perl-plc/plc/lex"
)

func parseSrc(t *testing.T, src string) *ast.Node {
	t.Helper()
	n, err := Parse(lex.New(src, "test"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return n
}

func TestParseSimpleAssignment(t *testing.T) {
	prog := parseSrc(t, `my $x = 1 + 2 * 3;`)
	if len(prog.Children) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Children))
	}
	stmt := prog.Children[0]
	if stmt.Op != ast.OpExprStmt {
		t.Fatalf("expected expr statement, got %v", stmt.Op)
	}
	assign := stmt.Children[0]
	if assign.Op != ast.OpAssign {
		t.Fatalf("expected assign, got %v", assign.Op)
	}
	decl := assign.Children[0]
	if decl.Op != ast.OpMy {
		t.Fatalf("expected my decl on lhs, got %v", decl.Op)
	}
	rhs := assign.Children[1]
	if rhs.Op != ast.OpBinOp || rhs.Name != "+" {
		t.Fatalf("expected + at top of rhs (precedence), got %v %q", rhs.Op, rhs.Name)
	}
	mul := rhs.Children[1]
	if mul.Op != ast.OpBinOp || mul.Name != "*" {
		t.Fatalf("expected * nested under +, got %v %q", mul.Op, mul.Name)
	}
}

func TestParseIfElsif(t *testing.T) {
	prog := parseSrc(t, `if ($x) { 1; } elsif ($y) { 2; } else { 3; }`)
	stmt := prog.Children[0]
	if stmt.Op != ast.OpIf {
		t.Fatalf("expected if, got %v", stmt.Op)
	}
	if len(stmt.Children) != 5 {
		t.Fatalf("expected 5 children (cond,then,elsifcond,elsifthen,else), got %d", len(stmt.Children))
	}
}

func TestParseStatementModifier(t *testing.T) {
	prog := parseSrc(t, `print "hi" if $x;`)
	stmt := prog.Children[0]
	if stmt.Op != ast.OpIf {
		t.Fatalf("expected statement-modifier if, got %v", stmt.Op)
	}
}

func TestParseHashSubscriptAutoquote(t *testing.T) {
	prog := parseSrc(t, `$h{foo};`)
	stmt := prog.Children[0].Children[0]
	if stmt.Op != ast.OpKeyIndex {
		t.Fatalf("expected key index, got %v", stmt.Op)
	}
	key := stmt.Children[1]
	if key.Op != ast.OpStringLit || key.Str != "foo" {
		t.Fatalf("expected autoquoted bareword key 'foo', got %v %q", key.Op, key.Str)
	}
}

func TestParseFusedCompoundAssign(t *testing.T) {
	prog := parseSrc(t, `$x **= 2;`)
	stmt := prog.Children[0].Children[0]
	if stmt.Op != ast.OpAssign || stmt.Name != "**=" {
		t.Fatalf("expected fused **= assign, got %v %q", stmt.Op, stmt.Name)
	}
}

func TestParseSubDeclWithSignature(t *testing.T) {
	prog := parseSrc(t, `sub add($a, $b) { return $a + $b; }`)
	stmt := prog.Children[0]
	if stmt.Op != ast.OpSubDecl || stmt.Name != "add" {
		t.Fatalf("expected sub decl 'add', got %v %q", stmt.Op, stmt.Name)
	}
	sigAny, ok := stmt.Annotation("signature")
	if !ok {
		t.Fatal("expected signature annotation")
	}
	sig := sigAny.(*Signature)
	if len(sig.Params) != 2 || sig.Params[0].Name != "a" || sig.Params[1].Name != "b" {
		t.Fatalf("expected params a,b; got %+v", sig.Params)
	}
}

func TestParseForeachWithMy(t *testing.T) {
	prog := parseSrc(t, `foreach my $x (@list) { print $x; }`)
	stmt := prog.Children[0]
	if stmt.Op != ast.OpForeach {
		t.Fatalf("expected foreach, got %v", stmt.Op)
	}
	if stmt.Children[0].Op != ast.OpMy {
		t.Fatalf("expected my-declared loop var, got %v", stmt.Children[0].Op)
	}
}

func TestParseCStyleFor(t *testing.T) {
	prog := parseSrc(t, `for (my $i = 0; $i < 10; $i++) { print $i; }`)
	stmt := prog.Children[0]
	if stmt.Op != ast.OpForC {
		t.Fatalf("expected C-style for, got %v", stmt.Op)
	}
}

func TestParseTernaryAsAssignmentRhs(t *testing.T) {
	prog := parseSrc(t, `$x = $a ? 1 : 2;`)
	assign := prog.Children[0].Children[0]
	if assign.Op != ast.OpAssign {
		t.Fatalf("expected assign, got %v", assign.Op)
	}
	if assign.Children[1].Op != ast.OpTernary {
		t.Fatalf("expected ternary as rhs, got %v", assign.Children[1].Op)
	}
}

func TestParseInterpStringProducesVarChild(t *testing.T) {
	prog := parseSrc(t, `"hi $name";`)
	lit := prog.Children[0].Children[0]
	if lit.Op != ast.OpInterpString {
		t.Fatalf("expected interp string, got %v", lit.Op)
	}
	if len(lit.Children) != 2 {
		t.Fatalf("expected 2 children (lit + var), got %d", len(lit.Children))
	}
	if lit.Children[1].Op != ast.OpVar || lit.Children[1].Name != "name" {
		t.Fatalf("expected var child 'name', got %v %q", lit.Children[1].Op, lit.Children[1].Name)
	}
}

func TestAnalyzeLvaluesMarksAssignTarget(t *testing.T) {
	prog := parseSrc(t, `$x = 1;`)
	assign := prog.Children[0].Children[0]
	target := assign.Children[0]
	if target.Lvalue() != ast.ScalarLvalue {
		t.Fatalf("expected scalar lvalue on assign target, got %v", target.Lvalue())
	}
}
