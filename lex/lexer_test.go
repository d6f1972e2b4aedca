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

package lex

import "testing"

func collectKinds(src string) []Kind {
	l := New(src, "test")
	var kinds []Kind
	for {
		tok := l.Next()
		if tok.Kind == EOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func TestSigilStartsVariable(t *testing.T) {
	l := New("$x + $y", "test")
	tok := l.Next()
	if tok.Kind != Sigil || tok.Text != "$x" {
		t.Fatalf("expected sigil $x, got %v %q", tok.Kind, tok.Text)
	}
}

func TestSlashDisambiguation(t *testing.T) {
	// after an identifier (operand position becomes operator), / is division
	l := New("$x / 2", "test")
	l.Next() // $x
	tok := l.Next()
	if tok.Kind != Operator || tok.Text != "/" {
		t.Fatalf("expected division operator, got %v %q", tok.Kind, tok.Text)
	}
}

func TestSlashStartsRegexAtOperandPosition(t *testing.T) {
	l := New("/abc/", "test")
	tok := l.Next()
	if tok.Kind != Regex {
		t.Fatalf("expected regex literal, got %v %q", tok.Kind, tok.Text)
	}
	if tok.Text != "abc" {
		t.Fatalf("expected regex body 'abc', got %q", tok.Text)
	}
}

func TestInterpStringChunks(t *testing.T) {
	l := New(`"hello $name!"`, "test")
	tok := l.Next()
	if tok.Kind != InterpString {
		t.Fatalf("expected interp string, got %v", tok.Kind)
	}
	if len(tok.Chunks) != 3 {
		t.Fatalf("expected 3 chunks (lit, var, lit), got %d: %+v", len(tok.Chunks), tok.Chunks)
	}
	if tok.Chunks[1].Literal || tok.Chunks[1].Text != "$name" {
		t.Fatalf("expected var chunk $name, got %+v", tok.Chunks[1])
	}
}

func TestTwoCharOperators(t *testing.T) {
	kinds := collectKinds("$a == $b")
	if len(kinds) != 3 || kinds[1] != Operator {
		t.Fatalf("expected sigil, operator, sigil; got %v", kinds)
	}
}
