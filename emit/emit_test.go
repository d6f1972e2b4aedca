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
	"testing"

	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/lex"
	"github.com/perl-plc/plc/parse"
)

func compileSrc(t *testing.T, src string) *Unit {
	t.Helper()
	prog, err := parse.Parse(lex.New(src, "test"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u, err := Compile(prog)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return u
}

func countOps(instrs []bytecode.Instr, op bytecode.Op) int {
	n := 0
	for _, in := range instrs {
		if in.Op == op {
			n++
		}
	}
	return n
}

func TestLocalPushPopBalanced(t *testing.T) {
	u := compileSrc(t, `our $x = 1; { local $x = 2; print $x; } print $x;`)
	pushes := countOps(u.Main.Instrs, bytecode.OpLocalPush)
	pops := countOps(u.Main.Instrs, bytecode.OpLocalPop)
	if pushes != 1 || pops != 1 {
		t.Fatalf("expected one balanced local push/pop pair, got %d/%d", pushes, pops)
	}
}

func TestLoopFramesBalanced(t *testing.T) {
	u := compileSrc(t, `for my $i (1..3) { while ($i) { last } }`)
	begins := countOps(u.Main.Instrs, bytecode.OpLoopBegin)
	ends := countOps(u.Main.Instrs, bytecode.OpLoopEnd)
	if begins != 2 || ends != 2 {
		t.Fatalf("expected 2 balanced loop frames, got %d/%d", begins, ends)
	}
}

func TestRegexBlockSnapshotsBalanced(t *testing.T) {
	u := compileSrc(t, `{ $x =~ /a(b)c/; print $1; }`)
	pushes := countOps(u.Main.Instrs, bytecode.OpRegexSnapPush)
	pops := countOps(u.Main.Instrs, bytecode.OpRegexSnapPop)
	if pushes == 0 || pushes != pops {
		t.Fatalf("expected balanced regex snapshots, got %d/%d", pushes, pops)
	}
}

func TestNamedSubCompiledIntoUnit(t *testing.T) {
	u := compileSrc(t, `sub greet { print "hi" } greet()`)
	if _, ok := u.Subs["main::greet"]; !ok {
		t.Fatalf("expected main::greet in unit subs, have %v", keysOf(u.Subs))
	}
}

func TestAnonSubRecordsCaptures(t *testing.T) {
	u := compileSrc(t, `my $n = 1; my $f = sub { $n + 1 };`)
	var anon *bytecode.Method
	for name, m := range u.Subs {
		if name != "main::greet" {
			anon = m
		}
	}
	if anon == nil {
		t.Fatal("expected an anonymous sub in the unit")
	}
	if len(anon.Captures) != 1 {
		t.Fatalf("expected one captured slot, got %d", len(anon.Captures))
	}
}

func TestEvalRegionEmitted(t *testing.T) {
	u := compileSrc(t, `my $r = eval { 1 };`)
	if countOps(u.Main.Instrs, bytecode.OpEvalBegin) != 1 ||
		countOps(u.Main.Instrs, bytecode.OpEvalEnd) != 1 {
		t.Fatal("expected one eval region")
	}
}

func TestOversizedSubUsesCompactBackend(t *testing.T) {
	// a sub whose body exceeds the inline limit must come back packed
	// but still decodable to the same stream length.
	m := &bytecode.Method{Name: "big", Instrs: make([]bytecode.Instr, bytecode.MaxMethodInstrs+10)}
	for i := range m.Instrs {
		m.Instrs[i] = bytecode.Instr{Op: bytecode.OpConstInt, A: int64(i)}
	}
	u := &Unit{Main: &bytecode.Method{Name: "main"}, Subs: map[string]*bytecode.Method{"main::big": m}}
	applySizeFallback(u, nil)
	if m.Instrs != nil {
		t.Fatal("expected the oversized sub's inline stream to be dropped")
	}
	if m.Code == nil || m.Code.Len() != bytecode.MaxMethodInstrs+10 {
		t.Fatal("expected a compact artifact holding the full stream")
	}
}

func keysOf(m map[string]*bytecode.Method) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
