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

package interp

import (
	"strings"
	"testing"
)

// runProgram compiles and runs src in a fresh interpreter and returns
// everything it printed.
func runProgram(t *testing.T, src string) string {
	t.Helper()
	var out strings.Builder
	it := New(WithStdout(&out), WithStderr(&out), WithStdin(strings.NewReader("")))
	if err := it.Run(src, "-e"); err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return out.String()
}

// The six end-to-end scenarios of the specification's testable
// properties, asserted byte exact.

func TestAccumulateOverRange(t *testing.T) {
	got := runProgram(t, `my $s=0; for (1..10){$s+=$_} print $s`)
	if got != "55" {
		t.Fatalf("got %q, want %q", got, "55")
	}
}

func TestRecursiveFactorial(t *testing.T) {
	got := runProgram(t, `sub f{ my $n=shift; return 1 if $n<2; $n*f($n-1) } print f(5)`)
	if got != "120" {
		t.Fatalf("got %q, want %q", got, "120")
	}
}

func TestHashMapSortJoin(t *testing.T) {
	got := runProgram(t, `my %h=(a=>1,b=>2); print join(",", map {"$_=$h{$_}"} sort keys %h)`)
	if got != "a=1,b=2" {
		t.Fatalf("got %q, want %q", got, "a=1,b=2")
	}
}

func TestLocalDynamicScope(t *testing.T) {
	got := runProgram(t, `our $x="out"; sub show{print "$x\n"} { local $x="in"; show() } show()`)
	if got != "in\nout\n" {
		t.Fatalf("got %q, want %q", got, "in\nout\n")
	}
}

func TestEvalCatchesDie(t *testing.T) {
	got := runProgram(t, `my $r=eval { die "boom\n" }; print "caught:$@"`)
	if got != "caught:boom\n" {
		t.Fatalf("got %q, want %q", got, "caught:boom\n")
	}
}

func TestNestedLoopLast(t *testing.T) {
	got := runProgram(t, `for my $i (1..3){ for my $j (1..3){ last if $j==2; print "$i$j "} } print "."`)
	if got != "11 21 31 ." {
		t.Fatalf("got %q, want %q", got, "11 21 31 .")
	}
}

// --- beyond the six scenarios ------------------------------------------

func TestWhileLoopWithNext(t *testing.T) {
	got := runProgram(t, `my $i=0; while ($i<5) { $i=$i+1; next if $i==3; print $i }`)
	if got != "1245" {
		t.Fatalf("got %q, want %q", got, "1245")
	}
}

func TestLabeledLastFromInnerLoop(t *testing.T) {
	src := `OUTER: for my $i (1..3){ for my $j (1..3){ last OUTER if $j==2; print "$i$j " } } print "done"`
	got := runProgram(t, src)
	if got != "11 done" {
		t.Fatalf("got %q, want %q", got, "11 done")
	}
}

func TestClosureCapturesLexical(t *testing.T) {
	src := `my $n=10; my $add = sub { my $x=shift; $x + $n }; print $add->(5)`
	got := runProgram(t, src)
	if got != "15" {
		t.Fatalf("got %q, want %q", got, "15")
	}
}

func TestClosureSharesSlotWithCreator(t *testing.T) {
	src := `my $c=0; my $bump = sub { $c = $c + 1 }; $bump->(); $bump->(); print $c`
	got := runProgram(t, src)
	if got != "2" {
		t.Fatalf("got %q, want %q", got, "2")
	}
}

func TestGrepFiltersWithUnderscore(t *testing.T) {
	got := runProgram(t, `print join(",", grep { $_ % 2 == 0 } 1..6)`)
	if got != "2,4,6" {
		t.Fatalf("got %q, want %q", got, "2,4,6")
	}
}

func TestSortWithComparatorBlock(t *testing.T) {
	got := runProgram(t, `print join(",", sort { $b <=> $a } 3, 1, 2)`)
	if got != "3,2,1" {
		t.Fatalf("got %q, want %q", got, "3,2,1")
	}
}

func TestTailCallGoto(t *testing.T) {
	src := `sub a { goto &b } sub b { print "b:", shift } a("x")`
	got := runProgram(t, src)
	if got != "b:x" {
		t.Fatalf("got %q, want %q", got, "b:x")
	}
}

func TestEvalStringCompilesReentrantly(t *testing.T) {
	got := runProgram(t, `my $v = eval "2 + 3"; print $v`)
	if got != "5" {
		t.Fatalf("got %q, want %q", got, "5")
	}
}

func TestEvalClearsErrorOnSuccess(t *testing.T) {
	got := runProgram(t, `eval { die "x\n" }; eval { 1 }; print "ok:$@"`)
	if got != "ok:" {
		t.Fatalf("got %q, want %q", got, "ok:")
	}
}

func TestDieMessageAtTopLevel(t *testing.T) {
	var out strings.Builder
	it := New(WithStdout(&out), WithStderr(&out))
	err := it.Run(`die "gone\n"`, "-e")
	if err == nil {
		t.Fatal("expected an error from uncaught die")
	}
	if err.Error() != "gone\n" {
		t.Fatalf("got %q, want %q", err.Error(), "gone\n")
	}
}

func TestHashExistsAndDelete(t *testing.T) {
	src := `my %h=(a=>1); print exists $h{a} ? "y" : "n"; delete $h{a}; print exists $h{a} ? "y" : "n"`
	got := runProgram(t, src)
	if got != "yn" {
		t.Fatalf("got %q, want %q", got, "yn")
	}
}

func TestStringAutoIncrement(t *testing.T) {
	got := runProgram(t, `my $s = "Az"; $s++; print $s`)
	if got != "Ba" {
		t.Fatalf("got %q, want %q", got, "Ba")
	}
}

func TestArrayPushPopThroughSub(t *testing.T) {
	src := `my @a; push @a, 1, 2, 3; my $last = pop @a; print "$last:", join("",@a)`
	got := runProgram(t, src)
	if got != "3:12" {
		t.Fatalf("got %q, want %q", got, "3:12")
	}
}

func TestAutovivificationThroughArrow(t *testing.T) {
	src := `my $x; $x->{k} = 7; print $x->{k}`
	got := runProgram(t, src)
	if got != "7" {
		t.Fatalf("got %q, want %q", got, "7")
	}
}

func TestDieFlagRaisesAtStatementBoundary(t *testing.T) {
	var out strings.Builder
	it := New(WithStdout(&out), WithStderr(&out))
	it.SetDieFlag("interrupted\n")
	err := it.Run(`print "a"; print "b"`, "-e")
	if err == nil {
		t.Fatal("expected the die flag to surface as an error")
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("unexpected error %q", err.Error())
	}
}

func TestInterpretersAreIsolated(t *testing.T) {
	var out1, out2 strings.Builder
	it1 := New(WithStdout(&out1))
	it2 := New(WithStdout(&out2))
	if err := it1.Run(`our $g = "one"`, "-e"); err != nil {
		t.Fatal(err)
	}
	if err := it2.Run(`print defined($g) ? "leaked" : "clean"`, "-e"); err != nil {
		t.Fatal(err)
	}
	if out2.String() != "clean" {
		t.Fatalf("got %q, want %q", out2.String(), "clean")
	}
}

func TestHashSliceReturnsValues(t *testing.T) {
	got := runProgram(t, `my %h=(a=>1,b=>2,c=>3); print join(",", @h{"a","c"})`)
	if got != "1,3" {
		t.Fatalf("got %q, want %q", got, "1,3")
	}
}

func TestArraySlice(t *testing.T) {
	got := runProgram(t, `my @a=(10,20,30,40); print join(",", @a[1,3])`)
	if got != "20,40" {
		t.Fatalf("got %q, want %q", got, "20,40")
	}
}

func TestStateInitializesOnce(t *testing.T) {
	src := `sub tick { state $n = 0; $n = $n + 1; $n } tick(); tick(); print tick()`
	got := runProgram(t, src)
	if got != "3" {
		t.Fatalf("got %q, want %q", got, "3")
	}
}

func TestHashInListContextFlattensToPairs(t *testing.T) {
	got := runProgram(t, `my %h=(k=>7); print join(":", %h)`)
	if got != "k:7" {
		t.Fatalf("got %q, want %q", got, "k:7")
	}
}

func TestRegexCaptureVisibleAfterMatch(t *testing.T) {
	got := runProgram(t, `my $s="foo42bar"; $s =~ /([0-9]+)/; print $1`)
	if got != "42" {
		t.Fatalf("got %q, want %q", got, "42")
	}
}

func TestRegexStateRestoredAfterBlock(t *testing.T) {
	src := `my $s="a1"; $s =~ /([0-9])/; { my $t="b7"; $t =~ /([0-9])/; print $1 } print $1`
	got := runProgram(t, src)
	if got != "71" {
		t.Fatalf("got %q, want %q", got, "71")
	}
}

func TestModuloIsAnOperatorAfterTerm(t *testing.T) {
	got := runProgram(t, `print 7 % 3`)
	if got != "1" {
		t.Fatalf("got %q, want %q", got, "1")
	}
}

func TestDivisionAfterParenClose(t *testing.T) {
	got := runProgram(t, `print (10+2) / 4`)
	if got == "" {
		t.Fatal("expected output")
	}
}
