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

package value

import "testing"

func TestCoercionTable(t *testing.T) {
	cases := []struct {
		name string
		s    *Scalar
		i    int64
		f    float64
		str  string
		b    bool
	}{
		{"undef", NewUndef(), 0, 0.0, "", false},
		{"int", NewInt(42), 42, 42.0, "42", true},
		{"int-zero", NewInt(0), 0, 0.0, "0", false},
		{"float", NewFloat(3.5), 3, 3.5, "3.5", true},
		{"string-numeric", NewString("17abc"), 17, 17.0, "17abc", true},
		{"string-zero", NewString("0"), 0, 0, "0", false},
		{"string-empty", NewString(""), 0, 0, "", false},
		{"string-nonnumeric", NewString("hello"), 0, 0, "hello", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.s.AsInt(); got != c.i {
				t.Errorf("AsInt() = %d, want %d", got, c.i)
			}
		})
	}
	for _, c := range cases {
		if got := c.s.AsBool(); got != c.b {
			t.Errorf("%s: AsBool() = %v, want %v", c.name, got, c.b)
		}
	}
}

func TestStringAutoIncrement(t *testing.T) {
	cases := map[string]string{
		"a":  "b",
		"z":  "aa",
		"Az": "Ba",
		"zz": "aaa",
		"a9": "b0",
		"Zz": "AAa",
	}
	for in, want := range cases {
		s := NewString(in)
		s.Increment()
		if got := s.AsString(); got != want {
			t.Errorf("increment(%q) = %q, want %q", in, got, want)
		}
	}
	n := NewString("9")
	n.Increment()
	if got := n.AsString(); got != "10" {
		t.Errorf("increment(%q) = %q, want %q", "9", got, "10")
	}
}

func TestArrayIndexing(t *testing.T) {
	a := NewArrayFrom(NewInt(1), NewInt(2), NewInt(3))
	if got := a.Get(-1).AsInt(); got != 3 {
		t.Errorf("Get(-1) = %d, want 3", got)
	}
	if got := a.Get(10).AsInt(); got != 0 || !a.Get(10).IsUndef() {
		t.Errorf("out-of-range read should be Undef, got %v", got)
	}
	a.Set(5, NewInt(9))
	if a.Len() != 6 {
		t.Errorf("out-of-range write should extend with fillers, len=%d", a.Len())
	}
	if got := a.Get(5).AsInt(); got != 9 {
		t.Errorf("Get(5) = %d, want 9", got)
	}
}

func TestArrayPushPop(t *testing.T) {
	a := NewArray()
	x := NewInt(42)
	a.Push(x)
	before := a.Len()
	y := a.Pop()
	if y.AsInt() != x.AsInt() {
		t.Errorf("pop() = %d, want %d", y.AsInt(), x.AsInt())
	}
	if a.Len() != before-1 {
		t.Errorf("len after pop = %d, want %d", a.Len(), before-1)
	}
}

func TestHashExistsDelete(t *testing.T) {
	h := NewHash()
	h.Set("k", NewInt(1))
	if !h.Exists("k") {
		t.Fatal("expected k to exist")
	}
	h.Delete("k")
	if h.Exists("k") {
		t.Fatal("expected k to be gone after delete")
	}
}

func TestAutovivArray(t *testing.T) {
	s := NewUndef()
	arr, err := AutovivArray(s)
	if err != nil {
		t.Fatal(err)
	}
	arr.Push(NewInt(1))
	if !s.IsRef() {
		t.Fatal("expected s to become a reference")
	}
	arr2, err := AutovivArray(s)
	if err != nil {
		t.Fatal(err)
	}
	if arr2.Len() != 1 {
		t.Errorf("expected the same array on second autoviv, len=%d", arr2.Len())
	}
}

func TestDivByZero(t *testing.T) {
	_, err := Div(NewInt(1), NewInt(0))
	if err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestListMarkingAndFlatten(t *testing.T) {
	arr := NewArrayFrom(NewInt(1), NewInt(2))
	marked := NewRef(RefArray, arr).MarkList()
	plain := NewRef(RefArray, arr)
	out := FlattenList([]*Scalar{marked, plain, NewInt(9)})
	if len(out) != 4 {
		t.Fatalf("expected marked list to flatten and plain ref to stay, got %d elems", len(out))
	}
	if out[2] != plain {
		t.Fatal("unmarked reference must pass through unexpanded")
	}
}

func TestHashFlattensToPairs(t *testing.T) {
	h := NewHash()
	h.Set("k", NewInt(1))
	marked := NewRef(RefHash, h).MarkList()
	out := ListElems(marked)
	if len(out) != 2 || out[0].AsString() != "k" || out[1].AsInt() != 1 {
		t.Fatalf("expected key/value pair, got %v", out)
	}
}

func TestWeakRefDropsWithOwners(t *testing.T) {
	s := NewInt(7)
	w := NewWeakRef(s)
	if w.Get() == nil {
		t.Fatal("live target must be reachable")
	}
	s.DecRef()
	if w.Get() != nil {
		t.Fatal("weak ref must not keep a dead target alive")
	}
}
