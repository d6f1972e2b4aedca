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

package global

import (
	"testing"

	"github.com/perl-plc/plc/value"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ pkg, name, want string }{
		{"main", "x", "main::x"},
		{"Foo::Bar", "x", "Foo::Bar::x"},
		{"Foo", "Bar::x", "Bar::x"},
		{"Foo", "_", "main::_"},
		{"Foo", "ARGV", "main::ARGV"},
	}
	for _, c := range cases {
		if got := Normalize(c.pkg, c.name); got != c.want {
			t.Errorf("Normalize(%q,%q) = %q, want %q", c.pkg, c.name, got, c.want)
		}
	}
}

func TestLocalScalarLIFO(t *testing.T) {
	tbl := New()
	x := tbl.Scalar("x")
	x.SetString("out")

	mark := tbl.Locals.Mark()
	tbl.Locals.PushScalar(x)
	x.SetString("in")
	if x.AsString() != "in" {
		t.Fatal("expected x to read back as in")
	}
	tbl.Locals.PopTo(mark)
	if x.AsString() != "out" {
		t.Fatalf("expected local to restore to out, got %q", x.AsString())
	}
}

func TestRegexSnapshotStack(t *testing.T) {
	r := newRegexStack()
	r.SetMatch(&MatchState{Captures: []string{"", "outer"}})
	r.PushSnapshot()
	r.SetMatch(&MatchState{Captures: []string{"", "inner"}})
	if got := r.Capture(1); got != "inner" {
		t.Fatalf("expected inner capture, got %q", got)
	}
	r.RestoreTop()
	if got := r.Capture(1); got != "outer" {
		t.Fatalf("expected outer capture restored, got %q", got)
	}
}

func TestResolveMethodViaISA(t *testing.T) {
	tbl := New()
	tbl.SetCode("Animal::speak", &value.Code{Name: "speak"})
	tbl.Array("Dog::ISA").Push(value.NewString("Animal"))

	code, owner, ok := tbl.ResolveMethod("Dog", "speak")
	if !ok || code == nil {
		t.Fatal("expected to resolve Dog->speak via @ISA")
	}
	if owner != "Animal" {
		t.Fatalf("expected owner Animal, got %q", owner)
	}
}
