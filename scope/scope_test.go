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

package scope

import (
	"testing"

	"github.com/perl-plc/plc/ast"
)

func TestDeclareAndLookupInnermost(t *testing.T) {
	s := New()
	s.Declare(ast.SigilScalar, "x", My)
	s.Push()
	inner := s.Declare(ast.SigilScalar, "x", My)

	b, ok := s.Lookup(ast.SigilScalar, "x")
	if !ok || b.Slot != inner.Slot {
		t.Fatalf("expected innermost binding, got %+v ok=%v", b, ok)
	}
	s.Pop()
	b, ok = s.Lookup(ast.SigilScalar, "x")
	if !ok || b.Slot == inner.Slot {
		t.Fatalf("expected outer binding after pop, got %+v", b)
	}
}

func TestLookupMissIsGlobal(t *testing.T) {
	s := New()
	if _, ok := s.Lookup(ast.SigilScalar, "undeclared"); ok {
		t.Fatal("expected lookup miss for undeclared name")
	}
}

func TestOurBindingRecordsGlobalName(t *testing.T) {
	s := New()
	s.SetPackage("Foo::Bar")
	b := s.Declare(ast.SigilScalar, "x", Our)
	if b.Global != "Foo::Bar::x" {
		t.Fatalf("expected Foo::Bar::x, got %q", b.Global)
	}
}

func TestNestedScopeInheritsPackageAndStrict(t *testing.T) {
	s := New()
	s.SetPackage("Foo")
	s.SetStrict(Strict{Refs: true})
	s.Push()
	if s.Package() != "Foo" {
		t.Fatalf("expected inherited package Foo, got %q", s.Package())
	}
	if !s.Strict().Refs {
		t.Fatal("expected inherited strict refs hint")
	}
	s.SetPackage("Baz")
	s.Pop()
	if s.Package() != "Foo" {
		t.Fatalf("expected outer package unaffected by inner change, got %q", s.Package())
	}
}

func TestSlotsAreUniqueAcrossScopes(t *testing.T) {
	s := New()
	a := s.Declare(ast.SigilScalar, "a", My)
	s.Push()
	b := s.Declare(ast.SigilScalar, "b", My)
	if a.Slot == b.Slot {
		t.Fatal("expected distinct slots across scopes")
	}
	if s.SlotCount() != 2 {
		t.Fatalf("expected slot count 2, got %d", s.SlotCount())
	}
}
