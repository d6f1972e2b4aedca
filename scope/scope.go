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

// Package scope implements the lexical-pad and package-stack machinery
// of spec.md §4.5: a stack of scopes mapping (sigil, name) to a slot
// index and declaration kind, plus the strictness hints the emitter
// consults to select operator variants.
package scope

import "github.com/perl-plc/plc/ast"

// Kind is a declaration kind: my | our | state | implicit (spec.md
// §4.5).
type Kind int

const (
	Implicit Kind = iota
	My
	Our
	State
)

// Binding is what a scope maps a (sigil, name) key to.
type Binding struct {
	Slot int
	Kind Kind
	// Global is the fully-qualified name an `our` binding aliases to.
	Global string
}

type key struct {
	sigil ast.Sigil
	name  string
}

// Strict holds the per-scope strictness/pragma hints of spec.md §4.5,
// inherited by nested scopes.
type Strict struct {
	Refs    bool
	Vars    bool
	Subs    bool
	Integer bool
	Bytes   bool
}

type frame struct {
	bindings map[key]Binding
	pkg      string
	strict   Strict
}

// Stack is the scope stack for one compilation unit. Lookup walks
// innermost to outermost; a miss is treated as a global (spec.md
// §4.5).
type Stack struct {
	frames   []*frame
	nextSlot int
}

func New() *Stack {
	s := &Stack{}
	s.Push()
	s.frames[0].pkg = "main"
	return s
}

// Push enters a new nested scope inheriting the enclosing package and
// strictness hints.
func (s *Stack) Push() {
	f := &frame{bindings: make(map[key]Binding)}
	if n := len(s.frames); n > 0 {
		f.pkg = s.frames[n-1].pkg
		f.strict = s.frames[n-1].strict
	}
	s.frames = append(s.frames, f)
}

// Pop exits the current scope. The caller (the emitter) is
// responsible for releasing the slots it allocated, matching spec.md
// §5's "every local push is matched by exactly one pop on every exit
// path" discipline applied here to lexical slot lifetime.
func (s *Stack) Pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// Declare binds name under sigil in the current (innermost) scope and
// returns the newly allocated pad slot index.
func (s *Stack) Declare(sigil ast.Sigil, name string, kind Kind) Binding {
	top := s.frames[len(s.frames)-1]
	slot := s.nextSlot
	s.nextSlot++
	b := Binding{Slot: slot, Kind: kind}
	if kind == Our {
		b.Global = top.pkg + "::" + name
	}
	top.bindings[key{sigil, name}] = b
	return b
}

// Lookup walks innermost to outermost; ok is false if the name is not
// lexically declared anywhere, meaning the emitter should treat it as
// a global (spec.md §4.5).
func (s *Stack) Lookup(sigil ast.Sigil, name string) (Binding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i].bindings[key{sigil, name}]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

// SetPackage implements the `package P` directive's effect on the
// current scope (spec.md §4.5).
func (s *Stack) SetPackage(pkg string) {
	s.frames[len(s.frames)-1].pkg = pkg
}

func (s *Stack) Package() string {
	return s.frames[len(s.frames)-1].pkg
}

// Strict returns the current scope's inherited strictness hints.
func (s *Stack) Strict() Strict {
	return s.frames[len(s.frames)-1].strict
}

func (s *Stack) SetStrict(strict Strict) {
	s.frames[len(s.frames)-1].strict = strict
}

// SlotCount returns the total number of pad slots allocated so far in
// this compilation unit, i.e. the size the emitter must give the
// method's local array.
func (s *Stack) SlotCount() int { return s.nextSlot }
