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

// Array is Perl's @array: an ordered sequence of owning scalar
// handles with O(1) indexed access, amortized O(1) push/pop at the
// end and O(1) shift at the front (shift implemented by slice
// re-slicing, matching the teacher's image-growth-by-chunk
// amortization strategy rather than a ring buffer); unshift copies the
// whole slice.
type Array struct {
	elems []*Scalar
}

func NewArray() *Array { return &Array{} }

func NewArrayFrom(vals ...*Scalar) *Array { return &Array{elems: vals} }

func (a *Array) Len() int { return len(a.elems) }

// index normalizes a Perl array index: -n addresses from the end.
func (a *Array) index(i int) int {
	if i < 0 {
		i += len(a.elems)
	}
	return i
}

// Get returns the element at i, or a fresh Undef for an out-of-range
// read (spec.md §3: "out-of-range read yields Undef").
func (a *Array) Get(i int) *Scalar {
	idx := a.index(i)
	if idx < 0 || idx >= len(a.elems) {
		return NewUndef()
	}
	return a.elems[idx]
}

// Slot returns the owning handle at i, autovivifying filler Undef
// slots up to i on out-of-range write (spec.md §3: "out-of-range
// write extends with Undef fillers").
func (a *Array) Slot(i int) *Scalar {
	idx := a.index(i)
	if idx < 0 {
		idx = 0
	}
	for idx >= len(a.elems) {
		a.elems = append(a.elems, NewUndef())
	}
	return a.elems[idx]
}

func (a *Array) Set(i int, s *Scalar) { *a.Slot(i) = *s }

func (a *Array) Push(vals ...*Scalar) { a.elems = append(a.elems, vals...) }

func (a *Array) Pop() *Scalar {
	if len(a.elems) == 0 {
		return NewUndef()
	}
	last := a.elems[len(a.elems)-1]
	a.elems = a.elems[:len(a.elems)-1]
	return last
}

func (a *Array) Shift() *Scalar {
	if len(a.elems) == 0 {
		return NewUndef()
	}
	first := a.elems[0]
	a.elems = a.elems[1:]
	return first
}

func (a *Array) Unshift(vals ...*Scalar) {
	a.elems = append(append([]*Scalar{}, vals...), a.elems...)
}

// Elems returns the live backing slice; callers must not retain it
// across a mutation.
func (a *Array) Elems() []*Scalar { return a.elems }

// Hash is Perl's %hash: an insertion-ordered string-keyed map.
// Iteration order is insertion order modulo deletions (spec.md §3).
type Hash struct {
	m     map[string]*Scalar
	order []string
}

func NewHash() *Hash { return &Hash{m: make(map[string]*Scalar)} }

func (h *Hash) Exists(key string) bool {
	_, ok := h.m[key]
	return ok
}

func (h *Hash) Get(key string) *Scalar {
	if v, ok := h.m[key]; ok {
		return v
	}
	return NewUndef()
}

// Slot get-or-creates the entry for key, matching Perl's autoviv
// write-access contract ("creates the entry with Undef and returns a
// handle to it").
func (h *Hash) Slot(key string) *Scalar {
	if v, ok := h.m[key]; ok {
		return v
	}
	v := NewUndef()
	h.m[key] = v
	h.order = append(h.order, key)
	return v
}

func (h *Hash) Set(key string, s *Scalar) { *h.Slot(key) = *s }

// Delete removes key and returns the removed value, or Undef if it
// was not present (spec.md §3: "delete returns the removed value").
func (h *Hash) Delete(key string) *Scalar {
	v, ok := h.m[key]
	if !ok {
		return NewUndef()
	}
	delete(h.m, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return v
}

// Keys returns keys in insertion order.
func (h *Hash) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

func (h *Hash) Len() int { return len(h.order) }

// Code is a callable plus its captured lexical environment, matching
// spec.md §3's "callable plus captured environment plus optional
// prototype plus optional anonymous-class binding."
type Code struct {
	Name      string // "" for anonymous subs
	Prototype string
	Closure   []*Scalar // captured lexical slot handles
	Run       func(args *Array, ctx CallContext) (*Array, error)

	// RawArgs suppresses list flattening at the call site so the
	// callee receives aggregate references it can mutate through
	// (shift, push and the other aggregate-taking builtins).
	RawArgs bool
}

// CallContext is the calling-context enum threaded through every
// emitted method (GLOSSARY: "Calling context").
type CallContext uint8

const (
	ContextVoid CallContext = iota
	ContextScalar
	ContextList
	ContextRuntime
)

// Glob is Perl's typeglob: the bundle of up to five same-named slots
// in one package's symbol table. Assigning one Glob to another copies
// whichever of the five slot pointers are non-nil ([SUPPLEMENT] in
// SPEC_FULL.md), which is what makes `*a = *b` and `local *foo` work
// as a single atomic aliasing operation.
type Glob struct {
	Name   string
	Scalar *Scalar
	Array  *Array
	Hash   *Hash
	Code   *Code
	IO     interface{}
}

func NewGlob(name string) *Glob { return &Glob{Name: name} }

// AssignFrom aliases every non-nil slot of src into g, leaving g's
// other slots untouched.
func (g *Glob) AssignFrom(src *Glob) {
	if src.Scalar != nil {
		g.Scalar = src.Scalar
	}
	if src.Array != nil {
		g.Array = src.Array
	}
	if src.Hash != nil {
		g.Hash = src.Hash
	}
	if src.Code != nil {
		g.Code = src.Code
	}
	if src.IO != nil {
		g.IO = src.IO
	}
}

// Snapshot captures the current slot pointers for later restoration by
// local *glob (see global.LocalStack).
func (g *Glob) Snapshot() Glob { return *g }

func (g *Glob) Restore(snap Glob) {
	g.Scalar, g.Array, g.Hash, g.Code, g.IO = snap.Scalar, snap.Array, snap.Hash, snap.Code, snap.IO
}
