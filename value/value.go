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

// Package value implements the polymorphic scalar/array/hash/code/glob
// value model: coercions, reference semantics, autovivification and
// reference-counted ownership.
package value

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Tag identifies the concrete representation a Scalar currently holds.
type Tag uint8

const (
	TagUndef Tag = iota
	TagInt
	TagFloat
	TagString
	TagRef
	TagCode
	TagGlob
)

func (t Tag) String() string {
	switch t {
	case TagUndef:
		return "undef"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagRef:
		return "ref"
	case TagCode:
		return "code"
	case TagGlob:
		return "glob"
	default:
		return "???"
	}
}

// flag bits cache which representations are currently valid without
// forcing a recompute; any Set* invalidates the others.
type flag uint8

const (
	flagIOK flag = 1 << iota // iv is valid
	flagNOK                  // nv is valid
	flagPOK                  // pv is valid
	flagROK                  // rv points to a referent (TagRef)
	flagUTF8
	flagReadOnly
	flagList // reference scalar stands for a flattening list, not a container
)

// RefKind distinguishes what a Reference scalar points to.
type RefKind uint8

const (
	RefScalar RefKind = iota
	RefArray
	RefHash
	RefCode
	RefGlob
)

// Scalar is Perl's fundamental polymorphic value: at any time it holds
// exactly one concrete tag, with numeric/string forms cached and
// invalidated on mutation. Scalars are reference counted; handles are
// *Scalar pointers and are never copied by value across aggregate
// boundaries (Copy exists for that).
type Scalar struct {
	tag   Tag
	flags flag
	refs  int32

	iv int64
	nv float64
	pv string

	refKind RefKind
	rv      interface{} // *Scalar | *Array | *Hash | *Code | *Glob

	blessed string // package name, "" if not blessed
}

// NewUndef returns a fresh undef scalar with refcount 1.
func NewUndef() *Scalar { return &Scalar{refs: 1} }

func NewInt(i int64) *Scalar {
	return &Scalar{tag: TagInt, flags: flagIOK, iv: i, refs: 1}
}

func NewFloat(f float64) *Scalar {
	return &Scalar{tag: TagFloat, flags: flagNOK, nv: f, refs: 1}
}

func NewString(s string) *Scalar {
	return &Scalar{tag: TagString, flags: flagPOK, pv: s, refs: 1}
}

func NewCode(c *Code) *Scalar {
	return &Scalar{tag: TagCode, refKind: RefCode, rv: c, refs: 1}
}

// NewRef returns a scalar referencing target, which must be one of
// *Scalar, *Array, *Hash, *Code or *Glob.
func NewRef(kind RefKind, target interface{}) *Scalar {
	s := &Scalar{tag: TagRef, flags: flagROK, refKind: kind, rv: target, refs: 1}
	incRefTarget(target)
	return s
}

func incRefTarget(target interface{}) {
	switch t := target.(type) {
	case *Scalar:
		t.IncRef()
	}
}

// IncRef/DecRef implement the owning-handle refcount contract of §3 and
// §9 ("Cyclic references"): DecRef to zero frees the scalar's own
// reference on whatever it points to, recursively. Cycles are not
// collected, matching Perl.
func (s *Scalar) IncRef() { atomic.AddInt32(&s.refs, 1) }

func (s *Scalar) DecRef() {
	if atomic.AddInt32(&s.refs, -1) > 0 {
		return
	}
	s.free()
}

func (s *Scalar) free() {
	if s.tag == TagRef {
		if sv, ok := s.rv.(*Scalar); ok {
			sv.DecRef()
		}
	}
}

// WeakRef is a non-owning handle for back-pointers (symbol-table
// stash links, parent-scope references) so reference cycles through
// the global tables still tear down deterministically (spec.md §9
// "Cyclic references"). It never contributes to the refcount; Get
// reports nil once every owning handle has dropped.
type WeakRef struct {
	target *Scalar
}

func NewWeakRef(s *Scalar) *WeakRef { return &WeakRef{target: s} }

func (w *WeakRef) Get() *Scalar {
	if w.target == nil || atomic.LoadInt32(&w.target.refs) <= 0 {
		return nil
	}
	return w.target
}

func (s *Scalar) checkWritable() {
	if s.flags&flagReadOnly != 0 {
		panic(errors.New("Modification of a read-only value attempted"))
	}
}

func (s *Scalar) invalidateCache() {
	s.flags &^= flagIOK | flagNOK | flagPOK
}

// SetUndef clears the scalar to Undef, releasing any referent.
func (s *Scalar) SetUndef() {
	s.checkWritable()
	s.free()
	s.tag = TagUndef
	s.flags = 0
	s.iv, s.nv, s.pv, s.rv = 0, 0, "", nil
}

func (s *Scalar) SetInt(i int64) {
	s.checkWritable()
	s.free()
	s.tag, s.iv = TagInt, i
	s.flags = flagIOK
	s.rv = nil
}

func (s *Scalar) SetFloat(f float64) {
	s.checkWritable()
	s.free()
	s.tag, s.nv = TagFloat, f
	s.flags = flagNOK
	s.rv = nil
}

func (s *Scalar) SetString(str string) {
	s.checkWritable()
	s.free()
	s.tag, s.pv = TagString, str
	s.flags = flagPOK
	s.rv = nil
}

func (s *Scalar) SetRef(kind RefKind, target interface{}) {
	s.checkWritable()
	s.free()
	incRefTarget(target)
	s.tag, s.refKind, s.rv = TagRef, kind, target
	s.flags = flagROK
}

func (s *Scalar) Tag() Tag { return s.tag }

func (s *Scalar) IsUndef() bool { return s.tag == TagUndef }
func (s *Scalar) IsRef() bool   { return s.tag == TagRef }
func (s *Scalar) IsCode() bool  { return s.tag == TagCode }

// Deref returns the referent of a Reference scalar, or an error per
// §4.1 ("dereferencing a non-reference ... NotAReference").
func (s *Scalar) Deref() (interface{}, RefKind, error) {
	if s.tag != TagRef {
		return nil, 0, errors.Errorf("Not a REFERENCE")
	}
	return s.rv, s.refKind, nil
}

// Bless sets the blessed package of the referent this scalar is a
// reference to (Perl's bless() operates on the referent, not the ref
// scalar itself, but callers pass the ref scalar for ergonomics).
func (s *Scalar) Bless(pkg string) error {
	if s.tag != TagRef {
		return errors.Errorf("Can't bless non-reference value")
	}
	if sv, ok := s.rv.(*Scalar); ok {
		sv.blessed = pkg
		return nil
	}
	s.blessed = pkg
	return nil
}

func (s *Scalar) Package() string {
	if s.tag == TagRef {
		if sv, ok := s.rv.(*Scalar); ok {
			return sv.blessed
		}
	}
	return s.blessed
}

func (s *Scalar) IsBlessed() bool { return s.Package() != "" }

// MarkList tags a reference scalar as a flattening list: in list
// context (argument collection, list construction, return) it stands
// for its referent's elements rather than for the reference itself.
// This is how `@a`, `1..10` and multi-value call results travel across
// the single-value operand stack without losing Perl's flattening
// boundary (spec.md §4.6 "argument arrays ... so that the callee can
// recognize flattening boundaries").
func (s *Scalar) MarkList() *Scalar {
	s.flags |= flagList
	return s
}

func (s *Scalar) IsList() bool { return s.flags&flagList != 0 }

// ListElems expands one stack value into the scalars it contributes in
// list context: a marked list yields its elements (a hash yields
// alternating key/value pairs), anything else yields itself.
func ListElems(s *Scalar) []*Scalar {
	if !s.IsList() || s.tag != TagRef {
		return []*Scalar{s}
	}
	switch t := s.rv.(type) {
	case *Array:
		return t.Elems()
	case *Hash:
		out := make([]*Scalar, 0, t.Len()*2)
		for _, k := range t.Keys() {
			out = append(out, NewString(k), t.Get(k))
		}
		return out
	default:
		return []*Scalar{s}
	}
}

// FlattenList expands every marked list in vals, in order.
func FlattenList(vals []*Scalar) []*Scalar {
	out := make([]*Scalar, 0, len(vals))
	for _, v := range vals {
		out = append(out, ListElems(v)...)
	}
	return out
}

// Copy returns a new independent scalar with the same value. For
// reference tags the referent is shared (Perl reference-copy
// semantics), matching spec.md's "aggregates are referenced by owning
// handle, assignment of a ref copies the handle, not the data."
func (s *Scalar) Copy() *Scalar {
	c := &Scalar{
		tag: s.tag, flags: s.flags, iv: s.iv, nv: s.nv, pv: s.pv,
		refKind: s.refKind, rv: s.rv, blessed: s.blessed, refs: 1,
	}
	incRefTarget(c.rv)
	return c
}
