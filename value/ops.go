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

import (
	"strings"

	"github.com/pkg/errors"
)

// Add, Sub, Mul, Div implement numeric binary operators per spec.md
// §4.1 ("in-place arithmetic for compound assignment", "comparison").
// Each returns a fresh Scalar; in-place variants (AddAssign, ...)
// overwrite dst in place and return nothing, matching the emitter's dedicated
// compound-assignment entry points (§4.6).

func numericResult(a, b *Scalar, fn func(x, y float64) float64) *Scalar {
	if a.Tag() == TagInt && b.Tag() == TagInt {
		// fall through to integer path below in callers that need it
	}
	return NewFloat(fn(a.AsFloat(), b.AsFloat()))
}

func Add(a, b *Scalar) *Scalar {
	if isIntish(a) && isIntish(b) {
		return NewInt(a.AsInt() + b.AsInt())
	}
	return numericResult(a, b, func(x, y float64) float64 { return x + y })
}

func Sub(a, b *Scalar) *Scalar {
	if isIntish(a) && isIntish(b) {
		return NewInt(a.AsInt() - b.AsInt())
	}
	return numericResult(a, b, func(x, y float64) float64 { return x - y })
}

func Mul(a, b *Scalar) *Scalar {
	if isIntish(a) && isIntish(b) {
		return NewInt(a.AsInt() * b.AsInt())
	}
	return numericResult(a, b, func(x, y float64) float64 { return x * y })
}

// Div implements `/`, always producing a floating result per Perl
// semantics (integer division is a distinct `use integer` variant
// selected by the emitter per §4.5's strictness hints). Division by
// zero fails with Arithmetic (§4.1).
func Div(a, b *Scalar) (*Scalar, error) {
	d := b.AsFloat()
	if d == 0 {
		return nil, errors.Errorf("Illegal division by zero")
	}
	return NewFloat(a.AsFloat() / d), nil
}

// isIntish reports whether a scalar's canonical representation is
// already integral, so integer-only arithmetic can skip the float
// path entirely.
func isIntish(s *Scalar) bool {
	return s.Tag() == TagInt || s.Tag() == TagUndef
}

// AddAssign implements `+=` and friends in place on dst, as required
// for operator-overloading-capable compound assignment targets (§4.6).
func AddAssign(dst, rhs *Scalar) { *dst = *Add(dst, rhs) }
func SubAssign(dst, rhs *Scalar) { *dst = *Sub(dst, rhs) }
func MulAssign(dst, rhs *Scalar) { *dst = *Mul(dst, rhs) }

// NumCompare implements `<=>`: -1, 0, 1, matching IEEE-NaN-is-undef
// semantics is left to callers (Perl returns undef for NaN compares,
// out of scope for the size budget here).
func NumCompare(a, b *Scalar) int {
	x, y := a.AsFloat(), b.AsFloat()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// StrCompare implements `cmp`.
func StrCompare(a, b *Scalar) int {
	return strings.Compare(a.AsString(), b.AsString())
}

// Concat implements `.`.
func Concat(a, b *Scalar) *Scalar {
	return NewString(a.AsString() + b.AsString())
}

// Join implements the `join` builtin's core loop.
func Join(sep string, vals []*Scalar) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.AsString()
	}
	return strings.Join(parts, sep)
}

// AutovivArray implements "$x->[i]" autovivification (§4.1): if s is
// Undef, it mutates s in place into an array reference and returns the
// referenced Array; otherwise it dereferences s, failing with
// NotAReference if s holds something else.
func AutovivArray(s *Scalar) (*Array, error) {
	if s.IsUndef() {
		a := NewArray()
		s.SetRef(RefArray, a)
		return a, nil
	}
	if s.Tag() != TagRef || s.refKind != RefArray {
		return nil, errors.Errorf("Not an ARRAY reference")
	}
	return s.rv.(*Array), nil
}

// AutovivHash implements "$x->{k}" autovivification.
func AutovivHash(s *Scalar) (*Hash, error) {
	if s.IsUndef() {
		h := NewHash()
		s.SetRef(RefHash, h)
		return h, nil
	}
	if s.Tag() != TagRef || s.refKind != RefHash {
		return nil, errors.Errorf("Not a HASH reference")
	}
	return s.rv.(*Hash), nil
}

// DeepCopy clones s and, transitively, every aggregate reachable from
// it; shared substructure is preserved and reference cycles terminate
// (each visited container is cloned once).
func DeepCopy(s *Scalar) *Scalar {
	return deepCopy(s, map[interface{}]interface{}{})
}

func deepCopy(s *Scalar, seen map[interface{}]interface{}) *Scalar {
	c := s.Copy()
	if s.Tag() != TagRef {
		return c
	}
	switch t := s.rv.(type) {
	case *Scalar:
		if dup, ok := seen[t]; ok {
			c.rv = dup
			return c
		}
		dup := t.Copy()
		seen[t] = dup
		*dup = *deepCopy(t, seen)
		c.rv = dup
	case *Array:
		if dup, ok := seen[t]; ok {
			c.rv = dup
			return c
		}
		dup := NewArray()
		seen[t] = dup
		for _, e := range t.Elems() {
			dup.Push(deepCopy(e, seen))
		}
		c.rv = dup
	case *Hash:
		if dup, ok := seen[t]; ok {
			c.rv = dup
			return c
		}
		dup := NewHash()
		seen[t] = dup
		for _, k := range t.Keys() {
			dup.Set(k, deepCopy(t.Get(k), seen))
		}
		c.rv = dup
	}
	return c
}

// DerefArray dereferences s as an array reference without
// autovivifying (read context).
func DerefArray(s *Scalar) (*Array, error) {
	if s.Tag() != TagRef || s.refKind != RefArray {
		return nil, errors.Errorf("Not an ARRAY reference")
	}
	return s.rv.(*Array), nil
}

// DerefHash dereferences s as a hash reference without autovivifying.
func DerefHash(s *Scalar) (*Hash, error) {
	if s.Tag() != TagRef || s.refKind != RefHash {
		return nil, errors.Errorf("Not a HASH reference")
	}
	return s.rv.(*Hash), nil
}

// DerefCode dereferences s as a code reference.
func DerefCode(s *Scalar) (*Code, error) {
	if s.Tag() == TagCode {
		return s.rv.(*Code), nil
	}
	if s.Tag() == TagRef && s.refKind == RefCode {
		return s.rv.(*Code), nil
	}
	return nil, errors.Errorf("Not a CODE reference")
}
