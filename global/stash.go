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

import "github.com/perl-plc/plc/value"

// Stash is a package's method-resolution state: a memoized method
// cache (the @ISA list itself is the global array PKG::ISA). The cache
// is dropped only by InvalidateISA, not by writes to @ISA. This is
// the [SUPPLEMENT] described in SPEC_FULL.md §4.2 — spec.md's dynamic
// model never specifies method resolution, but C1's Bless/Isa need
// somewhere to look it up.
type Stash struct {
	pkg   string
	cache map[string]string // method name -> resolved package
}

func (t *Table) stashFor(pkg string) *Stash {
	if s, ok := t.stashes[pkg]; ok {
		return s
	}
	s := &Stash{pkg: pkg, cache: make(map[string]string)}
	t.stashes[pkg] = s
	return s
}

// InvalidateISA drops pkg's method cache; call after any write to
// @pkg::ISA.
func (t *Table) InvalidateISA(pkg string) {
	if s, ok := t.stashes[pkg]; ok {
		s.cache = make(map[string]string)
	}
}

// ResolveMethod walks @ISA depth-first, left-to-right (classic Perl
// MRO, not C3) looking for a sub named method, starting at pkg itself.
// Results are memoized per-package until InvalidateISA.
func (t *Table) ResolveMethod(pkg, method string) (*value.Code, string, bool) {
	s := t.stashFor(pkg)
	if owner, ok := s.cache[method]; ok {
		return t.Code(owner + "::" + method), owner, true
	}
	owner, ok := t.resolveDFS(pkg, method, map[string]bool{})
	if !ok {
		return nil, "", false
	}
	s.cache[method] = owner
	return t.Code(owner + "::" + method), owner, true
}

func (t *Table) resolveDFS(pkg, method string, seen map[string]bool) (string, bool) {
	if seen[pkg] {
		return "", false
	}
	seen[pkg] = true
	if c := t.Code(pkg + "::" + method); c != nil {
		return pkg, true
	}
	isa, ok := t.LookupGlob(pkg + "::ISA")
	if !ok || isa.Array == nil {
		return "", false
	}
	for _, parent := range isa.Array.Elems() {
		if owner, ok := t.resolveDFS(parent.AsString(), method, seen); ok {
			return owner, true
		}
	}
	return "", false
}
