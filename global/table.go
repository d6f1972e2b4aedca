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

// Package global implements the dynamic-scope machinery of the
// interpreter core: per-interpreter named-symbol tables, the
// dynamic-variable (`local`) save/restore stack, and the regex capture
// state stack. Everything here is owned by one *Table; no
// package-level state exists, so a process may host multiple
// interpreter instances side by side (spec.md §5).
package global

import (
	"os"
	"strings"

	"github.com/perl-plc/plc/value"
)

// Table is the "process-wide" (in spec.md's original framing,
// per-interpreter here) named-symbol table: five parallel namespaces
// per fully-qualified name, plus the dynamic and regex stacks and the
// package-inheritance cache used to resolve methods.
type Table struct {
	symbols map[string]*value.Glob
	stashes map[string]*Stash

	Locals *LocalStack
	Regex  *RegexStack

	curPackage string
}

// New returns a fresh Table seeded with Perl's documented default
// special variables (spec.md §4.2).
func New() *Table {
	t := &Table{
		symbols:    make(map[string]*value.Glob),
		stashes:    make(map[string]*Stash),
		Locals:     newLocalStack(),
		Regex:      newRegexStack(),
		curPackage: "main",
	}
	t.seedSpecials()
	return t
}

func (t *Table) seedSpecials() {
	t.GlobFor("main::_").Scalar = value.NewUndef()
	t.GlobFor("main::@").Scalar = value.NewString("")
	t.GlobFor("main::!").Scalar = value.NewString("")
	t.GlobFor("main::;").Scalar = value.NewString("\x1c")
	t.GlobFor("main::0").Scalar = value.NewString("-")
	t.GlobFor("main::ARGV").Array = value.NewArray()
	env := value.NewHash()
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env.Set(kv[:i], value.NewString(kv[i+1:]))
		}
	}
	t.GlobFor("main::ENV").Hash = env
}

// Normalize applies spec.md §3's name-normalization rule: an empty
// package defaults to "main"; names already containing "::" are
// returned unchanged relative to the supplied current package.
func Normalize(curPackage, name string) string {
	if strings.Contains(name, "::") {
		if strings.HasPrefix(name, "::") {
			return "main" + name
		}
		return name
	}
	// Perl's single-character punctuation variables and ARGV/ENV/etc.
	// always live in main:: regardless of the current package.
	if isPunctuationVar(name) {
		return "main::" + name
	}
	pkg := curPackage
	if pkg == "" {
		pkg = "main"
	}
	return pkg + "::" + name
}

func isPunctuationVar(name string) bool {
	if len(name) != 1 {
		return name == "ARGV" || name == "ENV" || name == "INC" || name == "STDIN" ||
			name == "STDOUT" || name == "STDERR"
	}
	c := name[0]
	return c == '_' || !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')
}

// SetPackage implements the `package P` directive's effect on
// subsequent unqualified lookups (spec.md §4.5 ties this to C5, but
// the normalized name itself is resolved here).
func (t *Table) SetPackage(pkg string) { t.curPackage = pkg }

func (t *Table) Package() string { return t.curPackage }

// GlobFor get-or-creates the five-slot glob bundle for a
// possibly-unqualified name, normalizing it against the current
// package (Perl's typeglob get-or-create semantics, spec.md §4.2).
func (t *Table) GlobFor(name string) *value.Glob {
	qualified := Normalize(t.curPackage, name)
	if g, ok := t.symbols[qualified]; ok {
		return g
	}
	g := value.NewGlob(qualified)
	t.symbols[qualified] = g
	return g
}

// LookupGlob returns the glob for name if it already exists, without
// creating it.
func (t *Table) LookupGlob(name string) (*value.Glob, bool) {
	qualified := Normalize(t.curPackage, name)
	g, ok := t.symbols[qualified]
	return g, ok
}

// Scalar, Array, Hash, Code get-or-create the requested slot of the
// named glob, matching Perl's per-sigil typeglob accessor semantics.
func (t *Table) Scalar(name string) *value.Scalar {
	g := t.GlobFor(name)
	if g.Scalar == nil {
		g.Scalar = value.NewUndef()
	}
	return g.Scalar
}

func (t *Table) Array(name string) *value.Array {
	g := t.GlobFor(name)
	if g.Array == nil {
		g.Array = value.NewArray()
	}
	return g.Array
}

func (t *Table) Hash(name string) *value.Hash {
	g := t.GlobFor(name)
	if g.Hash == nil {
		g.Hash = value.NewHash()
	}
	return g.Hash
}

// SetArray and SetHash replace a global's aggregate wholesale, the
// storage-level effect of `@x = (...)` / `%x = (...)` on a package
// variable (spec.md §4.2): existing references taken before the
// assignment keep pointing at the old aggregate, matching the same
// simplification already made for typeglob Snapshot/Restore.
func (t *Table) SetArray(name string, a *value.Array) {
	t.GlobFor(name).Array = a
}

func (t *Table) SetHash(name string, h *value.Hash) {
	t.GlobFor(name).Hash = h
}

func (t *Table) SetCode(name string, c *value.Code) {
	t.GlobFor(name).Code = c
}

func (t *Table) Code(name string) *value.Code {
	g := t.GlobFor(name)
	return g.Code
}
