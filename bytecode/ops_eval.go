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

package bytecode

import (
	"regexp"

	"github.com/perl-plc/plc/global"
	"github.com/perl-plc/plc/value"
	"github.com/pkg/errors"
)

// evalBinOp implements the table-driven operator lowering target: the
// emitter picks the operator name, this table picks the Go behavior
// (spec.md §4.6's "table-driven operator lowering", executed here
// rather than inlined per-opcode the way the teacher's arithmetic
// opcodes are in vm/run.go).
func evalBinOp(op string, a, b *value.Scalar) (*value.Scalar, error) {
	switch op {
	case "+":
		return value.Add(a, b), nil
	case "-":
		return value.Sub(a, b), nil
	case "*":
		return value.Mul(a, b), nil
	case "/":
		return value.Div(a, b)
	case "%":
		d := b.AsInt()
		if d == 0 {
			return nil, errors.Errorf("Illegal modulus zero")
		}
		m := a.AsInt() % d
		if m != 0 && (m < 0) != (d < 0) {
			m += d // Perl: the result takes the sign of the right operand
		}
		return value.NewInt(m), nil
	case ".":
		return value.Concat(a, b), nil
	case "x":
		return repeatString(a, b), nil
	case "==":
		return boolScalar(a.AsFloat() == b.AsFloat()), nil
	case "!=":
		return boolScalar(a.AsFloat() != b.AsFloat()), nil
	case "<":
		return boolScalar(a.AsFloat() < b.AsFloat()), nil
	case ">":
		return boolScalar(a.AsFloat() > b.AsFloat()), nil
	case "<=":
		return boolScalar(a.AsFloat() <= b.AsFloat()), nil
	case ">=":
		return boolScalar(a.AsFloat() >= b.AsFloat()), nil
	case "<=>":
		return value.NewInt(int64(value.NumCompare(a, b))), nil
	case "eq":
		return boolScalar(a.AsString() == b.AsString()), nil
	case "ne":
		return boolScalar(a.AsString() != b.AsString()), nil
	case "lt":
		return boolScalar(a.AsString() < b.AsString()), nil
	case "gt":
		return boolScalar(a.AsString() > b.AsString()), nil
	case "le":
		return boolScalar(a.AsString() <= b.AsString()), nil
	case "ge":
		return boolScalar(a.AsString() >= b.AsString()), nil
	case "cmp":
		return value.NewInt(int64(value.StrCompare(a, b))), nil
	case "&&", "and":
		if !a.AsBool() {
			return a.Copy(), nil
		}
		return b.Copy(), nil
	case "||", "or":
		if a.AsBool() {
			return a.Copy(), nil
		}
		return b.Copy(), nil
	case "//":
		if !a.IsUndef() {
			return a.Copy(), nil
		}
		return b.Copy(), nil
	case "&":
		return value.NewInt(a.AsInt() & b.AsInt()), nil
	case "|":
		return value.NewInt(a.AsInt() | b.AsInt()), nil
	case "^":
		return value.NewInt(a.AsInt() ^ b.AsInt()), nil
	case "<<":
		return value.NewInt(a.AsInt() << uint(b.AsInt())), nil
	case ">>":
		return value.NewInt(a.AsInt() >> uint(b.AsInt())), nil
	case "**":
		return powScalar(a, b), nil
	}
	return nil, errors.Errorf("unknown binary operator %q", op)
}

func evalUnOp(op string, a *value.Scalar) *value.Scalar {
	switch op {
	case "-":
		if a.Tag() == value.TagInt {
			return value.NewInt(-a.AsInt())
		}
		return value.NewFloat(-a.AsFloat())
	case "+":
		return a.Copy()
	case "!", "not":
		return boolScalar(!a.AsBool())
	case "~":
		return value.NewInt(^a.AsInt())
	case "preInc":
		a.Increment()
		return a.Copy()
	case "postInc":
		pre := a.Copy()
		a.Increment()
		return pre
	case "preDec":
		value.SubAssign(a, value.NewInt(1))
		return a.Copy()
	case "postDec":
		pre := a.Copy()
		value.SubAssign(a, value.NewInt(1))
		return pre
	}
	return value.NewUndef()
}

func boolScalar(b bool) *value.Scalar {
	if b {
		return value.NewInt(1)
	}
	return value.NewString("")
}

func repeatString(a, b *value.Scalar) *value.Scalar {
	n := int(b.AsInt())
	if n <= 0 {
		return value.NewString("")
	}
	s := a.AsString()
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return value.NewString(string(out))
}

func powScalar(a, b *value.Scalar) *value.Scalar {
	base, exp := a.AsFloat(), b.AsFloat()
	result := 1.0
	// integer fast path covers the common case; fractional/negative
	// exponents are out of scope (spec.md's Non-goals exclude a full
	// math library).
	if exp == float64(int64(exp)) && exp >= 0 {
		n := int64(exp)
		for i := int64(0); i < n; i++ {
			result *= base
		}
		return value.NewFloat(result)
	}
	return value.NewFloat(1)
}

// evalRegexMatch implements the minimal `=~ /pattern/` runtime support
// needed to exercise the global.RegexStack capture-state machinery
// (spec.md §4.2): it compiles pattern with the standard library RE2
// engine, matches it against target's string form, and on success
// pushes a MatchState snapshot recording the whole match and captures.
func evalRegexMatch(g *global.Table, pattern string, target *value.Scalar) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	s := target.AsString()
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return false
	}
	names := re.SubexpNames()
	m := &global.MatchState{
		Whole:     s[loc[0]:loc[1]],
		PreMatch:  s[:loc[0]],
		PostMatch: s[loc[1]:],
	}
	named := make(map[string]string)
	for i := 0; i*2 < len(loc); i++ {
		start, end := loc[i*2], loc[i*2+1]
		group := ""
		if start >= 0 && end >= 0 {
			group = s[start:end]
		}
		m.Captures = append(m.Captures, group)
		m.Starts = append(m.Starts, start)
		m.Ends = append(m.Ends, end)
		if i < len(names) && names[i] != "" {
			named[names[i]] = group
		}
	}
	m.Named = named
	g.Regex.SetMatch(m)
	return true
}
