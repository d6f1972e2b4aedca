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
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AsInt implements the Integer column of the coercion table in spec.md
// §4.1.
func (s *Scalar) AsInt() int64 {
	if s.flags&flagIOK != 0 {
		return s.iv
	}
	var i int64
	switch s.tag {
	case TagUndef:
		i = 0
	case TagInt:
		i = s.iv
	case TagFloat:
		i = truncateToInt(s.nv)
	case TagString:
		i, _ = stringToInt(s.pv)
	case TagRef, TagCode:
		i = refID(s)
	}
	s.iv = i
	s.flags |= flagIOK
	return i
}

// AsFloat implements the Double column.
func (s *Scalar) AsFloat() float64 {
	if s.flags&flagNOK != 0 {
		return s.nv
	}
	var f float64
	switch s.tag {
	case TagUndef:
		f = 0
	case TagInt:
		f = float64(s.iv)
	case TagFloat:
		f = s.nv
	case TagString:
		f, _ = stringToFloat(s.pv)
	case TagRef, TagCode:
		f = float64(refID(s))
	}
	s.nv = f
	s.flags |= flagNOK
	return f
}

// AsString implements the String column.
func (s *Scalar) AsString() string {
	if s.flags&flagPOK != 0 {
		return s.pv
	}
	var str string
	switch s.tag {
	case TagUndef:
		str = ""
	case TagInt:
		str = strconv.FormatInt(s.iv, 10)
	case TagFloat:
		str = formatFloat(s.nv)
	case TagString:
		str = s.pv
	case TagRef:
		str = refString(s, kindName(s.refKind))
	case TagCode:
		str = refString(s, "CODE")
	}
	s.pv = str
	s.flags |= flagPOK
	return str
}

// AsBool implements the Boolean column.
func (s *Scalar) AsBool() bool {
	switch s.tag {
	case TagUndef:
		return false
	case TagInt:
		return s.iv != 0
	case TagFloat:
		return s.nv != 0.0
	case TagString:
		return s.pv != "" && s.pv != "0"
	case TagRef, TagCode:
		return true
	}
	return false
}

func kindName(k RefKind) string {
	switch k {
	case RefScalar:
		return "SCALAR"
	case RefArray:
		return "ARRAY"
	case RefHash:
		return "HASH"
	case RefCode:
		return "CODE"
	case RefGlob:
		return "GLOB"
	default:
		return "REF"
	}
}

func refString(s *Scalar, kind string) string {
	if pkg := s.Package(); pkg != "" {
		return fmt.Sprintf("%s=%s(0x%x)", pkg, kind, refID(s))
	}
	return fmt.Sprintf("%s(0x%x)", kind, refID(s))
}

func refID(s *Scalar) int64 {
	p := fmt.Sprintf("%p", s) // "0x" + hex address
	n, _ := strconv.ParseUint(p[2:], 16, 64)
	return int64(n)
}

func truncateToInt(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// stringToInt implements "parse-leading": optional sign, digits, stop
// at first non-digit. Unrecognized prefix yields 0.
func stringToInt(str string) (int64, int) {
	str = strings.TrimLeft(str, " \t\n\r")
	i := 0
	if i < len(str) && (str[i] == '+' || str[i] == '-') {
		i++
	}
	start := i
	for i < len(str) && str[i] >= '0' && str[i] <= '9' {
		i++
	}
	if i == start {
		return 0, 0
	}
	n, _ := strconv.ParseInt(str[:i], 10, 64)
	return n, i
}

// stringToFloat implements "parse-leading" for doubles: sign, digits,
// optional fraction, optional exponent.
func stringToFloat(str string) (float64, int) {
	orig := str
	str = strings.TrimLeft(str, " \t\n\r")
	lead := len(orig) - len(str)
	i := 0
	if i < len(str) && (str[i] == '+' || str[i] == '-') {
		i++
	}
	digitsStart := i
	for i < len(str) && str[i] >= '0' && str[i] <= '9' {
		i++
	}
	if i < len(str) && str[i] == '.' {
		i++
		for i < len(str) && str[i] >= '0' && str[i] <= '9' {
			i++
		}
	}
	if i == digitsStart || (i == digitsStart+1 && str[digitsStart] == '.') {
		return 0, 0
	}
	end := i
	if end < len(str) && (str[end] == 'e' || str[end] == 'E') {
		j := end + 1
		if j < len(str) && (str[j] == '+' || str[j] == '-') {
			j++
		}
		k := j
		for k < len(str) && str[k] >= '0' && str[k] <= '9' {
			k++
		}
		if k > j {
			end = k
		}
	}
	f, err := strconv.ParseFloat(str[:end], 64)
	if err != nil {
		return 0, 0
	}
	return f, lead + end
}

// formatFloat renders a float the way Perl's default stringification
// does: shortest round-tripping %g-like form, with Inf/NaN spelled out.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	str := strconv.FormatFloat(f, 'g', 15, 64)
	// Perl never emits a bare exponent without a sign, and upper-cases
	// nothing; strconv already matches both, only the "e+05"-vs-"e+5"
	// padding differs and Perl doesn't zero-pad exponents either way.
	return str
}

// Increment implements Perl's `++`: numeric increment for numeric
// scalars, Perl's "magic" string auto-increment (spec.md §4.1) when
// the scalar holds a string whose first character is alphabetic,
// otherwise falls back to numeric increment of the parsed value.
func (s *Scalar) Increment() {
	s.checkWritable()
	if s.tag == TagString && s.flags&flagPOK != 0 && isMagicIncrementable(s.pv) {
		s.SetString(stringIncrement(s.pv))
		return
	}
	if s.tag == TagFloat {
		s.SetFloat(s.AsFloat() + 1)
		return
	}
	s.SetInt(s.AsInt() + 1)
}

func isMagicIncrementable(str string) bool {
	if str == "" {
		return false
	}
	c := str[0]
	if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
		return false
	}
	for i := 0; i < len(str); i++ {
		c := str[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// stringIncrement implements "9->10, Z->AA, z->aa, carries propagate
// leftward".
func stringIncrement(str string) string {
	b := []byte(str)
	for i := len(b) - 1; i >= 0; i-- {
		switch {
		case b[i] >= '0' && b[i] < '9':
			b[i]++
			return string(b)
		case b[i] == '9':
			b[i] = '0'
			if i == 0 {
				return "1" + string(b)
			}
		case b[i] >= 'a' && b[i] < 'z':
			b[i]++
			return string(b)
		case b[i] == 'z':
			b[i] = 'a'
			if i == 0 {
				return "a" + string(b)
			}
		case b[i] >= 'A' && b[i] < 'Z':
			b[i]++
			return string(b)
		case b[i] == 'Z':
			b[i] = 'A'
			if i == 0 {
				return "A" + string(b)
			}
		default:
			// non-alphanumeric byte reached mid-carry: fall back to
			// plain numeric increment of the whole string.
			n, _ := stringToInt(str)
			return strconv.FormatInt(n+1, 10)
		}
	}
	return string(b)
}
