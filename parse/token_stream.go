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

// Package parse turns a token stream into an AST: a Pratt expression
// parser layered under a recursive-descent statement grammar, per
// spec.md §4.4.
package parse

import "github.com/perl-plc/plc/lex"

// stream wraps a *lex.Lexer, dropping the kinds that carry no grammar
// meaning (whitespace is never produced, comments and newlines are
// insignificant to Perl's statement grammar: only `;` terminates a
// statement) and buffering a small amount of lookahead.
type stream struct {
	lx  *lex.Lexer
	buf []*lex.Token
}

func newStream(lx *lex.Lexer) *stream {
	return &stream{lx: lx}
}

func (s *stream) fill(n int) {
	for len(s.buf) <= n {
		for {
			t := s.lx.Next()
			if t.Kind == lex.Newline || t.Kind == lex.Comment {
				continue
			}
			s.buf = append(s.buf, t)
			break
		}
	}
}

func (s *stream) peekN(n int) *lex.Token {
	s.fill(n)
	return s.buf[n]
}

func (s *stream) peek() *lex.Token { return s.peekN(0) }

func (s *stream) next() *lex.Token {
	s.fill(0)
	t := s.buf[0]
	s.buf = s.buf[1:]
	return t
}
