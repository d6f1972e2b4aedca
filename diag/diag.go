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

// Package diag carries the error kinds and formatting rules of the
// compiler and runtime: lex/parse/compile errors with file, line and
// caret, runtime errors by kind, and the user-visible
// "message at FILE line N." rendering.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for programmatic handling.
type Kind int

const (
	// lex/parse
	UnexpectedToken Kind = iota
	UnterminatedString
	UnterminatedHeredoc
	BadNumber
	UnknownSigil

	// compile
	UndeclaredVariable
	BarewordNotAllowed
	TooLargeMethod

	// runtime
	NotAReference
	Arithmetic
	TypeCoercion
	LabelNotFound
	StackOverflow
	UserDie
)

var kindNames = [...]string{
	UnexpectedToken:     "UnexpectedToken",
	UnterminatedString:  "UnterminatedString",
	UnterminatedHeredoc: "UnterminatedHeredoc",
	BadNumber:           "BadNumber",
	UnknownSigil:        "UnknownSigil",
	UndeclaredVariable:  "UndeclaredVariable",
	BarewordNotAllowed:  "BarewordNotAllowed",
	TooLargeMethod:      "TooLargeMethod",
	NotAReference:       "NotAReference",
	Arithmetic:          "Arithmetic",
	TypeCoercion:        "TypeCoercion",
	LabelNotFound:       "LabelNotFound",
	StackOverflow:       "StackOverflow",
	UserDie:             "UserDie",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is one diagnostic: a kind, the message, and the source
// position it points at. Line 0 means "no position" (e.g. a runtime
// error with no statement mapping).
type Error struct {
	Kind Kind
	Msg  string
	File string
	Line int
	Col  int

	cause error
}

// New builds a positioned diagnostic.
func New(kind Kind, file string, line int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), File: file, Line: line}
}

// Runtime builds an unpositioned runtime diagnostic.
func Runtime(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause, preserved for errors.Cause chains.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

func (e *Error) Cause() error { return e.cause }

// Error renders the message the way Perl reports uncaught errors:
// `message at FILE line N.` when the message does not already end in
// a newline and a position is known; the bare message otherwise.
func (e *Error) Error() string {
	if len(e.Msg) > 0 && e.Msg[len(e.Msg)-1] == '\n' {
		return e.Msg
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s at %s line %d.\n", e.Msg, e.File, e.Line)
	}
	return e.Msg
}

// Caret renders a compile-time diagnostic with the offending source
// line and a caret column marker, for terminal display.
func (e *Error) Caret(srcLine string) string {
	out := e.Error()
	if srcLine == "" || e.Col <= 0 {
		return out
	}
	pad := make([]byte, 0, e.Col)
	for i := 1; i < e.Col; i++ {
		pad = append(pad, ' ')
	}
	return fmt.Sprintf("%s%s\n%s^\n", out, srcLine, pad)
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error;
// ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsUserDie reports whether err carries a user `die` (catchable by
// eval) as opposed to an internal or compile error.
func IsUserDie(err error) bool {
	k, ok := KindOf(err)
	return ok && k == UserDie
}
