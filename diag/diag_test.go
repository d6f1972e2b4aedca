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

package diag

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestErrorRendersPerlStyle(t *testing.T) {
	e := New(UserDie, "script.pl", 3, "Died")
	if got := e.Error(); got != "Died at script.pl line 3.\n" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorKeepsTrailingNewlineMessageVerbatim(t *testing.T) {
	e := New(UserDie, "script.pl", 3, "boom\n")
	if got := e.Error(); got != "boom\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRuntimeErrorWithoutPosition(t *testing.T) {
	e := Runtime(Arithmetic, "Illegal division by zero")
	if got := e.Error(); got != "Illegal division by zero" {
		t.Fatalf("got %q", got)
	}
}

func TestKindOfThroughWrapChain(t *testing.T) {
	e := Runtime(NotAReference, "Not an ARRAY reference")
	wrapped := errors.Wrap(e, "while compiling")
	k, ok := KindOf(wrapped)
	if !ok || k != NotAReference {
		t.Fatalf("expected NotAReference through the wrap chain, got %v %v", k, ok)
	}
	if !strings.Contains(wrapped.Error(), "Not an ARRAY reference") {
		t.Fatalf("cause lost: %q", wrapped.Error())
	}
}

func TestIsUserDie(t *testing.T) {
	if !IsUserDie(Runtime(UserDie, "x\n")) {
		t.Fatal("expected UserDie to be recognized")
	}
	if IsUserDie(Runtime(Arithmetic, "y")) {
		t.Fatal("Arithmetic must not be a user die")
	}
}

func TestCaretPointsAtColumn(t *testing.T) {
	e := New(UnexpectedToken, "t.pl", 1, "unexpected token")
	e.Col = 5
	out := e.Caret("my $x = ;")
	if !strings.Contains(out, "    ^") {
		t.Fatalf("expected caret at column 5, got %q", out)
	}
}
