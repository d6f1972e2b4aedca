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

package main

import (
	"strings"
	"testing"
)

func TestParseInlineProgram(t *testing.T) {
	o, err := parseArgs([]string{"-e", "print 1", "a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.codes) != 1 || o.codes[0] != "print 1" {
		t.Fatalf("codes wrong: %+v", o.codes)
	}
	if len(o.args) != 2 || o.args[0] != "a" {
		t.Fatalf("args wrong: %+v", o.args)
	}
}

func TestClusteredSwitches(t *testing.T) {
	o, err := parseArgs([]string{"-ne", "print"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.nLoop {
		t.Fatal("-n not set from cluster")
	}
	if len(o.codes) != 1 || o.codes[0] != "print" {
		t.Fatalf("glued -e not taken: %+v", o.codes)
	}
}

func TestInPlaceWithExtension(t *testing.T) {
	o, err := parseArgs([]string{"-i.bak", "-e", "1", "f.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.inPlace || o.inPlaceExt != ".bak" {
		t.Fatalf("expected -i.bak, got %v %q", o.inPlace, o.inPlaceExt)
	}
}

func TestRecordSeparatorSlurp(t *testing.T) {
	o, err := parseArgs([]string{"-0777", "-e", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.slurp {
		t.Fatal("-0777 must enable slurp mode")
	}
}

func TestAutosplitImpliesLoop(t *testing.T) {
	o, err := parseArgs([]string{"-F:", "-e", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.autosplit || !o.nLoop || o.fPattern != ":" {
		t.Fatalf("expected -F to imply -a -n, got %+v", o)
	}
}

func TestModuleSpecWithArgs(t *testing.T) {
	o, err := parseArgs([]string{"-Mfeature=say,fc", "-e", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.modules) != 1 || o.modules[0].name != "feature" || o.modules[0].args != "say,fc" {
		t.Fatalf("module spec wrong: %+v", o.modules)
	}
}

func TestDiagnosticFlagsMutuallyExclusive(t *testing.T) {
	if _, err := parseArgs([]string{"--tokenize", "--parse", "-e", "1"}); err == nil {
		t.Fatal("expected mutual-exclusion error")
	}
}

func TestMissingProgramIsUsageError(t *testing.T) {
	if _, err := parseArgs([]string{"-n"}); err == nil {
		t.Fatal("expected usage error")
	}
}

func TestWrapProducesReadLoop(t *testing.T) {
	o := &options{nLoop: true, pLoop: true, lMode: true, lSep: "\n"}
	src := o.wrap(`s/a/b/`)
	for _, want := range []string{"__readline__", "chomp($_)", "print $_"} {
		if !strings.Contains(src, want) {
			t.Fatalf("wrapped program missing %q:\n%s", want, src)
		}
	}
}

func TestDoubleDashEndsOptions(t *testing.T) {
	o, err := parseArgs([]string{"-e", "1", "--", "-notaflag"})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.args) != 1 || o.args[0] != "-notaflag" {
		t.Fatalf("expected -notaflag as plain arg, got %+v", o.args)
	}
}
