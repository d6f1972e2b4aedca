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
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/perl-plc/plc/ast"
	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/config"
	"github.com/perl-plc/plc/diag"
	"github.com/perl-plc/plc/interp"
	"github.com/perl-plc/plc/lex"
	"github.com/perl-plc/plc/parse"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plc: %v\n", err)
		usage(os.Stderr)
		return 2
	}

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "plc: %v\n", err)
		return 2
	}
	if cfg.Debug || opts.debug {
		diag.SetDebug(true)
	}
	opts.includes = append(cfg.IncludePaths, opts.includes...)
	for _, m := range cfg.Modules {
		opts.modules = append([]moduleSpec{{name: m}}, opts.modules...)
	}

	src, name, err := opts.programSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "plc: %v\n", err)
		return 2
	}
	src = opts.wrap(src)

	switch {
	case opts.tokenize:
		return tokenizeMain(src, name)
	case opts.parseOnly:
		return parseMain(src, name)
	case opts.disasm:
		return disasmMain(src, name)
	}

	it := interp.New(
		interp.WithArgs(opts.args),
		interp.WithProgramName(name),
	)
	seedINC(it, opts.includes)

	if opts.compileOnly {
		if _, err := it.Compile(src, name); err != nil {
			atExit(err, opts.debug)
			return 1
		}
		fmt.Printf("%s syntax OK\n", name)
		return 0
	}

	if opts.inPlace && len(opts.args) > 0 {
		return runInPlace(opts, src, name)
	}

	if err := it.Run(src, name); err != nil {
		atExit(err, opts.debug)
		return 1
	}
	return 0
}

// atExit reports a fatal error the way the teacher's cmd does: the
// full cause chain under -debug, the short message otherwise.
func atExit(err error, debug bool) {
	if debug {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		return
	}
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(os.Stderr, msg)
}

func seedINC(it *interp.Interpreter, includes []string) {
	inc := it.Globals.Array("main::INC")
	for _, dir := range includes {
		inc.Push(strScalar(dir))
	}
}

func tokenizeMain(src, name string) int {
	lx := lex.New(src, name)
	for {
		t := lx.Next()
		if t.Kind == lex.EOF {
			break
		}
		fmt.Printf("%s\t%q\n", t.Kind, t.Text)
	}
	if len(lx.Errs) > 0 {
		atExit(lx.Errs, false)
		return 1
	}
	return 0
}

func parseMain(src, name string) int {
	prog, err := parse.Parse(lex.New(src, name))
	if err != nil {
		atExit(err, false)
		return 1
	}
	ast.Fprint(os.Stdout, prog)
	return 0
}

func disasmMain(src, name string) int {
	it := interp.New()
	u, err := it.Compile(src, name)
	if err != nil {
		atExit(err, false)
		return 1
	}
	fmt.Print(bytecode.Disassemble(u.Main))
	names := make([]string, 0, len(u.Subs))
	for n := range u.Subs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Print(bytecode.Disassemble(u.Subs[n]))
	}
	return 0
}

// runInPlace implements -i[EXT]: each named file becomes the program's
// input, its output replaces the file, and the original is kept under
// the backup extension if one was given.
func runInPlace(opts *options, src, name string) int {
	for _, path := range opts.args {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "plc: %v\n", err)
			return 1
		}
		var out strings.Builder
		it := interp.New(
			interp.WithStdin(strings.NewReader(string(data))),
			interp.WithStdout(&out),
			interp.WithProgramName(name),
		)
		seedINC(it, opts.includes)
		if err := it.Run(src, name); err != nil {
			atExit(err, opts.debug)
			return 1
		}
		if opts.inPlaceExt != "" {
			if err := ioutil.WriteFile(path+opts.inPlaceExt, data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "plc: %v\n", err)
				return 1
			}
		}
		if err := ioutil.WriteFile(path, []byte(out.String()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "plc: %v\n", err)
			return 1
		}
	}
	return 0
}
