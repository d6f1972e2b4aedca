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

// Package interp is the control-flow runtime tying the compiler's
// pieces together: it owns one interpreter instance's global tables,
// drives compiled methods through the bytecode machine, and implements
// the marked-return protocol — trampolined tail calls, last/next/redo
// markers crossing call boundaries through the control-flow registry,
// and the eval catch surface (spec.md §4.7).
package interp

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/diag"
	"github.com/perl-plc/plc/emit"
	"github.com/perl-plc/plc/global"
	"github.com/perl-plc/plc/lex"
	"github.com/perl-plc/plc/parse"
	"github.com/perl-plc/plc/value"
)

// MaxCallDepth bounds recursion before a StackOverflow diagnostic is
// raised instead of exhausting the Go stack.
const MaxCallDepth = 4096

// Interpreter is one isolated instance: its own symbol tables, dynamic
// stack, regex state and method registry. Instances never share
// mutable state, so a process may run several side by side (spec.md
// §5).
type Interpreter struct {
	Globals *global.Table

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	file    string
	methods map[string]*bytecode.Method
	depth   int

	// pending is the control-flow registry: a marker produced inside a
	// callee (e.g. `next` in a closure passed to sort) parks here and
	// is consumed by the owning loop at the next poll point.
	pending    bytecode.Signal
	hasPending bool

	// dieFlag is the cooperative cancellation hook: a signal handler
	// sets it, the next statement boundary raises it as a die.
	dieFlag atomic.Value // string

	stdinRd *bufio.Reader
}

// Option configures an Interpreter, following the teacher's
// functional-option constructor shape.
type Option func(*Interpreter)

func WithStdout(w io.Writer) Option { return func(it *Interpreter) { it.Stdout = w } }
func WithStderr(w io.Writer) Option { return func(it *Interpreter) { it.Stderr = w } }
func WithStdin(r io.Reader) Option  { return func(it *Interpreter) { it.Stdin = r } }

// WithArgs seeds @ARGV.
func WithArgs(args []string) Option {
	return func(it *Interpreter) {
		argv := it.Globals.Array("main::ARGV")
		for _, a := range args {
			argv.Push(value.NewString(a))
		}
	}
}

// WithProgramName seeds $0.
func WithProgramName(name string) Option {
	return func(it *Interpreter) { it.Globals.Scalar("main::0").SetString(name) }
}

func New(opts ...Option) *Interpreter {
	it := &Interpreter{
		Globals: global.New(),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Stdin:   os.Stdin,
		methods: make(map[string]*bytecode.Method),
	}
	for _, o := range opts {
		o(it)
	}
	it.registerBuiltins()
	return it
}

// Compile runs source through the frontend and emitter without
// executing anything (the CLI's -c).
func (it *Interpreter) Compile(src, filename string) (*emit.Unit, error) {
	lx := lex.New(src, filename)
	prog, err := parse.Parse(lx)
	if err != nil {
		return nil, err
	}
	return emit.Compile(prog)
}

// Run compiles and executes source as the program's main compilation
// unit.
func (it *Interpreter) Run(src, filename string) error {
	it.file = filename
	u, err := it.Compile(src, filename)
	if err != nil {
		return err
	}
	return it.RunUnit(u)
}

// RunUnit installs a unit's subs into the symbol table (compile-time
// sub binding) and executes its main body.
func (it *Interpreter) RunUnit(u *emit.Unit) error {
	it.register(u)
	in := bytecode.NewInterp(u.Main, it.Globals, it, value.NewArray())
	in.Poll = it.poll
	_, sig, err := in.Run()
	if err != nil {
		return err
	}
	return it.checkTopLevelSignal(sig)
}

// register installs every compiled method; named subs additionally get
// a code slot in the symbol table so OpCall resolves them. Anonymous
// bodies stay registry-only: they are bound to their captured pads by
// OpLoadAnonCode.
func (it *Interpreter) register(u *emit.Unit) {
	for name, m := range u.Subs {
		it.methods[name] = m
		if !strings.Contains(name, "__ANON__") {
			it.Globals.SetCode(name, &value.Code{Name: name})
		}
	}
}

// checkTopLevelSignal turns a marker that survived to the outermost
// method into the user-visible error spec.md §7 requires.
func (it *Interpreter) checkTopLevelSignal(sig bytecode.Signal) error {
	switch sig.Kind {
	case bytecode.SigNone, bytecode.SigReturn:
		return nil
	case bytecode.SigGoto:
		if strings.HasPrefix(sig.Label, "&") {
			// tail call at top level: run it and discard the result
			_, err := it.tailCall(sig)
			return err
		}
		return diag.Runtime(diag.LabelNotFound, "Can't find label %s", sig.Label)
	default:
		return diag.Runtime(diag.LabelNotFound, "Label not found for %q", sig.Label)
	}
}

// poll is the per-statement cooperative check (spec.md §5): it raises
// the die-flag set by a signal handler, if any.
func (it *Interpreter) poll() error {
	if msg, ok := it.dieFlag.Load().(string); ok && msg != "" {
		it.dieFlag.Store("")
		return diag.Runtime(diag.UserDie, "%s", msg)
	}
	return nil
}

// SetDieFlag arranges for the next statement boundary to raise msg as
// a die, the cooperative cancellation contract of spec.md §5.
func (it *Interpreter) SetDieFlag(msg string) { it.dieFlag.Store(msg) }

// --- bytecode.Caller ---------------------------------------------------

// CallSub invokes a code value: native builtins run directly; compiled
// methods run through a fresh bytecode machine. The method's epilogue
// contract (spec.md §4.7) lives here: an unmarked result returns as
// is; a TailCall marker enters the trampoline; last/next/redo markers
// park in the control-flow registry for the owning loop; return
// markers terminate normally.
func (it *Interpreter) CallSub(code *value.Code, args *value.Array, ctx value.CallContext) (*value.Array, error) {
	if code.Run != nil {
		return code.Run(args, ctx)
	}
	it.depth++
	defer func() { it.depth-- }()
	if it.depth > MaxCallDepth {
		return nil, diag.Runtime(diag.StackOverflow, "Deep recursion: call depth exceeded %d", MaxCallDepth)
	}

	for {
		m := it.methods[code.Name]
		if m == nil {
			return nil, diag.Runtime(diag.UserDie, "Undefined subroutine &%s called", code.Name)
		}
		in := bytecode.NewInterp(m, it.Globals, it, args)
		in.Poll = it.poll
		for i, c := range m.Captures {
			if i < len(code.Closure) {
				in.Pad[c.Inner] = code.Closure[i]
			}
		}
		out, sig, err := in.Run()
		if err != nil {
			return nil, err
		}
		switch sig.Kind {
		case bytecode.SigNone, bytecode.SigReturn:
			return out, nil
		case bytecode.SigGoto:
			if !strings.HasPrefix(sig.Label, "&") {
				return nil, diag.Runtime(diag.LabelNotFound, "Can't find label %s", sig.Label)
			}
			// trampoline: re-enter in place with the same @_ instead
			// of growing the Go stack (spec.md §4.7 step 3).
			next, ok := it.lookupTail(sig.Label[1:], m.Package)
			if !ok {
				return nil, diag.Runtime(diag.UserDie, "Goto undefined subroutine &%s", sig.Label[1:])
			}
			code = next
			if sig.Value != nil {
				args = sig.Value
			}
		default:
			// last/next/redo escaping the sub: park it for the loop
			// that owns the label and unwind this frame with an empty
			// result (spec.md §4.7 step 4).
			it.pending = sig
			it.hasPending = true
			return value.NewArray(), nil
		}
	}
}

func (it *Interpreter) tailCall(sig bytecode.Signal) (*value.Array, error) {
	code, ok := it.lookupTail(sig.Label[1:], "main")
	if !ok {
		return nil, diag.Runtime(diag.UserDie, "Goto undefined subroutine &%s", sig.Label[1:])
	}
	args := sig.Value
	if args == nil {
		args = value.NewArray()
	}
	return it.CallSub(code, args, value.ContextList)
}

func (it *Interpreter) lookupTail(name, pkg string) (*value.Code, bool) {
	if !strings.Contains(name, "::") {
		name = pkg + "::" + name
	}
	c := it.Globals.Code(name)
	return c, c != nil
}

// ResolveMethod walks the package's @ISA depth first (spec.md
// [SUPPLEMENT]: classic Perl MRO) through the symbol table's stashes.
func (it *Interpreter) ResolveMethod(pkg, name string) (*value.Code, string, bool) {
	return it.Globals.ResolveMethod(pkg, name)
}

// LoadAnonCode materializes an anonymous sub at its `sub { ... }`
// site, snapshotting handles to the creating method's captured pad
// slots (true aliasing: the closure and the creator share the slots).
func (it *Interpreter) LoadAnonCode(name string, pad []*value.Scalar) (*value.Code, bool) {
	m := it.methods[name]
	if m == nil {
		return nil, false
	}
	code := &value.Code{Name: name}
	for _, c := range m.Captures {
		code.Closure = append(code.Closure, pad[c.Outer])
	}
	return code, true
}

// TakeSignal hands the parked control-flow marker to the polling
// method and clears the registry.
func (it *Interpreter) TakeSignal() (bytecode.Signal, bool) {
	if !it.hasPending {
		return bytecode.Signal{}, false
	}
	sig := it.pending
	it.pending = bytecode.Signal{}
	it.hasPending = false
	return sig, true
}

// stdin returns the buffered program input reader, created lazily so
// options can replace Stdin first.
func (it *Interpreter) stdin() *bufio.Reader {
	if it.stdinRd == nil {
		it.stdinRd = bufio.NewReader(it.Stdin)
	}
	return it.stdinRd
}
