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
	"testing"

	"github.com/perl-plc/plc/global"
	"github.com/perl-plc/plc/value"
)

type nullCaller struct{}

func (nullCaller) CallSub(code *value.Code, args *value.Array, ctx value.CallContext) (*value.Array, error) {
	return code.Run(args, ctx)
}

func (nullCaller) ResolveMethod(pkg, name string) (*value.Code, string, bool) { return nil, "", false }

func (nullCaller) LoadAnonCode(name string, pad []*value.Scalar) (*value.Code, bool) {
	return nil, false
}

func (nullCaller) TakeSignal() (Signal, bool) { return Signal{}, false }

func runMethod(t *testing.T, m *Method) (*value.Array, Signal) {
	t.Helper()
	g := global.New()
	interp := NewInterp(m, g, nullCaller{}, value.NewArray())
	out, sig, err := interp.Run()
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return out, sig
}

func TestArithmeticAndReturn(t *testing.T) {
	m := &Method{
		Name: "main",
		Instrs: []Instr{
			{Op: OpConstInt, A: 2},
			{Op: OpConstInt, A: 3},
			{Op: OpBinOp, Str: "+"},
			{Op: OpReturn, A: 1},
		},
	}
	out, sig := runMethod(t, m)
	if sig.Kind != SigReturn {
		t.Fatalf("expected SigReturn, got %v", sig.Kind)
	}
	if out.Len() != 1 || out.Get(0).AsInt() != 5 {
		t.Fatalf("expected [5], got len=%d v=%v", out.Len(), out.Get(0).AsInt())
	}
}

func TestLexicalPadRoundTrip(t *testing.T) {
	m := &Method{
		Name:     "main",
		NumSlots: 1,
		Instrs: []Instr{
			{Op: OpConstString, Str: "hello"},
			{Op: OpStoreLex, A: 0},
			{Op: OpLoadLex, A: 0},
			{Op: OpReturn, A: 1},
		},
	}
	out, _ := runMethod(t, m)
	if out.Get(0).AsString() != "hello" {
		t.Fatalf("expected hello, got %q", out.Get(0).AsString())
	}
}

func TestGlobalStoreAndLoad(t *testing.T) {
	m := &Method{
		Name: "main",
		Instrs: []Instr{
			{Op: OpConstInt, A: 42},
			{Op: OpStoreGlobal, Str: "main::x"},
			{Op: OpLoadGlobal, Str: "main::x"},
			{Op: OpReturn, A: 1},
		},
	}
	out, _ := runMethod(t, m)
	if out.Get(0).AsInt() != 42 {
		t.Fatalf("expected 42, got %d", out.Get(0).AsInt())
	}
}

func TestJumpIfFalseSkipsBranch(t *testing.T) {
	m := &Method{
		Name: "main",
		Instrs: []Instr{
			{Op: OpConstInt, A: 0},
			{Op: OpJumpIfFalse, A: 4},
			{Op: OpConstInt, A: 111},
			{Op: OpReturn, A: 1},
			{Op: OpConstInt, A: 222},
			{Op: OpReturn, A: 1},
		},
	}
	out, _ := runMethod(t, m)
	if out.Get(0).AsInt() != 222 {
		t.Fatalf("expected branch taken (222), got %d", out.Get(0).AsInt())
	}
}

func TestLastSignalPropagatesUnhandled(t *testing.T) {
	m := &Method{
		Name: "main",
		Instrs: []Instr{
			{Op: OpLast, Str: "OUTER"},
		},
	}
	_, sig := runMethod(t, m)
	if sig.Kind != SigLast || sig.Label != "OUTER" {
		t.Fatalf("expected SigLast(OUTER), got %+v", sig)
	}
}

func TestMakeArrayAndIndex(t *testing.T) {
	m := &Method{
		Name: "main",
		Instrs: []Instr{
			{Op: OpConstInt, A: 10},
			{Op: OpConstInt, A: 20},
			{Op: OpConstInt, A: 30},
			{Op: OpMakeArray, A: 3},
			{Op: OpConstInt, A: 1},
			{Op: OpIndex},
			{Op: OpReturn, A: 1},
		},
	}
	out, _ := runMethod(t, m)
	if out.Get(0).AsInt() != 20 {
		t.Fatalf("expected arr[1]==20, got %d", out.Get(0).AsInt())
	}
}

func TestEvalRegionCatchesErrorAndSetsDollarAt(t *testing.T) {
	m := &Method{
		Name: "main",
		Instrs: []Instr{
			{Op: OpEvalBegin, A: 6},
			{Op: OpConstInt, A: 1},
			{Op: OpConstInt, A: 0},
			{Op: OpBinOp, Str: "/"}, // division by zero: must be caught, not abort Run
			{Op: OpEvalEnd},
			{Op: OpJump, A: 7},
			{Op: OpPop},
			{Op: OpLoadGlobal, Str: "main::@"},
			{Op: OpReturn, A: 1},
		},
	}
	out, sig, err := func() (*value.Array, Signal, error) {
		g := global.New()
		interp := NewInterp(m, g, nullCaller{}, value.NewArray())
		return interp.Run()
	}()
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if sig.Kind != SigReturn {
		t.Fatalf("expected SigReturn, got %v", sig.Kind)
	}
	if out.Get(0).AsString() == "" {
		t.Fatal("expected $@ to be set after a caught error")
	}
}

func TestDisassembleProducesOneLinePerInstr(t *testing.T) {
	m := &Method{
		Name: "add",
		Instrs: []Instr{
			{Op: OpConstInt, A: 1},
			{Op: OpConstInt, A: 2},
			{Op: OpBinOp, Str: "+"},
			{Op: OpReturn, A: 1},
		},
	}
	out := Disassemble(m)
	if out == "" {
		t.Fatal("expected non-empty disassembly")
	}
}
