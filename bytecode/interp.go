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
	"strings"

	"github.com/perl-plc/plc/global"
	"github.com/perl-plc/plc/value"
	"github.com/pkg/errors"
)

// SignalKind names the non-local exits a method body can produce
// (spec.md §4.7's "marked return" carrier).
type SignalKind int

const (
	SigNone SignalKind = iota
	SigReturn
	SigLast
	SigNext
	SigRedo
	SigGoto
)

// Signal is the value threaded back up through every join point until
// something consumes it: the owning loop for Last/Next/Redo, the
// label resolver for Goto, or the method epilogue for Return.
type Signal struct {
	Kind  SignalKind
	Label string
	Value *value.Array
}

// Caller lets a running Method invoke another one without the
// bytecode package needing to know how methods are compiled or
// cached; the interpreter (spec.md's C7) supplies the concrete
// implementation that owns the method registry.
type Caller interface {
	CallSub(code *value.Code, args *value.Array, ctx value.CallContext) (*value.Array, error)
	ResolveMethod(pkg, name string) (*value.Code, string, bool)
	// LoadAnonCode materializes a compiled anonymous sub, binding its
	// captured slots against the creating method's live pad.
	LoadAnonCode(name string, pad []*value.Scalar) (*value.Code, bool)
	// TakeSignal surrenders a control-flow marker (`next` inside a
	// closure, `last` crossing a call boundary) that a callee parked
	// in the control-flow registry; the running method polls it after
	// every call so the marker reaches the loop that owns the label
	// (spec.md §4.7's per-statement registry consultation).
	TakeSignal() (Signal, bool)
}

// loopState is one live loop's runtime frame: where redo/next/last
// resolve to, which label the loop answers for, and the dynamic-stack
// mark to unwind to when a marker lands here from a nested callee.
type loopState struct {
	label      string
	redoAddr   int
	nextAddr   int
	lastAddr   int
	localsMark int
	stackDepth int
}

// evalHandler is the state an OpEvalBegin pushes so a mid-stream error
// can be turned into a normal `$@`-carrying continuation instead of
// aborting Run, the way vm/run.go's OpWait distinguishes a breakError
// (handled in place) from a real one (propagated).
type evalHandler struct {
	resumeAddr int
	stackDepth int
}

// Interp runs one Method's instruction stream to completion or to the
// first unhandled Signal, mirroring the teacher's Instance.Run
// dispatch loop (vm/run.go) with a switch over typed instructions
// instead of packed integer opcodes, and a *value.Scalar operand
// stack in place of the Forth VM's Cell stack.
type Interp struct {
	Method  *Method
	Globals *global.Table
	Pad     []*value.Scalar
	Caller  Caller
	Args    *value.Array // @_

	// Poll, when set, runs at every OpLine boundary: the cooperative
	// signal-check of spec.md §5 (die-flag raising, user signal
	// handlers). A returned error aborts the statement like a die.
	Poll func() error

	stack     []*value.Scalar
	ip        int
	evalStack []evalHandler
	loops     []loopState
}

func NewInterp(m *Method, g *global.Table, caller Caller, args *value.Array) *Interp {
	m.ensureInstrs()
	pad := make([]*value.Scalar, m.NumSlots)
	for i := range pad {
		pad[i] = value.NewUndef()
	}
	// state slots keep their scalar across activations; first entry
	// adopts the fresh undef, later entries alias the survivor.
	if len(m.StateSlots) > 0 {
		if m.stateVals == nil {
			m.stateVals = make(map[int]*value.Scalar)
		}
		for _, slot := range m.StateSlots {
			if sv, ok := m.stateVals[slot]; ok {
				pad[slot] = sv
			} else if slot < len(pad) {
				m.stateVals[slot] = pad[slot]
			}
		}
	}
	return &Interp{Method: m, Globals: g, Pad: pad, Caller: caller, Args: args}
}

func (ip *Interp) push(s *value.Scalar) { ip.stack = append(ip.stack, s) }

func (ip *Interp) pop() *value.Scalar {
	n := len(ip.stack) - 1
	s := ip.stack[n]
	ip.stack = ip.stack[:n]
	return s
}

// DieValue carries a non-string `die $obj` payload through the error
// channel so eval can bind $@ to the reference itself rather than its
// string form (spec.md §7).
type DieValue struct {
	Val *value.Scalar
}

func (d *DieValue) Error() string { return d.Val.AsString() }

// fail reports a runtime error at the current instruction. If it is
// inside an eval region, the error is caught: $@ is set, any values
// pushed since the region opened are discarded, and execution resumes
// at the handler's address instead of unwinding Run. Otherwise it
// reports that the caller must abort Run with err.
func (ip *Interp) fail(err error) bool {
	n := len(ip.evalStack)
	if n == 0 {
		return false
	}
	h := ip.evalStack[n-1]
	ip.evalStack = ip.evalStack[:n-1]
	if len(ip.stack) > h.stackDepth {
		ip.stack = ip.stack[:h.stackDepth]
	}
	var dv *DieValue
	if errors.As(err, &dv) {
		*ip.Globals.Scalar("main::@") = *dv.Val.Copy()
	} else {
		ip.Globals.Scalar("main::@").SetString(err.Error())
	}
	ip.push(value.NewUndef())
	ip.ip = h.resumeAddr
	return true
}

func (ip *Interp) popN(n int) []*value.Scalar {
	start := len(ip.stack) - n
	out := append([]*value.Scalar{}, ip.stack[start:]...)
	ip.stack = ip.stack[:start]
	return out
}

// popArgs collects a call's argument list. Unless the callee asked for
// raw aggregates (push, shift and friends, which mutate through the
// reference), every marked list is flattened into individual scalars,
// giving the callee Perl's flat @_ view.
func (ip *Interp) popArgs(n int, raw bool) *value.Array {
	vals := ip.popN(n)
	if !raw {
		vals = value.FlattenList(vals)
	}
	return value.NewArrayFrom(vals...)
}

// pushResult pushes a callee's returned list back onto the operand
// stack: a single value travels as itself, anything else as a marked
// list so an enclosing list context flattens it and an enclosing
// scalar context sees its last element.
func (ip *Interp) pushResult(out *value.Array) {
	if out == nil {
		ip.push(value.NewUndef())
		return
	}
	if out.Len() == 1 {
		ip.push(out.Get(0).Copy())
		return
	}
	ip.push(value.NewRef(value.RefArray, out).MarkList())
}

// dispatchMarker resolves a Last/Next/Redo marker against the live
// loop frames: the innermost frame for an unlabeled marker, the
// nearest frame carrying the label otherwise. On a hit the dynamic
// (`local`) stack is unwound to the frame's mark, the operand stack is
// cut back to the loop's entry depth, and execution jumps to the
// frame's redo/next/last address. A miss means the marker belongs to
// some outer method and must propagate (spec.md §4.7).
func (ip *Interp) dispatchMarker(sig Signal) bool {
	for i := len(ip.loops) - 1; i >= 0; i-- {
		f := ip.loops[i]
		if sig.Label != "" && f.label != sig.Label {
			continue
		}
		ip.Globals.Locals.PopTo(f.localsMark)
		if len(ip.stack) > f.stackDepth {
			ip.stack = ip.stack[:f.stackDepth]
		}
		switch sig.Kind {
		case SigLast:
			ip.loops = ip.loops[:i]
			ip.ip = f.lastAddr
		case SigNext:
			ip.loops = ip.loops[:i+1]
			ip.ip = f.nextAddr
		case SigRedo:
			ip.loops = ip.loops[:i+1]
			ip.ip = f.redoAddr
		}
		return true
	}
	return false
}

// Run executes from the current ip until OpReturn, an unrecovered
// Signal, EOF-of-stream, or an error. It recovers from internal
// panics into errors exactly as vm/run.go's Run does, since an
// out-of-range pad slot or stack underflow here indicates an emitter
// bug rather than a user-visible Perl error.
func (ip *Interp) Run() (result *value.Array, sig Signal, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("internal interpreter error at ip=%d: %v", ip.ip, e)
		}
	}()

	instrs := ip.Method.Instrs
	for ip.ip < len(instrs) {
		in := instrs[ip.ip]
		switch in.Op {
		case OpNop:
			ip.ip++
		case OpLine:
			if ip.Poll != nil {
				if perr := ip.Poll(); perr != nil {
					if ip.fail(perr) {
						continue
					}
					err = perr
					return nil, Signal{}, err
				}
			}
			ip.ip++
		case OpConstInt:
			ip.push(value.NewInt(in.A))
			ip.ip++
		case OpConstFloat:
			ip.push(value.NewFloat(in.F))
			ip.ip++
		case OpConstString:
			ip.push(value.NewString(in.Str))
			ip.ip++
		case OpConstUndef:
			ip.push(value.NewUndef())
			ip.ip++
		case OpPop:
			ip.pop()
			ip.ip++
		case OpDup:
			top := ip.stack[len(ip.stack)-1]
			ip.push(top.Copy())
			ip.ip++

		case OpLoadLex:
			ip.push(ip.Pad[in.A])
			ip.ip++
		case OpStoreLex:
			v := ip.pop()
			*ip.Pad[in.A] = *v.Copy()
			ip.ip++

		case OpLoadGlobal:
			ip.push(ip.Globals.Scalar(in.Str))
			ip.ip++
		case OpStoreGlobal:
			v := ip.pop()
			dst := ip.Globals.Scalar(in.Str)
			*dst = *v.Copy()
			ip.ip++
		case OpLoadGlobalArray:
			arr := ip.Globals.Array(in.Str)
			ip.push(arrayRefScalar(arr).MarkList())
			ip.ip++
		case OpLoadGlobalHash:
			h := ip.Globals.Hash(in.Str)
			ip.push(hashRefScalar(h).MarkList())
			ip.ip++

		case OpLoadArg:
			ip.push(ip.Args.Get(int(in.A)).Copy())
			ip.ip++
		case OpLoadArgsArray:
			ip.push(arrayRefScalar(ip.Args).MarkList())
			ip.ip++

		case OpLocalPush:
			// operand identifies which global slot to save; the emitter
			// pairs every OpLocalPush with exactly one OpLocalPop on
			// every exit path out of the enclosing scope (spec.md §4.5).
			ip.Globals.Locals.PushScalar(ip.Globals.Scalar(in.Str))
			ip.ip++
		case OpLocalPop:
			ip.Globals.Locals.PopOne()
			ip.ip++

		case OpMakeArray:
			vals := value.FlattenList(ip.popN(int(in.A)))
			arr := value.NewArrayFrom(vals...)
			ip.push(arrayRefScalar(arr))
			ip.ip++
		case OpMakeList:
			vals := value.FlattenList(ip.popN(int(in.A)))
			arr := value.NewArrayFrom(vals...)
			ip.push(arrayRefScalar(arr).MarkList())
			ip.ip++
		case OpToArray:
			vals := value.ListElems(ip.pop())
			arr := value.NewArray()
			for _, v := range vals {
				arr.Push(v.Copy())
			}
			ip.push(arrayRefScalar(arr).MarkList())
			ip.ip++
		case OpToHash:
			vals := value.ListElems(ip.pop())
			h := value.NewHash()
			for i := 0; i+1 < len(vals); i += 2 {
				h.Set(vals[i].AsString(), vals[i+1].Copy())
			}
			ip.push(hashRefScalar(h).MarkList())
			ip.ip++
		case OpMakeHash:
			vals := value.FlattenList(ip.popN(int(in.A)))
			h := value.NewHash()
			for i := 0; i+1 < len(vals); i += 2 {
				h.Set(vals[i].AsString(), vals[i+1])
			}
			ip.push(hashRefScalar(h))
			ip.ip++
		case OpIndex:
			idx := ip.pop()
			recv := ip.pop()
			arr, derr := value.AutovivArray(recv)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			ip.push(arr.Slot(int(idx.AsInt())))
			ip.ip++
		case OpKeyIndex:
			key := ip.pop()
			recv := ip.pop()
			h, derr := value.AutovivHash(recv)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			ip.push(h.Slot(key.AsString()))
			ip.ip++
		case OpSlice:
			idxs := value.ListElems(ip.pop())
			recv := ip.pop()
			out := value.NewArray()
			switch in.Str {
			case "array":
				arr, derr := value.AutovivArray(recv)
				if derr != nil {
					if ip.fail(derr) {
						continue
					}
					err = derr
					return nil, Signal{}, err
				}
				for _, i := range idxs {
					out.Push(arr.Slot(int(i.AsInt())))
				}
			case "hash":
				h, derr := value.AutovivHash(recv)
				if derr != nil {
					if ip.fail(derr) {
						continue
					}
					err = derr
					return nil, Signal{}, err
				}
				for _, k := range idxs {
					out.Push(h.Slot(k.AsString()))
				}
			case "kv":
				h, derr := value.AutovivHash(recv)
				if derr != nil {
					if ip.fail(derr) {
						continue
					}
					err = derr
					return nil, Signal{}, err
				}
				for _, k := range idxs {
					out.Push(value.NewString(k.AsString()))
					out.Push(h.Slot(k.AsString()))
				}
			}
			ip.push(arrayRefScalar(out).MarkList())
			ip.ip++
		case OpArrayLen:
			recv := ip.pop()
			arr, derr := value.DerefArray(recv)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			ip.push(value.NewInt(int64(arr.Len())))
			ip.ip++
		case OpIndexStore:
			v := ip.pop()
			idx := ip.pop()
			recv := ip.pop()
			arr, derr := value.AutovivArray(recv)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			arr.Set(int(idx.AsInt()), v)
			ip.push(v)
			ip.ip++
		case OpKeyIndexStore:
			v := ip.pop()
			key := ip.pop()
			recv := ip.pop()
			h, derr := value.AutovivHash(recv)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			h.Set(key.AsString(), v)
			ip.push(v)
			ip.ip++
		case OpMakeScalarRef:
			target := ip.pop()
			ip.push(value.NewRef(value.RefScalar, target))
			ip.ip++
		case OpStoreGlobalArray:
			v := ip.pop()
			arr, derr := value.DerefArray(v)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			ip.Globals.SetArray(in.Str, arr)
			ip.ip++
		case OpStoreGlobalHash:
			v := ip.pop()
			h, derr := value.DerefHash(v)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			ip.Globals.SetHash(in.Str, h)
			ip.ip++

		case OpDeref:
			recv := ip.pop()
			target, _, derr := recv.Deref()
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			if sc, ok := target.(*value.Scalar); ok {
				ip.push(sc)
			} else {
				ip.push(value.NewUndef())
			}
			ip.ip++

		case OpBinOp:
			b := ip.pop()
			a := ip.pop()
			res, berr := evalBinOp(in.Str, a, b)
			if berr != nil {
				if ip.fail(berr) {
					continue
				}
				err = berr
				return nil, Signal{}, err
			}
			ip.push(res)
			ip.ip++
		case OpUnOp:
			a := ip.pop()
			ip.push(evalUnOp(in.Str, a))
			ip.ip++
		case OpRange:
			hi := ip.pop()
			lo := ip.pop()
			var elems []*value.Scalar
			for i := lo.AsInt(); i <= hi.AsInt(); i++ {
				elems = append(elems, value.NewInt(i))
			}
			ip.push(arrayRefScalar(value.NewArrayFrom(elems...)).MarkList())
			ip.ip++
		case OpStoreDeref:
			v := ip.pop()
			ref := ip.pop()
			target, _, derr := ref.Deref()
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			if sc, ok := target.(*value.Scalar); ok {
				*sc = *v.Copy()
			}
			ip.push(v)
			ip.ip++

		case OpJump:
			ip.ip = int(in.A)
		case OpJumpIfFalse:
			v := ip.pop()
			if !v.AsBool() {
				ip.ip = int(in.A)
			} else {
				ip.ip++
			}
		case OpJumpIfTrue:
			v := ip.pop()
			if v.AsBool() {
				ip.ip = int(in.A)
			} else {
				ip.ip++
			}

		case OpCall:
			code, ok := ip.lookupSub(in.Str)
			if !ok {
				ip.popArgs(int(in.A), false)
				uerr := errors.Errorf("Undefined subroutine &%s called", in.Str)
				if ip.fail(uerr) {
					continue
				}
				err = uerr
				return nil, Signal{}, err
			}
			argsArr := ip.popArgs(int(in.A), code.RawArgs)
			out, cerr := ip.Caller.CallSub(code, argsArr, value.ContextList)
			if cerr != nil {
				if ip.fail(cerr) {
					continue
				}
				err = cerr
				return nil, Signal{}, err
			}
			if psig, pending := ip.Caller.TakeSignal(); pending {
				if ip.dispatchMarker(psig) {
					continue
				}
				return nil, psig, nil
			}
			ip.pushResult(out)
			ip.ip++
		case OpCallDyn:
			argsArr := ip.popArgs(int(in.A), false)
			codeScalar := ip.pop()
			code, derr := value.DerefCode(codeScalar)
			if derr != nil {
				if ip.fail(derr) {
					continue
				}
				err = derr
				return nil, Signal{}, err
			}
			out, cerr := ip.Caller.CallSub(code, argsArr, value.ContextList)
			if cerr != nil {
				if ip.fail(cerr) {
					continue
				}
				err = cerr
				return nil, Signal{}, err
			}
			if psig, pending := ip.Caller.TakeSignal(); pending {
				if ip.dispatchMarker(psig) {
					continue
				}
				return nil, psig, nil
			}
			ip.pushResult(out)
			ip.ip++
		case OpMethodCall:
			argsArr := ip.popArgs(int(in.A), false)
			recv := argsArr.Get(0)
			pkg := recv.Package()
			if pkg == "" {
				pkg = recv.AsString()
			}
			code, _, ok := ip.Caller.ResolveMethod(pkg, in.Str)
			if !ok {
				merr := errors.Errorf("Can't locate object method %q via package %q", in.Str, pkg)
				if ip.fail(merr) {
					continue
				}
				err = merr
				return nil, Signal{}, err
			}
			out, cerr := ip.Caller.CallSub(code, argsArr, value.ContextList)
			if cerr != nil {
				if ip.fail(cerr) {
					continue
				}
				err = cerr
				return nil, Signal{}, err
			}
			if psig, pending := ip.Caller.TakeSignal(); pending {
				if ip.dispatchMarker(psig) {
					continue
				}
				return nil, psig, nil
			}
			ip.pushResult(out)
			ip.ip++
		case OpLoadAnonCode:
			code, ok := ip.Caller.LoadAnonCode(in.Str, ip.Pad)
			if !ok {
				lerr := errors.Errorf("internal: anonymous code %q not registered", in.Str)
				if ip.fail(lerr) {
					continue
				}
				err = lerr
				return nil, Signal{}, err
			}
			ip.push(value.NewCode(code))
			ip.ip++

		case OpRegexMatch:
			target := ip.pop()
			matched := evalRegexMatch(ip.Globals, in.Str, target)
			ip.push(value.NewInt(boolToInt(matched)))
			ip.ip++
		case OpRegexCapture:
			m := ip.Globals.Regex.Current()
			switch {
			case m == nil:
				ip.push(value.NewUndef())
			case in.Str == "&":
				ip.push(value.NewString(m.Whole))
			case in.Str == "`":
				ip.push(value.NewString(m.PreMatch))
			case in.Str == "'":
				ip.push(value.NewString(m.PostMatch))
			default:
				ip.push(value.NewString(ip.Globals.Regex.Capture(int(in.A))))
			}
			ip.ip++

		case OpReturn:
			var out *value.Array
			if in.A > 0 {
				out = value.NewArrayFrom(value.FlattenList(ip.popN(int(in.A)))...)
			} else {
				out = value.NewArray()
			}
			return out, Signal{Kind: SigReturn, Value: out}, nil
		case OpLast:
			if ip.dispatchMarker(Signal{Kind: SigLast, Label: in.Str}) {
				continue
			}
			return nil, Signal{Kind: SigLast, Label: in.Str}, nil
		case OpNext:
			if ip.dispatchMarker(Signal{Kind: SigNext, Label: in.Str}) {
				continue
			}
			return nil, Signal{Kind: SigNext, Label: in.Str}, nil
		case OpRedo:
			if ip.dispatchMarker(Signal{Kind: SigRedo, Label: in.Str}) {
				continue
			}
			return nil, Signal{Kind: SigRedo, Label: in.Str}, nil
		case OpGoto:
			// a tail-call goto reuses the current @_ (spec.md §4.7).
			return nil, Signal{Kind: SigGoto, Label: in.Str, Value: ip.Args}, nil

		case OpLoopBegin:
			ip.loops = append(ip.loops, loopState{
				label:      in.Str,
				redoAddr:   int(in.A),
				nextAddr:   int(in.B),
				lastAddr:   int(in.C),
				localsMark: ip.Globals.Locals.Mark(),
				stackDepth: len(ip.stack),
			})
			ip.ip++
		case OpLoopEnd:
			if n := len(ip.loops); n > 0 {
				ip.loops = ip.loops[:n-1]
			}
			ip.ip++

		case OpRegexSnapPush:
			ip.Globals.Regex.PushSnapshot()
			ip.ip++
		case OpRegexSnapPop:
			ip.Globals.Regex.RestoreTop()
			ip.ip++

		case OpEvalBegin:
			ip.Globals.Scalar("main::@").SetString("")
			ip.evalStack = append(ip.evalStack, evalHandler{resumeAddr: int(in.A), stackDepth: len(ip.stack)})
			ip.ip++
		case OpEvalEnd:
			if n := len(ip.evalStack); n > 0 {
				ip.evalStack = ip.evalStack[:n-1]
			}
			ip.ip++

		default:
			err = errors.Errorf("unknown opcode %d", in.Op)
			return nil, Signal{}, err
		}
	}
	return value.NewArray(), Signal{}, nil
}

// lookupSub resolves a qualified sub name, falling back to main:: for
// the builtins every package sees unqualified.
func (ip *Interp) lookupSub(name string) (*value.Code, bool) {
	if c := ip.Globals.Code(name); c != nil {
		return c, true
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		if c := ip.Globals.Code("main::" + name[i+2:]); c != nil {
			return c, true
		}
	}
	return nil, false
}

func arrayRefScalar(a *value.Array) *value.Scalar {
	return value.NewRef(value.RefArray, a)
}

func hashRefScalar(h *value.Hash) *value.Scalar {
	return value.NewRef(value.RefHash, h)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
