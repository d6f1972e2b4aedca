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

package interp

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/diag"
	"github.com/perl-plc/plc/emit"
	"github.com/perl-plc/plc/value"
)

// registerBuiltins installs the native subs every program sees in
// main::. Aggregate-mutating builtins are registered raw so they
// receive the container reference instead of its flattened elements;
// they flatten their remaining arguments themselves.
func (it *Interpreter) registerBuiltins() {
	flat := func(name string, fn func(args *value.Array, ctx value.CallContext) (*value.Array, error)) {
		it.Globals.SetCode("main::"+name, &value.Code{Name: "main::" + name, Run: fn})
	}
	raw := func(name string, fn func(args *value.Array, ctx value.CallContext) (*value.Array, error)) {
		it.Globals.SetCode("main::"+name, &value.Code{Name: "main::" + name, Run: fn, RawArgs: true})
	}

	flat("print", it.bPrint)
	flat("say", it.bSay)
	flat("printf", it.bPrintf)
	flat("sprintf", bSprintf)
	flat("join", bJoin)
	flat("die", it.bDie)
	flat("warn", it.bWarn)
	flat("length", bLength)
	flat("substr", bSubstr)
	flat("index", bIndex)
	flat("uc", bUc)
	flat("lc", bLc)
	flat("ucfirst", bUcfirst)
	flat("lcfirst", bLcfirst)
	flat("abs", bAbs)
	flat("int", bInt)
	flat("sqrt", bSqrt)
	flat("chr", bChr)
	flat("ord", bOrd)
	flat("split", bSplit)
	flat("reverse", bReverse)
	flat("map", it.bMap)
	flat("grep", it.bGrep)
	flat("sort", it.bSort)
	flat("wantarray", bWantarray)
	flat("ref", bRef)
	flat("bless", it.bBless)
	flat(emit.EvalStringSub, it.bEvalString)
	flat("__readline__", it.bReadline)
	flat("__slurp__", it.bSlurp)

	raw("shift", bShift)
	raw("pop", bPop)
	raw("push", bPush)
	raw("unshift", bUnshift)
	raw("keys", bKeys)
	raw("values", bValues)
	raw("exists", bExists)
	raw("delete", bDelete)
	raw("scalar", bScalar)
	raw("defined", bDefined)
	raw("chomp", it.bChomp)
}

func one(s *value.Scalar) *value.Array { return value.NewArrayFrom(s) }

func emptyList() *value.Array { return value.NewArray() }

func (it *Interpreter) bPrint(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return writeAll(it.Stdout, args, "")
}

func (it *Interpreter) bSay(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return writeAll(it.Stdout, args, "\n")
}

func writeAll(w io.Writer, args *value.Array, suffix string) (*value.Array, error) {
	var b strings.Builder
	for _, v := range args.Elems() {
		b.WriteString(v.AsString())
	}
	b.WriteString(suffix)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return nil, diag.Runtime(diag.UserDie, "print failed: %v", err)
	}
	return one(value.NewInt(1)), nil
}

func (it *Interpreter) bPrintf(args *value.Array, ctx value.CallContext) (*value.Array, error) {
	out, err := bSprintf(args, ctx)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(it.Stdout, out.Get(0).AsString()); err != nil {
		return nil, diag.Runtime(diag.UserDie, "printf failed: %v", err)
	}
	return one(value.NewInt(1)), nil
}

// bSprintf maps Perl's common format verbs onto Go's; %s/%d/%f/%g/%x
// cover the overwhelming share of real programs.
func bSprintf(args *value.Array, _ value.CallContext) (*value.Array, error) {
	if args.Len() == 0 {
		return one(value.NewString("")), nil
	}
	format := args.Get(0).AsString()
	rest := args.Elems()[1:]
	var goArgs []interface{}
	ai := 0
	take := func() *value.Scalar {
		if ai < len(rest) {
			s := rest[ai]
			ai++
			return s
		}
		return value.NewUndef()
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ 0#.0123456789", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			b.WriteByte('%')
			break
		}
		verb := format[j]
		spec := format[i : j+1]
		switch verb {
		case '%':
			b.WriteByte('%')
		case 'd', 'o', 'b', 'x', 'X', 'c':
			goArgs = append(goArgs, take().AsInt())
			b.WriteString(spec)
		case 'e', 'f', 'g', 'G':
			goArgs = append(goArgs, take().AsFloat())
			b.WriteString(spec)
		default:
			goArgs = append(goArgs, take().AsString())
			b.WriteString(spec[:len(spec)-1] + "s")
		}
		i = j
	}
	return one(value.NewString(fmt.Sprintf(b.String(), goArgs...))), nil
}

func bJoin(args *value.Array, _ value.CallContext) (*value.Array, error) {
	if args.Len() == 0 {
		return one(value.NewString("")), nil
	}
	sep := args.Get(0).AsString()
	parts := make([]string, 0, args.Len()-1)
	for _, v := range args.Elems()[1:] {
		parts = append(parts, v.AsString())
	}
	return one(value.NewString(strings.Join(parts, sep))), nil
}

func (it *Interpreter) bDie(args *value.Array, _ value.CallContext) (*value.Array, error) {
	if args.Len() == 1 && args.Get(0).IsRef() {
		// die $obj keeps the reference intact for eval's $@ (spec.md
		// §7 "a reference is preserved intact for die $obj").
		return nil, &bytecode.DieValue{Val: args.Get(0)}
	}
	var b strings.Builder
	for _, v := range args.Elems() {
		b.WriteString(v.AsString())
	}
	msg := b.String()
	if msg == "" {
		msg = "Died"
	}
	if !strings.HasSuffix(msg, "\n") {
		msg = fmt.Sprintf("%s at %s line 1.\n", msg, it.file)
	}
	return nil, diag.Runtime(diag.UserDie, "%s", msg)
}

func (it *Interpreter) bWarn(args *value.Array, _ value.CallContext) (*value.Array, error) {
	var b strings.Builder
	for _, v := range args.Elems() {
		b.WriteString(v.AsString())
	}
	msg := b.String()
	if msg == "" {
		msg = "Warning: something's wrong"
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(it.Stderr, msg)
	return one(value.NewInt(1)), nil
}

func bLength(args *value.Array, _ value.CallContext) (*value.Array, error) {
	if args.Len() == 0 || args.Get(0).IsUndef() {
		return one(value.NewUndef()), nil
	}
	return one(value.NewInt(int64(len(args.Get(0).AsString())))), nil
}

func bSubstr(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s := args.Get(0).AsString()
	off := int(args.Get(1).AsInt())
	if off < 0 {
		off += len(s)
	}
	if off < 0 || off > len(s) {
		return one(value.NewUndef()), nil
	}
	end := len(s)
	if args.Len() > 2 {
		n := int(args.Get(2).AsInt())
		if n < 0 {
			end = len(s) + n
		} else {
			end = off + n
		}
		if end > len(s) {
			end = len(s)
		}
		if end < off {
			end = off
		}
	}
	return one(value.NewString(s[off:end])), nil
}

func bIndex(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s, sub := args.Get(0).AsString(), args.Get(1).AsString()
	from := 0
	if args.Len() > 2 {
		from = int(args.Get(2).AsInt())
		if from < 0 {
			from = 0
		}
		if from > len(s) {
			return one(value.NewInt(-1)), nil
		}
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return one(value.NewInt(-1)), nil
	}
	return one(value.NewInt(int64(i + from))), nil
}

func bUc(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(value.NewString(strings.ToUpper(arg0(args).AsString()))), nil
}

func bLc(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(value.NewString(strings.ToLower(arg0(args).AsString()))), nil
}

func bUcfirst(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s := arg0(args).AsString()
	if s == "" {
		return one(value.NewString("")), nil
	}
	return one(value.NewString(strings.ToUpper(s[:1]) + s[1:])), nil
}

func bLcfirst(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s := arg0(args).AsString()
	if s == "" {
		return one(value.NewString("")), nil
	}
	return one(value.NewString(strings.ToLower(s[:1]) + s[1:])), nil
}

func arg0(args *value.Array) *value.Scalar {
	if args.Len() == 0 {
		return value.NewUndef()
	}
	return args.Get(0)
}

func bAbs(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(value.NewFloat(math.Abs(arg0(args).AsFloat()))), nil
}

func bInt(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(value.NewInt(int64(arg0(args).AsFloat()))), nil
}

func bSqrt(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(value.NewFloat(math.Sqrt(arg0(args).AsFloat()))), nil
}

func bChr(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(value.NewString(string(rune(arg0(args).AsInt())))), nil
}

func bOrd(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s := arg0(args).AsString()
	if s == "" {
		return one(value.NewInt(0)), nil
	}
	return one(value.NewInt(int64(s[0]))), nil
}

// bSplit implements split PATTERN, EXPR with the awk special case: a
// single-space pattern splits on whitespace runs and drops leading
// empties.
func bSplit(args *value.Array, _ value.CallContext) (*value.Array, error) {
	pat := arg0(args).AsString()
	var target string
	if args.Len() > 1 {
		target = args.Get(1).AsString()
	}
	var parts []string
	if pat == " " {
		parts = strings.Fields(target)
	} else {
		parts = strings.Split(target, pat)
	}
	out := value.NewArray()
	for _, p := range parts {
		out.Push(value.NewString(p))
	}
	return out, nil
}

func bReverse(args *value.Array, ctx value.CallContext) (*value.Array, error) {
	if ctx == value.ContextScalar && args.Len() == 1 {
		s := args.Get(0).AsString()
		b := []byte(s)
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		return one(value.NewString(string(b))), nil
	}
	out := value.NewArray()
	for i := args.Len() - 1; i >= 0; i-- {
		out.Push(args.Get(i).Copy())
	}
	return out, nil
}

// bMap runs the callback once per element with $_ dynamically scoped
// to the element, flattening the per-call results (Perl's map).
func (it *Interpreter) bMap(args *value.Array, _ value.CallContext) (*value.Array, error) {
	cb, rest, err := callbackAndList(args)
	if err != nil {
		return nil, err
	}
	out := value.NewArray()
	underscore := it.Globals.Scalar("main::_")
	it.Globals.Locals.PushScalar(underscore)
	defer it.Globals.Locals.PopOne()
	for _, elem := range rest {
		*underscore = *elem.Copy()
		res, cerr := it.CallSub(cb, one(elem), value.ContextList)
		if cerr != nil {
			return nil, cerr
		}
		for _, r := range res.Elems() {
			out.Push(r.Copy())
		}
	}
	return out, nil
}

func (it *Interpreter) bGrep(args *value.Array, _ value.CallContext) (*value.Array, error) {
	cb, rest, err := callbackAndList(args)
	if err != nil {
		return nil, err
	}
	out := value.NewArray()
	underscore := it.Globals.Scalar("main::_")
	it.Globals.Locals.PushScalar(underscore)
	defer it.Globals.Locals.PopOne()
	for _, elem := range rest {
		*underscore = *elem.Copy()
		res, cerr := it.CallSub(cb, one(elem), value.ContextScalar)
		if cerr != nil {
			return nil, cerr
		}
		if res.Len() > 0 && res.Get(res.Len()-1).AsBool() {
			out.Push(elem.Copy())
		}
	}
	return out, nil
}

// bSort sorts its list by string comparison, or by the callback with
// $a/$b dynamically bound (Perl's sort BLOCK LIST).
func (it *Interpreter) bSort(args *value.Array, _ value.CallContext) (*value.Array, error) {
	elems := args.Elems()
	var cb *value.Code
	if len(elems) > 0 && elems[0].IsCode() {
		if c, err := value.DerefCode(elems[0]); err == nil {
			cb = c
			elems = elems[1:]
		}
	}
	sorted := make([]*value.Scalar, len(elems))
	for i, e := range elems {
		sorted[i] = e.Copy()
	}
	var sortErr error
	if cb == nil {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].AsString() < sorted[j].AsString()
		})
	} else {
		aSlot := it.Globals.Scalar("main::a")
		bSlot := it.Globals.Scalar("main::b")
		it.Globals.Locals.PushScalar(aSlot)
		it.Globals.Locals.PushScalar(bSlot)
		defer func() {
			it.Globals.Locals.PopOne()
			it.Globals.Locals.PopOne()
		}()
		sort.SliceStable(sorted, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			*aSlot = *sorted[i]
			*bSlot = *sorted[j]
			res, err := it.CallSub(cb, emptyList(), value.ContextScalar)
			if err != nil {
				sortErr = err
				return false
			}
			return res.Len() > 0 && res.Get(res.Len()-1).AsInt() < 0
		})
	}
	if sortErr != nil {
		return nil, sortErr
	}
	return value.NewArrayFrom(sorted...), nil
}

func callbackAndList(args *value.Array) (*value.Code, []*value.Scalar, error) {
	if args.Len() == 0 || !args.Get(0).IsCode() {
		return nil, nil, diag.Runtime(diag.UserDie, "Not a CODE reference")
	}
	cb, err := value.DerefCode(args.Get(0))
	if err != nil {
		return nil, nil, err
	}
	return cb, args.Elems()[1:], nil
}

func bWantarray(_ *value.Array, ctx value.CallContext) (*value.Array, error) {
	switch ctx {
	case value.ContextList:
		return one(value.NewInt(1)), nil
	case value.ContextScalar:
		return one(value.NewInt(0)), nil
	default:
		return one(value.NewUndef()), nil
	}
}

func bRef(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s := arg0(args)
	if !s.IsRef() && !s.IsCode() {
		return one(value.NewString("")), nil
	}
	if pkg := s.Package(); pkg != "" {
		return one(value.NewString(pkg)), nil
	}
	_, kind, err := s.Deref()
	if err != nil {
		return one(value.NewString("CODE")), nil
	}
	names := map[value.RefKind]string{
		value.RefScalar: "SCALAR", value.RefArray: "ARRAY",
		value.RefHash: "HASH", value.RefCode: "CODE", value.RefGlob: "GLOB",
	}
	return one(value.NewString(names[kind])), nil
}

func (it *Interpreter) bBless(args *value.Array, _ value.CallContext) (*value.Array, error) {
	ref := arg0(args)
	pkg := "main"
	if args.Len() > 1 {
		pkg = args.Get(1).AsString()
	}
	if err := ref.Bless(pkg); err != nil {
		return nil, diag.Runtime(diag.UserDie, "%s", err.Error())
	}
	return one(ref), nil
}

// bEvalString is the `eval STRING` entry point: it re-enters the
// compiler on its argument, installs any subs the string declared,
// and runs the fresh unit's body. The emitter wraps the call site in
// an eval region, so a die inside lands in $@ exactly like
// eval BLOCK.
func (it *Interpreter) bEvalString(args *value.Array, _ value.CallContext) (*value.Array, error) {
	src := arg0(args).AsString()
	u, err := it.Compile(src, "(eval)")
	if err != nil {
		return nil, diag.Runtime(diag.UserDie, "%s", err.Error())
	}
	it.register(u)
	in := bytecode.NewInterp(u.Main, it.Globals, it, value.NewArray())
	in.Poll = it.poll
	out, sig, err := in.Run()
	if err != nil {
		return nil, err
	}
	if err := it.checkTopLevelSignal(sig); err != nil {
		return nil, err
	}
	return out, nil
}

// --- raw (aggregate) builtins ------------------------------------------

func bShift(args *value.Array, _ value.CallContext) (*value.Array, error) {
	arr, err := derefArrayArg(args, "shift")
	if err != nil {
		return nil, err
	}
	return one(arr.Shift()), nil
}

func bPop(args *value.Array, _ value.CallContext) (*value.Array, error) {
	arr, err := derefArrayArg(args, "pop")
	if err != nil {
		return nil, err
	}
	return one(arr.Pop()), nil
}

func bPush(args *value.Array, _ value.CallContext) (*value.Array, error) {
	arr, err := derefArrayArg(args, "push")
	if err != nil {
		return nil, err
	}
	for _, v := range value.FlattenList(args.Elems()[1:]) {
		arr.Push(v.Copy())
	}
	return one(value.NewInt(int64(arr.Len()))), nil
}

func bUnshift(args *value.Array, _ value.CallContext) (*value.Array, error) {
	arr, err := derefArrayArg(args, "unshift")
	if err != nil {
		return nil, err
	}
	vals := value.FlattenList(args.Elems()[1:])
	copies := make([]*value.Scalar, len(vals))
	for i, v := range vals {
		copies[i] = v.Copy()
	}
	arr.Unshift(copies...)
	return one(value.NewInt(int64(arr.Len()))), nil
}

func derefArrayArg(args *value.Array, who string) (*value.Array, error) {
	if args.Len() == 0 {
		return nil, diag.Runtime(diag.NotAReference, "%s on an empty argument list", who)
	}
	arr, err := value.DerefArray(args.Get(0))
	if err != nil {
		return nil, diag.Runtime(diag.NotAReference, "%s requires an array", who)
	}
	return arr, nil
}

func bKeys(args *value.Array, _ value.CallContext) (*value.Array, error) {
	h, err := value.DerefHash(arg0(args))
	if err != nil {
		return nil, diag.Runtime(diag.NotAReference, "keys requires a hash")
	}
	out := value.NewArray()
	for _, k := range h.Keys() {
		out.Push(value.NewString(k))
	}
	return out, nil
}

func bValues(args *value.Array, _ value.CallContext) (*value.Array, error) {
	h, err := value.DerefHash(arg0(args))
	if err != nil {
		return nil, diag.Runtime(diag.NotAReference, "values requires a hash")
	}
	out := value.NewArray()
	for _, k := range h.Keys() {
		out.Push(h.Get(k))
	}
	return out, nil
}

func bExists(args *value.Array, _ value.CallContext) (*value.Array, error) {
	if args.Len() < 2 {
		return one(value.NewString("")), nil
	}
	if h, err := value.DerefHash(args.Get(0)); err == nil {
		return one(boolScalar(h.Exists(args.Get(1).AsString()))), nil
	}
	if a, err := value.DerefArray(args.Get(0)); err == nil {
		i := int(args.Get(1).AsInt())
		return one(boolScalar(i >= 0 && i < a.Len() || i < 0 && -i <= a.Len())), nil
	}
	return one(value.NewString("")), nil
}

func bDelete(args *value.Array, _ value.CallContext) (*value.Array, error) {
	if args.Len() < 2 {
		return one(value.NewUndef()), nil
	}
	h, err := value.DerefHash(args.Get(0))
	if err != nil {
		return nil, diag.Runtime(diag.NotAReference, "delete requires a hash element")
	}
	return one(h.Delete(args.Get(1).AsString())), nil
}

// bScalar forces scalar context: a list or aggregate argument yields
// its element count, anything else itself.
func bScalar(args *value.Array, _ value.CallContext) (*value.Array, error) {
	s := arg0(args)
	if s.IsList() {
		elems := value.ListElems(s)
		return one(value.NewInt(int64(len(elems)))), nil
	}
	return one(s.Copy()), nil
}

func bDefined(args *value.Array, _ value.CallContext) (*value.Array, error) {
	return one(boolScalar(!arg0(args).IsUndef())), nil
}

// bChomp strips one trailing newline in place, returning how many
// characters it removed.
func (it *Interpreter) bChomp(args *value.Array, _ value.CallContext) (*value.Array, error) {
	target := arg0(args)
	if args.Len() == 0 {
		target = it.Globals.Scalar("main::_")
	}
	s := target.AsString()
	if strings.HasSuffix(s, "\n") {
		target.SetString(s[:len(s)-1])
		return one(value.NewInt(1)), nil
	}
	return one(value.NewInt(0)), nil
}

// bReadline reads one input record (the -n/-p wrapper's `<>`),
// returning undef at end of input.
func (it *Interpreter) bReadline(_ *value.Array, _ value.CallContext) (*value.Array, error) {
	line, err := it.stdin().ReadString('\n')
	if line == "" && err != nil {
		return one(value.NewUndef()), nil
	}
	return one(value.NewString(line)), nil
}

// bSlurp reads the whole remaining input as one record (-g / -0777).
func (it *Interpreter) bSlurp(_ *value.Array, _ value.CallContext) (*value.Array, error) {
	data, err := io.ReadAll(it.stdin())
	if err != nil && len(data) == 0 {
		return one(value.NewUndef()), nil
	}
	return one(value.NewString(string(data))), nil
}

func boolScalar(b bool) *value.Scalar {
	if b {
		return value.NewInt(1)
	}
	return value.NewString("")
}
