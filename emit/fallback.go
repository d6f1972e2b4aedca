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

package emit

import (
	"fmt"

	"github.com/perl-plc/plc/bytecode"
	"github.com/perl-plc/plc/diag"
)

// applySizeFallback enforces the platform method-size limit: an
// oversized top-level body is first refactored by hoisting runs of
// whole statements into auxiliary methods re-entered through the
// closure machinery (every pad slot captured, so the hoisted code
// shares the body's lexicals); a piece that still cannot shrink —
// one enormous statement — falls back to the compact backend, which
// has no size limit. Subroutine methods skip the hoisting step and
// pack directly. Never user-visible (spec.md §7: TooLargeMethod is
// internal).
func applySizeFallback(u *Unit, stmtOffsets []int) {
	if len(u.Main.Instrs) > bytecode.MaxMethodInstrs {
		diag.Log.WithField("method", u.Main.Name).
			WithField("instrs", len(u.Main.Instrs)).
			Debug("method over size limit, hoisting statement blocks")
		hoistMainChunks(u, stmtOffsets)
	}
	for _, m := range u.Subs {
		if len(m.Instrs) > bytecode.MaxMethodInstrs {
			diag.Log.WithField("method", m.Name).
				WithField("instrs", len(m.Instrs)).
				Debug("method over size limit, using compact backend")
			m.Pack()
		}
	}
}

// hoistMainChunks splits the main body at top-level statement
// boundaries into sequential chunk methods. Statement boundaries are
// safe split points: no jump, eval region or loop frame crosses one.
func hoistMainChunks(u *Unit, stmtOffsets []int) {
	main := u.Main
	instrs := main.Instrs
	if len(stmtOffsets) == 0 {
		main.Pack()
		return
	}

	var chunks [][]bytecode.Instr
	start := 0
	for _, off := range append(stmtOffsets[1:], len(instrs)) {
		if off-start >= bytecode.MaxMethodInstrs/2 {
			chunks = append(chunks, instrs[start:off])
			start = off
		}
	}
	if start < len(instrs) {
		chunks = append(chunks, instrs[start:])
	}
	if len(chunks) < 2 {
		// nothing to split (one enormous statement): compact backend.
		main.Pack()
		return
	}

	captures := make([]bytecode.Capture, main.NumSlots)
	for i := range captures {
		captures[i] = bytecode.Capture{Outer: i, Inner: i}
	}

	var wrapper []bytecode.Instr
	for k, chunk := range chunks {
		name := fmt.Sprintf("main::__MAIN_CHUNK_%d__", k)
		rebased := rebase(chunk, offsetOf(instrs, chunk))
		// rebase ends every chunk but the last with an empty return;
		// the last chunk keeps the body's own return, so its value
		// survives as the unit's value.
		m := &bytecode.Method{
			Name:     name,
			Instrs:   rebased,
			NumSlots: main.NumSlots,
			Package:  main.Package,
			Captures: captures,
		}
		if len(m.Instrs) > bytecode.MaxMethodInstrs {
			m.Pack()
		}
		u.Subs[name] = m
		wrapper = append(wrapper,
			bytecode.Instr{Op: bytecode.OpLoadAnonCode, Str: name},
			bytecode.Instr{Op: bytecode.OpCallDyn, A: 0},
		)
		if k < len(chunks)-1 {
			wrapper = append(wrapper, bytecode.Instr{Op: bytecode.OpPop})
		} else {
			wrapper = append(wrapper, bytecode.Instr{Op: bytecode.OpReturn, A: 1})
		}
	}
	main.Instrs = wrapper
}

func offsetOf(all, chunk []bytecode.Instr) int {
	for i := range all {
		if &all[i] == &chunk[0] {
			return i
		}
	}
	return 0
}

// rebase shifts intra-chunk jump targets from whole-stream addresses
// to chunk-local ones, and terminates the chunk with a return in place
// of falling off its end.
func rebase(chunk []bytecode.Instr, base int) []bytecode.Instr {
	out := make([]bytecode.Instr, len(chunk), len(chunk)+1)
	copy(out, chunk)
	for i := range out {
		switch out[i].Op {
		case bytecode.OpJump, bytecode.OpJumpIfFalse, bytecode.OpJumpIfTrue, bytecode.OpEvalBegin:
			out[i].A -= int64(base)
		case bytecode.OpLoopBegin:
			out[i].A -= int64(base)
			out[i].B -= int64(base)
			out[i].C -= int64(base)
		}
	}
	if n := len(out); n == 0 || out[n-1].Op != bytecode.OpReturn {
		out = append(out, bytecode.Instr{Op: bytecode.OpReturn, A: 0})
	}
	return out
}
