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

import "encoding/binary"

// CompactCode is the second backend's artifact: the same instruction
// stream packed into interned pools and a varint operand tape. It has
// no per-method size limit; the cost is a decode step before the
// first run. Both backends hand the interpreter an identical
// instruction slice, so callers cannot tell which one served a given
// subroutine (spec.md §4.6's size fallback).
type CompactCode struct {
	ops   []uint16
	tape  []byte // varint-encoded A,B,C per instruction
	f     []float64
	fIdx  []int32 // -1: no float operand
	pool  []string
	sIdx  []int32 // -1: no string operand
	lines []int32
}

// Pack re-encodes a method onto the compact backend, dropping the
// inline instruction slice.
func (m *Method) Pack() {
	m.Code = EncodeCompact(m.Instrs)
	m.Instrs = nil
}

// ensureInstrs materializes the instruction slice, decoding the
// compact artifact when the inline backend did not serve this method.
func (m *Method) ensureInstrs() []Instr {
	if m.Instrs == nil && m.Code != nil {
		m.Instrs = m.Code.Decode()
	}
	return m.Instrs
}

func EncodeCompact(instrs []Instr) *CompactCode {
	c := &CompactCode{}
	interned := make(map[string]int32)
	var buf [binary.MaxVarintLen64]byte
	for _, in := range instrs {
		c.ops = append(c.ops, uint16(in.Op))
		for _, v := range [3]int64{in.A, in.B, in.C} {
			n := binary.PutVarint(buf[:], v)
			c.tape = append(c.tape, buf[:n]...)
		}
		if in.F != 0 {
			c.fIdx = append(c.fIdx, int32(len(c.f)))
			c.f = append(c.f, in.F)
		} else {
			c.fIdx = append(c.fIdx, -1)
		}
		if in.Str != "" {
			idx, ok := interned[in.Str]
			if !ok {
				idx = int32(len(c.pool))
				c.pool = append(c.pool, in.Str)
				interned[in.Str] = idx
			}
			c.sIdx = append(c.sIdx, idx)
		} else {
			c.sIdx = append(c.sIdx, -1)
		}
		c.lines = append(c.lines, int32(in.Line))
	}
	return c
}

func (c *CompactCode) Decode() []Instr {
	out := make([]Instr, len(c.ops))
	off := 0
	for i := range c.ops {
		in := &out[i]
		in.Op = Op(c.ops[i])
		for k := 0; k < 3; k++ {
			v, n := binary.Varint(c.tape[off:])
			off += n
			switch k {
			case 0:
				in.A = v
			case 1:
				in.B = v
			case 2:
				in.C = v
			}
		}
		if idx := c.fIdx[i]; idx >= 0 {
			in.F = c.f[idx]
		}
		if idx := c.sIdx[i]; idx >= 0 {
			in.Str = c.pool[idx]
		}
		in.Line = int(c.lines[i])
	}
	return out
}

// Len reports the packed instruction count.
func (c *CompactCode) Len() int { return len(c.ops) }
