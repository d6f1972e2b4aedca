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

package global

import "github.com/perl-plc/plc/value"

// restoreFunc puts a previously saved value back into a slot. Each
// `local` variant (scalar, array, hash, glob) captures its own saved
// representation and knows how to restore it; this keeps LocalStack
// itself representation-agnostic, mirroring the teacher's pattern of a
// single flat save stack holding heterogeneous undo closures.
type restoreFunc func()

// LocalStack is the single process-wide (here: per-Table) dynamic
// variable stack of spec.md §4.2: push_local/mark/pop_to with strict
// LIFO restoration.
type LocalStack struct {
	saves []restoreFunc
}

func newLocalStack() *LocalStack { return &LocalStack{} }

// Mark returns the current stack depth, to be passed to PopTo later.
func (l *LocalStack) Mark() int { return len(l.saves) }

func (l *LocalStack) push(r restoreFunc) { l.saves = append(l.saves, r) }

// PushScalar implements `local $x = ...`: saves x's current value and
// arranges for it to be restored (not just cleared) on PopTo.
func (l *LocalStack) PushScalar(slot *value.Scalar) {
	saved := slot.Copy()
	l.push(func() { *slot = *saved })
}

// PushArray implements `local @a`.
func (l *LocalStack) PushArray(glob *value.Glob) {
	saved := glob.Array
	l.push(func() { glob.Array = saved })
}

// PushHash implements `local %h`.
func (l *LocalStack) PushHash(glob *value.Glob) {
	saved := glob.Hash
	l.push(func() { glob.Hash = saved })
}

// PushGlob implements `local *foo`, saving and restoring all five
// slots as one atomic unit (value.Glob's [SUPPLEMENT] aliasing).
func (l *LocalStack) PushGlob(glob *value.Glob) {
	saved := glob.Snapshot()
	l.push(func() { glob.Restore(saved) })
}

// PopOne restores and discards the most recently pushed save. The
// compact single-method emitter uses this instead of PopTo for every
// `local` it lowers, since each push/pop pair it emits is already
// balanced at the same lexical nesting depth; PopTo remains the
// general mark-based primitive for the interpreter's join-point
// protocol to fall back on when a Signal unwinds past a live local.
func (l *LocalStack) PopOne() {
	if n := len(l.saves); n > 0 {
		l.saves[n-1]()
		l.saves = l.saves[:n-1]
	}
}

// PopTo restores every variable pushed since level, in reverse order
// (spec.md §4.2: "pop_to restores every variable pushed since level in
// reverse order; nested scopes observe strict LIFO").
func (l *LocalStack) PopTo(level int) {
	for i := len(l.saves) - 1; i >= level; i-- {
		l.saves[i]()
	}
	l.saves = l.saves[:level]
}
