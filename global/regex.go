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

// MatchState holds one match's capture vector plus the derived views
// ($&, $`, $', %+, @-, @+) described in spec.md §3.
type MatchState struct {
	Captures  []string // $1 .. $n, index 0 unused
	Named     map[string]string
	Whole     string // $&
	PreMatch  string // $`
	PostMatch string // $'
	Starts    []int  // @-
	Ends      []int  // @+
}

// RegexFlags resolves the Open Question in spec.md §9: the
// authoritative declaration is the one carrying PreservesMatch.
type RegexFlags struct {
	Global         bool
	IgnoreCase     bool
	Multiline      bool
	Singleline     bool
	Extended       bool
	PreservesMatch bool
}

// RegexStack is the block-scoped snapshot stack of spec.md §4.2/§3:
// "a block that syntactically contains any match or substitution
// pushes on entry and restores on exit."
type RegexStack struct {
	stack []*MatchState
	top   *MatchState
}

func newRegexStack() *RegexStack { return &RegexStack{} }

// PushSnapshot saves the currently visible match state so nested
// matches inside the entered block can't clobber the caller's $1 etc.
func (r *RegexStack) PushSnapshot() {
	r.stack = append(r.stack, r.top)
}

// RestoreTop pops back to the state saved by the matching
// PushSnapshot.
func (r *RegexStack) RestoreTop() {
	n := len(r.stack)
	if n == 0 {
		return
	}
	r.top = r.stack[n-1]
	r.stack = r.stack[:n-1]
}

// SetMatch installs a new top-of-stack match state after a successful
// match/substitution.
func (r *RegexStack) SetMatch(m *MatchState) { r.top = m }

func (r *RegexStack) Current() *MatchState { return r.top }

// Capture returns $n, or "" if unset or out of range.
func (r *RegexStack) Capture(n int) string {
	if r.top == nil || n <= 0 || n >= len(r.top.Captures) {
		return ""
	}
	return r.top.Captures[n]
}
