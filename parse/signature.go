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

package parse

import "github.com/perl-plc/plc/ast"

// Param is one named-signature parameter (the supplemental
// subroutine-signature support spec.md's distillation dropped but
// original_source/ exercises).
type Param struct {
	Sigil   ast.Sigil
	Name    string
	Default *ast.Node // nil if no default expression
}

// Signature is attached to OpSubDecl/OpAnonSub nodes under the
// "signature" annotation key so the emitter can lower it into
// ordinary `my ($a, $b) = @_;`-style argument unpacking.
type Signature struct {
	Params []Param
}
