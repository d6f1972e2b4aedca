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

// Command plc compiles and runs Perl programs on the plc bytecode
// runtime.
//
// The switch grammar follows perl's: program text comes from -e/-E
// chunks or the first non-switch argument, -n/-p/-a/-F/-l/-0/-g wrap
// the program in the documented implicit input loop, -I and -m/-M
// seed the module environment, and -c stops after compilation.
//
// Exit status is 0 on success, 1 on a compile or runtime error, and 2
// on a usage error.
//
// Diagnostics:
//
//	plc --tokenize -e '...'     dump the token stream
//	plc --parse -e '...'        dump the syntax tree
//	plc --disassemble -e '...'  dump compiled bytecode
//	plc --debug -e '...'        run with verbose internal tracing
package main
