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

package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/perl-plc/plc/value"
	"github.com/pkg/errors"
)

// moduleSpec is one -m/-M argument: MOD, MOD=a,b, or -MOD for `no`.
type moduleSpec struct {
	name string
	args string
	no   bool
}

// options is the decoded §6 flag table. Perl's switch grammar clusters
// single-letter flags (-ne, -i.bak, -0777), so this is a hand-rolled
// scanner over argv rather than a stdlib flag.FlagSet; each case below
// is one row of the table.
type options struct {
	codes       []string
	allFeatures bool

	nLoop, pLoop bool
	autosplit    bool
	fPattern     string
	slurp        bool
	recordSep    string
	hasRecordSep bool
	lMode        bool
	lSep         string
	inPlace      bool
	inPlaceExt   string

	includes []string
	modules  []moduleSpec

	compileOnly bool
	skipLead    bool
	chdirTo     string

	tokenize, parseOnly, disasm, debug bool

	progFile string
	args     []string
}

func parseArgs(argv []string) (*options, error) {
	o := &options{}
	i := 0
	for ; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			i++
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			break
		}
		if strings.HasPrefix(arg, "--") {
			switch arg {
			case "--tokenize":
				o.tokenize = true
			case "--parse":
				o.parseOnly = true
			case "--disassemble":
				o.disasm = true
			case "--debug":
				o.debug = true
			default:
				return nil, errors.Errorf("unknown option %s", arg)
			}
			continue
		}
		// single-dash switches cluster: -ne CODE, -l0, -i.bak
		rest := arg[1:]
	cluster:
		for len(rest) > 0 {
			c := rest[0]
			rest = rest[1:]
			switch c {
			case 'e', 'E':
				code, err := takeValue(rest, argv, &i, "-e")
				if err != nil {
					return nil, err
				}
				rest = ""
				o.codes = append(o.codes, code)
				if c == 'E' {
					o.allFeatures = true
				}
			case 'n':
				o.nLoop = true
			case 'p':
				o.pLoop = true
				o.nLoop = true
			case 'a':
				o.autosplit = true
				o.nLoop = true
			case 'F':
				pat, err := takeValue(rest, argv, &i, "-F")
				if err != nil {
					return nil, err
				}
				rest = ""
				o.fPattern = pat
				o.autosplit = true
				o.nLoop = true
			case 'g':
				o.slurp = true
			case '0':
				oct := leadingOctal(rest)
				rest = rest[len(oct):]
				o.hasRecordSep = true
				o.recordSep = decodeRecordSep(oct)
				if o.recordSep == slurpSep {
					o.slurp = true
				}
			case 'l':
				oct := leadingOctal(rest)
				rest = rest[len(oct):]
				o.lMode = true
				o.lSep = "\n"
				if oct != "" {
					if n, err := strconv.ParseInt(oct, 8, 32); err == nil {
						o.lSep = string(rune(n))
					}
				}
			case 'i':
				o.inPlace = true
				o.inPlaceExt = rest
				rest = ""
			case 'I':
				dir, err := takeValue(rest, argv, &i, "-I")
				if err != nil {
					return nil, err
				}
				rest = ""
				o.includes = append(o.includes, dir)
			case 'm', 'M':
				spec, err := takeValue(rest, argv, &i, "-M")
				if err != nil {
					return nil, err
				}
				rest = ""
				o.modules = append(o.modules, parseModuleSpec(spec))
			case 'c':
				o.compileOnly = true
			case 'x':
				o.skipLead = true
				o.chdirTo = rest
				rest = ""
			default:
				return nil, errors.Errorf("unrecognized switch -%c", c)
			}
			continue cluster
		}
	}

	diagCount := 0
	for _, on := range []bool{o.tokenize, o.parseOnly, o.disasm} {
		if on {
			diagCount++
		}
	}
	if diagCount > 1 {
		return nil, errors.New("--tokenize, --parse and --disassemble are mutually exclusive")
	}

	remaining := argv[i:]
	if len(o.codes) == 0 {
		if len(remaining) == 0 {
			return nil, errors.New("no program: expected -e CODE or a program file")
		}
		o.progFile = remaining[0]
		remaining = remaining[1:]
	}
	o.args = remaining
	return o, nil
}

// takeValue resolves a switch argument that may be glued to the
// switch (-eCODE) or be the next argv entry (-e CODE).
func takeValue(rest string, argv []string, i *int, name string) (string, error) {
	if rest != "" {
		return rest, nil
	}
	*i++
	if *i >= len(argv) {
		return "", errors.Errorf("%s requires an argument", name)
	}
	return argv[*i], nil
}

func leadingOctal(s string) string {
	j := 0
	for j < len(s) && ((s[j] >= '0' && s[j] <= '7') || s[j] == 'x') {
		j++
	}
	return s[:j]
}

// slurpSep is the sentinel for "-0 value >= 0400: slurp whole input".
const slurpSep = "\x00SLURP"

// decodeRecordSep implements -0[OCT]: empty means NUL, 0 means
// paragraph mode, >= 0400 means slurp.
func decodeRecordSep(oct string) string {
	if oct == "" {
		return "\x00"
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(oct, "x"), 8, 32)
	if err != nil {
		return "\n"
	}
	switch {
	case n == 0:
		return "\n\n"
	case n >= 0400:
		return slurpSep
	default:
		return string(rune(n))
	}
}

func parseModuleSpec(spec string) moduleSpec {
	m := moduleSpec{}
	if strings.HasPrefix(spec, "-") {
		m.no = true
		spec = spec[1:]
	}
	if i := strings.IndexByte(spec, '='); i >= 0 {
		m.name, m.args = spec[:i], spec[i+1:]
	} else {
		m.name = spec
	}
	return m
}

// programSource resolves the program text: inline -e chunks joined by
// newlines, or the program file's contents, honoring -x's leading
// garbage skip and the shebang rule.
func (o *options) programSource() (src, name string, err error) {
	if len(o.codes) > 0 {
		return strings.Join(o.codes, "\n"), "-e", nil
	}
	var data []byte
	if o.progFile == "-" {
		data, err = ioutil.ReadAll(os.Stdin)
	} else {
		data, err = ioutil.ReadFile(o.progFile)
	}
	if err != nil {
		return "", "", errors.Wrap(err, "reading program")
	}
	src = string(data)
	if o.skipLead {
		src = skipLeadingGarbage(src)
		if o.chdirTo != "" {
			if cerr := os.Chdir(o.chdirTo); cerr != nil {
				return "", "", errors.Wrap(cerr, "-x chdir")
			}
		}
	}
	return src, o.progFile, nil
}

// skipLeadingGarbage drops everything before a line starting with #!
// and containing "perl" (-x).
func skipLeadingGarbage(src string) string {
	lines := strings.SplitAfter(src, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "#!") && strings.Contains(l, "perl") {
			return strings.Join(lines[i:], "")
		}
	}
	return src
}

// wrap applies the -n/-p/-a/-l/-g implicit-loop program synthesis: the
// user program becomes the body of a read loop, exactly as perl
// documents the equivalent source.
func (o *options) wrap(src string) string {
	var b strings.Builder
	for _, m := range o.modules {
		if m.no {
			fmt.Fprintf(&b, "no %s;\n", m.name)
		} else if m.args != "" {
			fmt.Fprintf(&b, "use %s qw(%s);\n", m.name, strings.ReplaceAll(m.args, ",", " "))
		} else {
			fmt.Fprintf(&b, "use %s;\n", m.name)
		}
	}
	switch {
	case o.slurp:
		b.WriteString("$_ = __slurp__();\n")
		b.WriteString(src)
		if o.pLoop {
			b.WriteString("\nprint $_;")
		}
	case o.nLoop:
		b.WriteString("while (defined($_ = __readline__())) {\n")
		if o.lMode {
			b.WriteString("chomp($_);\n")
		}
		if o.autosplit {
			pat := o.fPattern
			if pat == "" {
				pat = " "
			}
			fmt.Fprintf(&b, "@F = split(%s, $_);\n", strconv.Quote(pat))
		}
		b.WriteString(src)
		b.WriteString("\n")
		if o.pLoop {
			b.WriteString("print $_;\n")
			if o.lMode {
				fmt.Fprintf(&b, "print %s;\n", strconv.Quote(o.lSep))
			}
		}
		b.WriteString("}\n")
	default:
		b.WriteString(src)
	}
	return b.String()
}

func strScalar(s string) *value.Scalar { return value.NewString(s) }

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: plc [switches] [--] [programfile] [arguments]
  -e CODE        one line of program (may repeat)
  -E CODE        like -e, with all features enabled
  -n             iterate over input lines, $_ set to each
  -p             like -n, printing $_ after each iteration
  -a             autosplit $_ into @F (implies -n)
  -F PAT         autosplit pattern (implies -a)
  -0[OCT]        input record separator (00 paragraph, >=0400 slurp)
  -g             slurp all input into $_
  -l[OCT]        chomp input, append separator to print
  -i[EXT]        edit ARGV files in place (backup with EXT)
  -I DIR         prepend DIR to the module search path
  -m/-M MOD      use MOD before the program (-MOD for no)
  -c             compile only, report syntax errors
  -x[DIR]        skip leading garbage before #!...perl
  --tokenize     dump the token stream and exit
  --parse        dump the syntax tree and exit
  --disassemble  dump compiled bytecode and exit
  --debug        verbose internal tracing
`)
}
