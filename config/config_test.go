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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "plcconfig")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if len(c.IncludePaths) != 0 || len(c.Modules) != 0 || c.Debug {
		t.Fatalf("expected zero config, got %+v", c)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	dir, err := ioutil.TempDir("", "plcconfig")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	body := "include_paths:\n  - lib\n  - vendor/lib\nmodules:\n  - strict\ndebug: true\n"
	if err := ioutil.WriteFile(filepath.Join(dir, DefaultFileName), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.IncludePaths) != 2 || c.IncludePaths[0] != "lib" {
		t.Fatalf("include_paths wrong: %+v", c.IncludePaths)
	}
	if len(c.Modules) != 1 || c.Modules[0] != "strict" {
		t.Fatalf("modules wrong: %+v", c.Modules)
	}
	if !c.Debug {
		t.Fatal("debug not set")
	}
}

func TestLoadBadYAMLFails(t *testing.T) {
	dir, err := ioutil.TempDir("", "plcconfig")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := ioutil.WriteFile(filepath.Join(dir, DefaultFileName), []byte("{:::"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}
