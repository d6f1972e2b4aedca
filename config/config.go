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

// Package config loads the optional per-project `.plc.yaml` file: the
// defaults CLI flags layer over (module search paths, implicit
// modules, debug). Flags always win over file values.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the current directory unless
// $PLC_CONFIG points somewhere else.
const DefaultFileName = ".plc.yaml"

// EnvVar overrides where the config file is read from.
const EnvVar = "PLC_CONFIG"

// Config is the file's schema.
type Config struct {
	// IncludePaths are prepended to the module search path, before
	// any -I flags.
	IncludePaths []string `yaml:"include_paths"`
	// Modules are implicitly used as if passed with -M.
	Modules []string `yaml:"modules"`
	// Debug enables the debug log channel without --debug.
	Debug bool `yaml:"debug"`
}

// Load reads the config file for dir, honoring $PLC_CONFIG. A missing
// file is not an error: the zero Config is returned.
func Load(dir string) (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		path = filepath.Join(dir, DefaultFileName)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return &c, nil
}
