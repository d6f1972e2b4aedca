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

package diag

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the structured debug/warn channel for everything that is not
// a user-facing diagnostic: emitter fallback decisions, regex-state
// tracing under -debug, warn()'s default sink. User-facing errors
// never go through here; they are rendered by Error and written to
// stderr by the caller.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// SetDebug raises the log level so per-phase tracing becomes visible
// (the CLI's --debug flag).
func SetDebug(on bool) {
	if on {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.WarnLevel)
	}
}

// SetOutput redirects the log channel, used by tests and by the CLI
// to keep diagnostics off the program's own stdout.
func SetOutput(w io.Writer) { Log.SetOutput(w) }
