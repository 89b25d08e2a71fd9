// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// Package testlog ties the log package's output to a *testing.T, so
// that log output from a failing test appears interleaved with
// t.Log output instead of racing stdout after the test has ended.
package testlog

import (
	"fmt"

	"github.com/nodedisc/dnstree/log"
)

// T is the subset of *testing.T needed to attribute log output to a
// test.
type T interface {
	Logf(format string, args ...interface{})
	Helper()
}

type handler struct {
	t   T
	min log.Lvl
}

func (h *handler) Log(lvl log.Lvl, msg string, ctx []interface{}) {
	if lvl > h.min {
		return
	}
	h.t.Helper()
	line := fmt.Sprintf("%-5s %s", lvl.String(), msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		line += fmt.Sprintf(" %v=%v", ctx[i], ctx[i+1])
	}
	h.t.Logf("%s", line)
}

// Logger returns a log.Logger that writes through t.Logf at the given
// minimum level (use log.LvlTrace to see everything).
func Logger(t T, lvl log.Lvl) log.Logger {
	return log.New(&handler{t: t, min: lvl})
}
