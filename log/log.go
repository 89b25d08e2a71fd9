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

// Package log implements a small leveled, structured logger in the
// style used throughout the client: a root logger reachable via
// Root(), child loggers carrying a fixed set of key/value context via
// New(), and a terminal handler that colorizes level names when
// writing to a TTY.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a logging severity level, ordered from most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var levelColor = map[Lvl]int{
	LvlCrit:  35, // magenta
	LvlError: 31, // red
	LvlWarn:  33, // yellow
	LvlInfo:  32, // green
	LvlDebug: 36, // cyan
	LvlTrace: 90, // bright black
}

// Logger writes leveled, structured messages.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})

	// New returns a child logger that always includes ctx alongside its
	// own per-call context.
	New(ctx ...interface{}) Logger
}

// Handler is the sink a Logger writes formatted records to.
type Handler interface {
	Log(lvl Lvl, msg string, ctx []interface{})
}

type logger struct {
	ctx     []interface{}
	handler Handler
}

// New creates a standalone logger writing to handler, with the given
// initial context.
func New(handler Handler, ctx ...interface{}) Logger {
	return &logger{ctx: ctx, handler: handler}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if l.handler == nil {
		return
	}
	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	l.handler.Log(lvl, msg, all)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func (l *logger) New(ctx ...interface{}) Logger {
	nctx := make([]interface{}, 0, len(l.ctx)+len(ctx))
	nctx = append(nctx, l.ctx...)
	nctx = append(nctx, ctx...)
	return &logger{ctx: nctx, handler: l.handler}
}

// TerminalHandler formats records as "LVL[time] msg key=value ...",
// colorizing the level tag when w is a terminal.
type TerminalHandler struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	min   Lvl
}

// NewTerminalHandler wraps w, colorizing level tags when useColor is
// set. It does not inspect w itself; NewStdHandler does the TTY check.
func NewTerminalHandler(w io.Writer, useColor bool) *TerminalHandler {
	return &TerminalHandler{w: w, color: useColor, min: LvlTrace}
}

// NewStdHandler returns the default handler for os.Stderr: colorized
// when stderr is a TTY, plain otherwise.
func NewStdHandler() *TerminalHandler {
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return NewTerminalHandler(colorable.NewColorable(os.Stderr), useColor)
}

// SetLevel bounds which records are actually written.
func (h *TerminalHandler) SetLevel(lvl Lvl) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.min = lvl
}

func (h *TerminalHandler) Log(lvl Lvl, msg string, ctx []interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if lvl > h.min {
		return
	}
	ts := time.Now().Format("01-02|15:04:05.000")
	tag := lvl.String()
	if h.color {
		tag = fmt.Sprintf("\x1b[%dm%-5s\x1b[0m", levelColor[lvl], tag)
	} else {
		tag = fmt.Sprintf("%-5s", tag)
	}
	fmt.Fprintf(h.w, "%s[%s] %s", tag, ts, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(h.w, " %v=%v", ctx[i], ctx[i+1])
	}
	fmt.Fprintln(h.w)
}

var (
	rootMu sync.Mutex
	root   Logger = New(NewStdHandler())
)

// Root returns the global root logger.
func Root() Logger {
	rootMu.Lock()
	defer rootMu.Unlock()
	return root
}

// SetRoot replaces the global root logger, e.g. to redirect to a
// test-scoped handler.
func SetRoot(l Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = l
}

// Package-level convenience functions delegate to Root(), matching the
// way callers throughout the client log without holding their own
// logger reference.
func Trace(msg string, ctx ...interface{}) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root().Crit(msg, ctx...) }
