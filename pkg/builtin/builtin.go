// Package builtin provides the native functions a host usually installs
// in an engine, together with the scheduler that paces the deferred
// ones.
package builtin

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/oarkflow/log"

	"github.com/oarkflow/coderun"
)

type Builtins struct {
	sched  *Scheduler
	out    io.Writer
	logger *log.Logger
}

func New(sched *Scheduler, out io.Writer, logger *log.Logger) *Builtins {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	if out == nil {
		out = io.Discard
	}
	return &Builtins{sched: sched, out: out, logger: logger}
}

// Register installs print, delay and wait into e.
func Register(e *coderun.Engine, sched *Scheduler, out io.Writer) error {
	return New(sched, out, nil).Register(e)
}

func (b *Builtins) Register(e *coderun.Engine) error {
	functions := map[string]coderun.NativeFunc{
		"print": b.Print,
		"delay": b.Delay,
		"wait":  b.Wait,
	}
	for _, name := range []string{"print", "delay", "wait"} {
		if err := e.RegisterFunction(name, functions[name]); err != nil {
			return fmt.Errorf("builtin %s: %w", name, err)
		}
	}
	return nil
}

// Print writes the argument and a newline, then continues at once.
func (b *Builtins) Print(arg coderun.Object, k coderun.Continuation) {
	text := ""
	if arg != nil {
		text = arg.Inspect()
	}
	if _, err := fmt.Fprintln(b.out, text); err != nil {
		b.logger.Warn().Err(err).Msg("print failed")
	}
	b.resume(k)
}

// Delay continues after the given number of seconds of scheduler time.
func (b *Builtins) Delay(arg coderun.Object, k coderun.Continuation) {
	seconds, ok := b.number("delay", arg)
	if !ok {
		b.resume(k)
		return
	}
	d := time.Duration(math.MaxInt64)
	if ns := seconds * float64(time.Second); ns < float64(math.MaxInt64) {
		d = time.Duration(ns)
	}
	b.sched.After(d, func() { b.resume(k) })
}

// Wait continues after the given number of scheduler ticks.
func (b *Builtins) Wait(arg coderun.Object, k coderun.Continuation) {
	ticks := 1.0
	if arg != nil {
		n, ok := b.number("wait", arg)
		if !ok {
			b.resume(k)
			return
		}
		ticks = n
	}
	n := math.MaxInt
	if ticks < float64(math.MaxInt) {
		n = int(math.Ceil(ticks))
	}
	b.sched.AfterTicks(n, func() { b.resume(k) })
}

func (b *Builtins) number(name string, arg coderun.Object) (float64, bool) {
	n, ok := arg.(*coderun.Number)
	if !ok {
		kind := "nothing"
		if arg != nil {
			kind = arg.Type().String()
		}
		b.logger.Warn().Str("function", name).Str("argument", kind).Msg("expected a number, continuing without waiting")
		return 0, false
	}
	if n.Value < 0 || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		b.logger.Warn().Str("function", name).Str("argument", n.Inspect()).Msg("expected a non-negative number, continuing without waiting")
		return 0, false
	}
	return n.Value, true
}

func (b *Builtins) resume(k coderun.Continuation) {
	if err := k.Resume(); err != nil {
		b.logger.Debug().Err(err).Int("ticket", int(k.Ticket())).Msg("dropped resume")
	}
}
