package coderun

import (
	"fmt"
	"strings"

	"github.com/oarkflow/errors"
)

type ErrorCode string

const (
	ErrCodeUnknown      ErrorCode = "UNKNOWN"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeMissing      ErrorCode = "MISSING"
	ErrCodeMissingBlock ErrorCode = "MISSING_BLOCK"
	ErrCodeReadOnly     ErrorCode = "READ_ONLY"
	ErrCodeVariable     ErrorCode = "VARIABLE"
	ErrCodeOutOfArray   ErrorCode = "OUT_OF_ARRAY"
)

var (
	ErrStaleResume = errors.New("resume ticket is no longer pending")
	ErrNotPaused   = errors.New("engine is not paused")
	ErrInvalidName = errors.New("invalid binding name")
	ErrNameTaken   = errors.New("name already bound")
)

// Error is a script diagnostic. Trace holds the names of the constructs
// that were active when the error was latched, outermost first.
type Error struct {
	Code    ErrorCode
	Message string
	Trace   []string
	Line    int
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail())
}

// Detail is the message prefixed with the trace path.
func (e *Error) Detail() string {
	if e == nil {
		return ""
	}
	if len(e.Trace) == 0 {
		return e.Message
	}
	return strings.Join(e.Trace, " > ") + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Diagnostics is the sticky error latch of one engine. The first error
// reported after Clear wins; later reports are dropped.
type Diagnostics struct {
	err   *Error
	trace []string
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) Clear() {
	d.err = nil
	d.trace = d.trace[:0]
}

func (d *Diagnostics) Report(code ErrorCode, format string, args ...any) {
	d.Latch(newError(code, format, args...))
}

func (d *Diagnostics) ReportAt(line int, code ErrorCode, format string, args ...any) {
	err := newError(code, format, args...)
	err.Line = line
	d.Latch(err)
}

// Latch records err unless an error is already held. The current trace
// path is copied into err when it carries none. It reports whether err
// was kept.
func (d *Diagnostics) Latch(err *Error) bool {
	if err == nil || d.err != nil {
		return false
	}
	if err.Trace == nil && len(d.trace) > 0 {
		err.Trace = append([]string(nil), d.trace...)
	}
	d.err = err
	return true
}

func (d *Diagnostics) HasError() bool {
	return d.err != nil
}

func (d *Diagnostics) Err() *Error {
	return d.err
}

func (d *Diagnostics) Code() ErrorCode {
	if d.err == nil {
		return ""
	}
	return d.err.Code
}

func (d *Diagnostics) Message() string {
	return d.err.Detail()
}

// Trace pushes a context name; Untrace pops it.
func (d *Diagnostics) Trace(name string) {
	d.trace = append(d.trace, name)
}

func (d *Diagnostics) Untrace() {
	if len(d.trace) > 0 {
		d.trace = d.trace[:len(d.trace)-1]
	}
}

func (d *Diagnostics) Depth() int {
	return len(d.trace)
}

// Unwind drops trace entries above depth.
func (d *Diagnostics) Unwind(depth int) {
	if depth < len(d.trace) {
		d.trace = d.trace[:depth]
	}
}

func (d *Diagnostics) Path() string {
	return strings.Join(d.trace, " > ")
}
