package coderun

import (
	"fmt"
	"time"

	"github.com/oarkflow/log"
)

// Engine compiles and runs scripts against one environment. An Engine is
// not safe for concurrent use; hosts that share one must serialise
// access, including calls to continuations.
type Engine struct {
	name    string
	logger  *log.Logger
	config  RuntimeConfig
	cache   *ProgramCache
	lexer   *Lexer
	diag    *Diagnostics
	env     *Environment
	eval    *Evaluator
	program *Program
}

func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: &log.DefaultLogger,
		config: GetRuntimeConfig(),
		lexer:  NewLexer(),
		diag:   NewDiagnostics(),
		env:    NewEnvironment(),
	}
	e.eval = NewEvaluator(e.env, e.diag)
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.eval.configure(e.config, e.logger)
	return e, nil
}

func (e *Engine) Name() string {
	return e.name
}

// Compile replaces the running script with source. Diagnostics and
// read-write values are cleared first. The returned error is the latched
// diagnostic, if any; a script waiting on a native call is not an error.
func (e *Engine) Compile(source string) error {
	start := time.Now()
	e.diag.Clear()
	e.env.ClearStore()
	e.eval.Reset()

	e.program = e.parse(source, e.lexer, e.diag)
	if e.program == nil {
		e.eval.state = StateErrored
		e.logOutcome(start)
		return e.Err()
	}
	e.eval.Start(e.program)
	e.logOutcome(start)
	return e.Err()
}

// Check parses source without running it or touching the engine state.
func (e *Engine) Check(source string) error {
	diag := NewDiagnostics()
	if e.parse(source, NewLexer(), diag) == nil {
		return diag.Err()
	}
	return nil
}

func (e *Engine) parse(source string, lexer *Lexer, diag *Diagnostics) *Program {
	depth := e.config.MaxExpressionDepth
	if e.cache != nil {
		if program, ok := e.cache.Get(source, depth); ok {
			return program
		}
	}
	lexer.Read(source)
	p := NewParser(lexer, diag)
	p.MaxDepth = depth
	program := p.ParseProgram()
	if program != nil && e.cache != nil {
		e.cache.Put(source, depth, program)
	}
	return program
}

func (e *Engine) logOutcome(start time.Time) {
	if !e.config.LogExecution {
		return
	}
	if err := e.diag.Err(); err != nil {
		e.logger.Error().Str("engine", e.name).Str("code", string(err.Code)).Int("line", err.Line).Msg(err.Detail())
		return
	}
	e.logger.Info().Str("engine", e.name).Str("state", e.eval.State().String()).Dur("elapsed", time.Since(start)).Msg("script compiled")
}

func (e *Engine) RegisterValue(name string, value any, perm ...Permission) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	obj, err := ToObject(value)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	if !e.env.Add(name, obj, perm...) {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	return nil
}

func (e *Engine) RegisterFunction(name string, fn NativeFunc) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if fn == nil {
		return fmt.Errorf("register %s: nil function", name)
	}
	if !e.env.AddFunction(name, fn) {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	return nil
}

// Unregister removes a value or function of any permission.
func (e *Engine) Unregister(name string) {
	e.env.Remove(name)
}

func validName(name string) bool {
	if name == "" || !isLetter(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isLetter(name[i]) && !isDigit(name[i]) {
			return false
		}
	}
	return lookupIdent(name) == TOKEN_IDENT
}

func (e *Engine) GetValue(name string) (Object, bool) {
	return e.env.Get(name)
}

func (e *Engine) Values() map[string]Object {
	return e.env.Snapshot()
}

func (e *Engine) Environment() *Environment {
	return e.env
}

func (e *Engine) Program() *Program {
	return e.program
}

func (e *Engine) HasError() bool {
	return e.diag.HasError()
}

func (e *Engine) ErrorKind() ErrorCode {
	return e.diag.Code()
}

func (e *Engine) ErrorMessage() string {
	return e.diag.Message()
}

func (e *Engine) Err() error {
	if err := e.diag.Err(); err != nil {
		return err
	}
	return nil
}

func (e *Engine) State() State {
	return e.eval.State()
}

// Pending returns the ticket of the native call the script waits on, or
// zero when it is not suspended.
func (e *Engine) Pending() Ticket {
	return e.eval.Pending()
}

// Resume continues the script after the native call identified by t.
func (e *Engine) Resume(t Ticket) error {
	return e.eval.Resume(t)
}

func (e *Engine) Pause() {
	e.eval.Pause()
}

func (e *Engine) Advance() error {
	if err := e.eval.Advance(); err != nil {
		return err
	}
	return e.Err()
}

// Reset stops the script and clears diagnostics and read-write values.
func (e *Engine) Reset() {
	e.eval.Reset()
	e.diag.Clear()
	e.env.ClearStore()
	e.program = nil
}
