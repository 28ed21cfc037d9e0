package coderun

import (
	"errors"
	"math"
	"strconv"

	"github.com/oarkflow/log"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateSuspended
	StatePaused
	StateFinished
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Ticket identifies one outstanding native call. Tickets are never
// reused by an evaluator, so a ticket from an earlier run is stale.
type Ticket uint64

// Continuation is handed to a native function. Calling Resume lets the
// script continue after the call.
type Continuation struct {
	ev     *Evaluator
	ticket Ticket
}

func (k Continuation) Resume() error {
	if k.ev == nil {
		return ErrStaleResume
	}
	return k.ev.Resume(k.ticket)
}

func (k Continuation) Ticket() Ticket {
	return k.ticket
}

// marker records what the statement at a frame's cursor is waiting for.
type marker int

const (
	atStatement marker = iota
	inConsequence
	inAlternative
	inLoopBody
)

type frame struct {
	block      *BlockStatement
	cursor     int
	marker     marker
	iterations int
	// depth is the trace depth when the statement at cursor started.
	depth int
}

// Evaluator executes a Program one statement at a time. Execution stops
// when the program ends, an error is latched, or a native function
// keeps its continuation for later.
type Evaluator struct {
	env    *Environment
	diag   *Diagnostics
	logger *log.Logger

	program *Program
	frames  []*frame
	state   State
	line    int

	ticket       Ticket
	pending      Ticket
	pendingDepth int
	pauseRequest bool
	inRun        bool

	loopLimit int
	logging   bool
}

func NewEvaluator(env *Environment, diag *Diagnostics) *Evaluator {
	return &Evaluator{
		env:       env,
		diag:      diag,
		logger:    &log.DefaultLogger,
		loopLimit: DefaultLoopLimit,
	}
}

func (ev *Evaluator) configure(cfg RuntimeConfig, logger *log.Logger) {
	ev.loopLimit = cfg.loopLimit()
	ev.logging = cfg.LogExecution
	if logger != nil {
		ev.logger = logger
	}
}

func (ev *Evaluator) State() State {
	return ev.state
}

// Pending returns the ticket of the outstanding native call, or zero.
func (ev *Evaluator) Pending() Ticket {
	return ev.pending
}

// Start drops any previous run and executes program from its first
// statement.
func (ev *Evaluator) Start(program *Program) {
	ev.Reset()
	ev.program = program
	ev.frames = append(ev.frames, &frame{block: program.Body})
	ev.state = StateRunning
	ev.run()
}

// Reset forgets the current program. A continuation held by a native
// function becomes stale.
func (ev *Evaluator) Reset() {
	ev.program = nil
	ev.frames = ev.frames[:0]
	ev.state = StateIdle
	ev.pending = 0
	ev.pauseRequest = false
	ev.line = 0
}

// Resume continues after the native call identified by t.
func (ev *Evaluator) Resume(t Ticket) error {
	if ev.state != StateSuspended || t == 0 || t != ev.pending {
		return ErrStaleResume
	}
	ev.pending = 0
	ev.diag.Unwind(ev.pendingDepth)
	ev.state = StateRunning
	if ev.logging {
		ev.logger.Debug().Int("ticket", int(t)).Msg("native call resumed")
	}
	if !ev.inRun {
		ev.run()
	}
	return nil
}

// Pause stops a running or suspended program before its next statement.
func (ev *Evaluator) Pause() {
	switch ev.state {
	case StateRunning, StateSuspended:
		ev.pauseRequest = true
	}
}

func (ev *Evaluator) Advance() error {
	if ev.state != StatePaused {
		ev.pauseRequest = false
		return ErrNotPaused
	}
	ev.pauseRequest = false
	ev.state = StateRunning
	ev.run()
	return nil
}

func (ev *Evaluator) run() {
	ev.inRun = true
	defer func() { ev.inRun = false }()

	for ev.state == StateRunning {
		if len(ev.frames) == 0 {
			ev.state = StateFinished
			return
		}
		f := ev.frames[len(ev.frames)-1]
		if f.cursor >= len(f.block.Statements) {
			ev.frames = ev.frames[:len(ev.frames)-1]
			if len(ev.frames) > 0 {
				ev.complete(ev.frames[len(ev.frames)-1])
			}
			continue
		}
		if ev.pauseRequest && f.marker == atStatement {
			ev.pauseRequest = false
			ev.state = StatePaused
			return
		}
		ev.exec(f)
	}
}

// complete is called on a frame whose child block has run to its end.
func (ev *Evaluator) complete(f *frame) {
	switch f.marker {
	case inConsequence, inAlternative:
		ev.finish(f)
	case inLoopBody:
		// the loop statement at the cursor checks its condition again
	}
}

func (ev *Evaluator) finish(f *frame) {
	ev.diag.Unwind(f.depth)
	f.cursor++
	f.marker = atStatement
	f.iterations = 0
}

func (ev *Evaluator) push(block *BlockStatement) {
	ev.frames = append(ev.frames, &frame{block: block})
}

func (ev *Evaluator) exec(f *frame) {
	stmt := f.block.Statements[f.cursor]
	ev.line = stmt.Pos().Line
	if f.marker == atStatement {
		f.depth = ev.diag.Depth()
	}
	switch s := stmt.(type) {
	case *AssignStatement:
		if ev.assign(s) {
			ev.finish(f)
		}
	case *CallStatement:
		ev.call(f, s)
	case *IfStatement:
		ev.branch(f, s)
	case *LoopStatement:
		ev.loop(f, s)
	case *BlockStatement:
		f.marker = inConsequence
		ev.push(s)
	default:
		ev.fail(newError(ErrCodeInvalid, "unsupported statement %T", stmt))
	}
}

func (ev *Evaluator) fail(err error) {
	var de *Error
	if !errors.As(err, &de) {
		de = &Error{Code: ErrCodeInvalid, Message: err.Error(), Cause: err}
	}
	if de.Line == 0 {
		de.Line = ev.line
	}
	ev.diag.Latch(de)
	ev.state = StateErrored
	if ev.logging {
		ev.logger.Error().Str("code", string(ev.diag.Code())).Int("line", ev.line).Msg(ev.diag.Message())
	}
}

func (ev *Evaluator) assign(s *AssignStatement) bool {
	ev.diag.Trace(s.Name)
	known := ev.env.Has(s.Name)
	if ev.env.IsReadOnly(s.Name) {
		ev.fail(newError(ErrCodeReadOnly, "'%s' is read-only", s.Name))
		return false
	}

	index := -1
	if s.Index != NoExpr {
		if !known {
			ev.fail(newError(ErrCodeUnknown, "'%s' is not declared", s.Name))
			return false
		}
		i, ok := ev.index(s.Name, s.Index)
		if !ok {
			return false
		}
		index = i
	}

	var value Object
	if s.Array != nil {
		value = ev.array(s.Array)
	} else {
		value = ev.calculate(s.Value)
	}
	if value == nil {
		return false
	}

	var err error
	switch {
	case s.Index != NoExpr:
		err = ev.env.SetIndex(s.Name, index, value)
	case known:
		err = ev.env.Set(s.Name, value)
	default:
		ev.env.Add(s.Name, value)
	}
	if err != nil {
		ev.fail(err)
		return false
	}
	return true
}

func (ev *Evaluator) call(f *frame, s *CallStatement) {
	ev.diag.Trace(s.Name)
	fn, ok := ev.env.GetFunction(s.Name)
	if !ok {
		ev.fail(newError(ErrCodeUnknown, "'%s' is not a function", s.Name))
		return
	}
	arg, ok := ev.arguments(s.Arguments)
	if !ok {
		return
	}

	f.cursor++
	f.marker = atStatement
	ev.ticket++
	ev.pending = ev.ticket
	ev.pendingDepth = f.depth
	ev.state = StateSuspended
	if ev.logging {
		ev.logger.Debug().Str("function", s.Name).Int("ticket", int(ev.pending)).Int("line", s.Token.Line).Msg("native call")
	}
	fn(arg, Continuation{ev: ev, ticket: ev.pending})
}

func (ev *Evaluator) arguments(lit *ArrayLiteral) (Object, bool) {
	if lit == nil || len(lit.Elements) == 0 {
		return nil, true
	}
	if len(lit.Elements) == 1 {
		v := ev.calculate(lit.Elements[0])
		return v, v != nil
	}
	v := ev.array(lit)
	return v, v != nil
}

func (ev *Evaluator) branch(f *frame, s *IfStatement) {
	ev.diag.Trace("if")
	for {
		cond, ok := ev.condition(s.Condition)
		if !ok {
			return
		}
		if cond {
			f.marker = inConsequence
			ev.push(s.Consequence)
			return
		}
		switch alt := s.Alternative.(type) {
		case *IfStatement:
			ev.diag.Trace("else")
			s = alt
		case *BlockStatement:
			ev.diag.Trace("else")
			f.marker = inAlternative
			ev.push(alt)
			return
		default:
			ev.finish(f)
			return
		}
	}
}

func (ev *Evaluator) loop(f *frame, s *LoopStatement) {
	if f.marker == atStatement {
		ev.diag.Trace("loop")
		f.marker = inLoopBody
		f.iterations = 0
	}
	cond, ok := ev.condition(s.Condition)
	if !ok {
		return
	}
	if !cond {
		ev.finish(f)
		return
	}
	if f.iterations >= ev.loopLimit {
		if ev.logging {
			ev.logger.Warn().Int("line", s.Token.Line).Int("limit", ev.loopLimit).Msg("loop stopped at iteration limit")
		}
		ev.finish(f)
		return
	}
	f.iterations++
	ev.push(s.Body)
}

func (ev *Evaluator) condition(id ExprID) (bool, bool) {
	v := ev.calculate(id)
	if v == nil {
		return false, false
	}
	b, ok := v.(*Boolean)
	if !ok {
		ev.fail(newError(ErrCodeVariable, "condition must be a boolean, not %s", v.Type()))
		return false, false
	}
	return b.Value, true
}

func (ev *Evaluator) array(lit *ArrayLiteral) Object {
	elements := make([]Object, 0, len(lit.Elements))
	for _, id := range lit.Elements {
		v := ev.calculate(id)
		if v == nil {
			return nil
		}
		elements = append(elements, v)
	}
	return &Array{Elements: elements}
}

// maxIndex bounds indexes before they are converted to int.
const maxIndex = 1 << 53

// index evaluates an index expression for name.
func (ev *Evaluator) index(name string, id ExprID) (int, bool) {
	v := ev.calculate(id)
	if v == nil {
		return 0, false
	}
	n, ok := v.(*Number)
	if !ok {
		ev.fail(newError(ErrCodeVariable, "index of '%s' must be a number, not %s", name, v.Type()))
		return 0, false
	}
	if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		ev.fail(newError(ErrCodeOutOfArray, "index %s of '%s' is not a position", n.Inspect(), name))
		return 0, false
	}
	if math.Abs(n.Value) >= maxIndex {
		ev.fail(newError(ErrCodeOutOfArray, "index %s of '%s' is out of range", strconv.FormatFloat(n.Value, 'g', -1, 64), name))
		return 0, false
	}
	return int(n.Value), true
}

// calculate evaluates an expression. It returns nil after latching an
// error.
func (ev *Evaluator) calculate(id ExprID) Object {
	if ev.diag.HasError() {
		return nil
	}
	node := ev.program.Arena.Node(id)
	switch node.Token.Type {
	case TOKEN_IDENT:
		return ev.identifier(node)
	case TOKEN_NUMBER, TOKEN_STRING, TOKEN_TRUE, TOKEN_FALSE:
		v := ObjectFromToken(node.Token)
		if v == nil {
			ev.fail(newError(ErrCodeInvalid, "malformed literal '%s'", node.Token.Literal))
		}
		return v
	case TOKEN_NOT, TOKEN_SIGN:
		right := ev.calculate(node.Right)
		if right == nil {
			return nil
		}
		return ev.unary(node.Token, right)
	}
	if node.Left == NoExpr || node.Right == NoExpr {
		ev.fail(newError(ErrCodeMissing, "operator '%s' is missing an operand", node.Token.Literal))
		return nil
	}
	left := ev.calculate(node.Left)
	if left == nil {
		return nil
	}
	right := ev.calculate(node.Right)
	if right == nil {
		return nil
	}
	return ev.binary(node.Token, left, right)
}

func (ev *Evaluator) identifier(node *ExprNode) Object {
	name := node.Token.Literal
	b, ok := ev.env.Lookup(name)
	if !ok {
		ev.fail(newError(ErrCodeUnknown, "'%s' is not declared", name))
		return nil
	}
	if node.Right == NoExpr {
		return b.Value.Clone()
	}
	arr, ok := b.Value.(*Array)
	if !ok {
		ev.fail(newError(ErrCodeVariable, "'%s' is a %s and cannot be indexed", name, b.Value.Type()))
		return nil
	}
	i, ok := ev.index(name, node.Right)
	if !ok {
		return nil
	}
	el, err := arr.Index(i)
	if err != nil {
		ev.fail(err)
		return nil
	}
	return el.Clone()
}

func (ev *Evaluator) unary(op Token, right Object) Object {
	switch op.Type {
	case TOKEN_NOT:
		if b, ok := right.(*Boolean); ok {
			return &Boolean{Value: !b.Value}
		}
	case TOKEN_SIGN:
		if n, ok := right.(*Number); ok {
			return &Number{Value: -n.Value}
		}
	}
	ev.fail(newError(ErrCodeInvalid, "cannot apply '%s' to %s", op.Literal, right.Type()))
	return nil
}

func (ev *Evaluator) binary(op Token, left, right Object) Object {
	switch l := left.(type) {
	case *Number:
		if r, ok := right.(*Number); ok {
			if v := numberOp(op.Type, l.Value, r.Value); v != nil {
				return v
			}
		}
	case *Boolean:
		if r, ok := right.(*Boolean); ok {
			if v := booleanOp(op.Type, l.Value, r.Value); v != nil {
				return v
			}
		}
	}
	if left.Type() == STRING_OBJ || right.Type() == STRING_OBJ {
		switch op.Type {
		case TOKEN_PLUS:
			return &String{Value: left.Inspect() + right.Inspect()}
		case TOKEN_EQ, TOKEN_NEQ:
			l, lok := left.(*String)
			r, rok := right.(*String)
			if lok && rok {
				return &Boolean{Value: (l.Value == r.Value) == (op.Type == TOKEN_EQ)}
			}
		}
	}
	ev.fail(newError(ErrCodeInvalid, "cannot apply '%s' to %s and %s", op.Literal, left.Type(), right.Type()))
	return nil
}

func numberOp(op TokenType, a, b float64) Object {
	switch op {
	case TOKEN_PLUS:
		return &Number{Value: a + b}
	case TOKEN_MINUS:
		return &Number{Value: a - b}
	case TOKEN_MULTIPLY:
		return &Number{Value: a * b}
	case TOKEN_DIVIDE:
		return &Number{Value: a / b}
	case TOKEN_MOD:
		return &Number{Value: math.Mod(a, b)}
	case TOKEN_EQ:
		return &Boolean{Value: a == b}
	case TOKEN_NEQ:
		return &Boolean{Value: a != b}
	case TOKEN_GT:
		return &Boolean{Value: a > b}
	case TOKEN_GTE:
		return &Boolean{Value: a >= b}
	case TOKEN_LT:
		return &Boolean{Value: a < b}
	case TOKEN_LTE:
		return &Boolean{Value: a <= b}
	}
	return nil
}

func booleanOp(op TokenType, a, b bool) Object {
	switch op {
	case TOKEN_AND:
		return &Boolean{Value: a && b}
	case TOKEN_OR:
		return &Boolean{Value: a || b}
	case TOKEN_EQ:
		return &Boolean{Value: a == b}
	case TOKEN_NEQ:
		return &Boolean{Value: a != b}
	}
	return nil
}
