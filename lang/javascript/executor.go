package javascript

import (
	"fmt"
	"math"

	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// Executor: tree walk with frame recording
// ---------------------------------------------------------------------------

type signal int

const (
	signalNone signal = iota
	signalBreak
	signalContinue
	signalReturn
)

// halt unwinds the executor once the ERROR frame has been recorded.
type halt struct{}

// Executor walks one parsed program. It is single-use: one Executor per run.
type Executor struct {
	prog      *Program
	policy    *vm.Policy
	externals *vm.Externals
	builtins  map[string]*namespace
	global    *vm.Environment
	env       *vm.Environment
	rec       *vm.Recorder
	limits    *vm.Limits
	ctx       *vm.ExecutionContext
	logLines  []vm.LogLine

	// calls collects external calls until the next frame is recorded.
	calls []vm.CallRecord
	// stmt is the statement being executed, for error frames.
	stmt        Stmt
	loopDepth   int
	funcDepth   int
	returnValue vm.Value
}

// NewExecutor prepares a run of prog whose first frame is stamped start.
func NewExecutor(prog *Program, policy *vm.Policy, opts *vm.Options, start int64) *Executor {
	e := &Executor{
		prog:     prog,
		policy:   policy,
		builtins: builtins(),
		global:   vm.NewEnvironment(nil),
		rec:      vm.NewRecorder(start, describeFrame),
		limits:   vm.NewLimits(policy),
	}
	var state map[string]any
	if opts != nil {
		e.externals = opts.Externals
		state = opts.State
	}
	e.env = e.global
	e.ctx = vm.NewExecutionContext(state, e.log, e.rec.Time)
	return e
}

func (e *Executor) log(s string) {
	e.logLines = append(e.logLines, vm.LogLine{Time: e.rec.Time(), Output: s})
}

// Frames returns the trace recorded so far.
func (e *Executor) Frames() []*vm.Frame { return e.rec.Frames() }

func (e *Executor) LogLines() []vm.LogLine { return e.logLines }

// Run hoists function declarations and executes the top level.
func (e *Executor) Run() {
	e.hoist()
	e.guard(func() {
		for _, s := range e.prog.Body {
			e.execStmt(s)
		}
	})
}

func (e *Executor) hoist() {
	for _, s := range e.prog.Body {
		if fd, ok := s.(*FunctionDecl); ok {
			e.global.Define(fd.Name, &vm.Function{
				Name:  fd.Name,
				Arity: vm.Exactly(len(fd.Params)),
				Decl:  fd,
				Env:   e.global,
			}, false)
		}
	}
}

// guard runs body, turning a halt into a clean return and any other panic
// into an InternalError frame.
func (e *Executor) guard(body func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(halt); ok {
			return
		}
		var loc vm.Span
		if e.stmt != nil {
			loc = e.stmt.Span()
		}
		e.recordFault(vm.InternalFault(r, loc))
	}()
	body()
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

func (e *Executor) takeCalls() []vm.CallRecord {
	calls := e.calls
	e.calls = nil
	return calls
}

func (e *Executor) record(at vm.Span, kind vm.NodeKind, name string, result vm.Value) {
	e.rec.Record(vm.Step{
		Location:  at,
		Code:      at.Code(e.prog.Source),
		Kind:      kind,
		Name:      name,
		Result:    result,
		Variables: e.env.Snapshot(),
		Calls:     e.takeCalls(),
	})
}

func (e *Executor) recordFault(err *vm.RuntimeError) {
	var kind vm.NodeKind
	if e.stmt != nil {
		kind = e.stmt.Kind()
	}
	e.rec.Fail(vm.Step{
		Location:  err.Location,
		Code:      err.Location.Code(e.prog.Source),
		Kind:      kind,
		Variables: e.env.Snapshot(),
		Calls:     e.takeCalls(),
	}, err)
}

// raise records err as the terminal frame, capturing the scope at the
// fault. Callers panic with the result: panic(e.raise(err)).
func (e *Executor) raise(err *vm.RuntimeError) halt {
	e.recordFault(err)
	return halt{}
}

func (e *Executor) fail(typ vm.ErrorType, at vm.Span, ctx map[string]any) halt {
	return e.raise(vm.NewRuntimeError(typ, at, ctx))
}

func (e *Executor) checkAllowed(n Node) {
	if !e.policy.NodeAllowed(n.Kind()) {
		panic(e.fail(vm.NodeNotAllowed, n.Span(), map[string]any{"nodeType": string(n.Kind())}))
	}
}

func (e *Executor) tick(at vm.Span) {
	if err := e.limits.Tick(at); err != nil {
		panic(e.raise(err))
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (e *Executor) execStmt(s Stmt) signal {
	e.stmt = s
	e.checkAllowed(s)
	switch n := s.(type) {
	case *ExpressionStmt:
		v := e.eval(n.Expr)
		e.stmt = n
		e.record(n.SpanVal, vm.ExpressionStatement, assignedName(n.Expr), v)
	case *VariableDecl:
		e.checkDeclarable(n.Name, n.NameSpan)
		var v vm.Value = vm.Undefined{}
		if n.Init != nil {
			v = e.eval(n.Init)
		}
		e.stmt = n
		e.env.Define(n.Name, v, n.Const)
		e.record(n.SpanVal, vm.VariableDeclaration, n.Name, v)
	case *BlockStmt:
		return e.execBlock(n.Body, vm.NewEnvironment(e.env))
	case *IfStmt:
		if e.test(n, n.Condition) {
			return e.execStmt(n.Then)
		}
		if n.Else != nil {
			return e.execStmt(n.Else)
		}
	case *WhileStmt:
		return e.execWhile(n)
	case *ForStmt:
		return e.execFor(n)
	case *ForOfStmt:
		return e.execForOf(n)
	case *ForInStmt:
		return e.execForIn(n)
	case *RepeatStmt:
		return e.execRepeat(n)
	case *FunctionDecl:
		// hoisted
	case *ReturnStmt:
		if e.funcDepth == 0 {
			panic(e.fail(vm.ReturnOutsideFunction, n.SpanVal, nil))
		}
		var v vm.Value = vm.Undefined{}
		if n.Value != nil {
			v = e.eval(n.Value)
		}
		e.stmt = n
		e.record(n.SpanVal, vm.ReturnStatement, "", v)
		e.returnValue = v
		return signalReturn
	case *BreakStmt:
		if e.loopDepth == 0 {
			panic(e.fail(vm.BreakOutsideLoop, n.SpanVal, nil))
		}
		e.record(n.SpanVal, vm.BreakStatement, "", nil)
		return signalBreak
	case *ContinueStmt:
		if e.loopDepth == 0 {
			panic(e.fail(vm.ContinueOutsideLoop, n.SpanVal, nil))
		}
		e.record(n.SpanVal, vm.ContinueStatement, "", nil)
		return signalContinue
	default:
		panic(fmt.Sprintf("unknown statement %T", s))
	}
	return signalNone
}

// checkDeclarable enforces redeclaration and shadowing rules for a new
// binding in the current scope.
func (e *Executor) checkDeclarable(name string, at vm.Span) {
	if e.env.Has(name) {
		panic(e.fail(vm.VariableAlreadyDeclared, at, map[string]any{"name": name}))
	}
	if !e.policy.AllowShadowing {
		if parent := e.env.Parent(); parent != nil && parent.Resolve(name) != nil {
			panic(e.fail(vm.ShadowingDisabled, at, map[string]any{"name": name}))
		}
	}
}

func (e *Executor) execBlock(body []Stmt, env *vm.Environment) signal {
	prev := e.env
	e.env = env
	defer func() { e.env = prev }()
	for _, s := range body {
		if sig := e.execStmt(s); sig != signalNone {
			return sig
		}
	}
	return signalNone
}

// test evaluates a loop or branch condition and records it.
func (e *Executor) test(s Stmt, cond Expr) bool {
	e.stmt = s
	v := e.eval(cond)
	b := e.boolean(cond, v)
	e.stmt = s
	e.record(cond.Span(), s.Kind(), "", v)
	return b
}

// boolean applies the truthiness gate to a value in a boolean position.
func (e *Executor) boolean(at Expr, v vm.Value) bool {
	if b, ok := v.(vm.Boolean); ok {
		return bool(b)
	}
	if !e.policy.AllowTruthiness {
		panic(e.fail(vm.TruthinessDisabled, at.Span(), map[string]any{"value": typeName(v)}))
	}
	return truthy(v)
}

// iterate runs one loop body. stop reports whether the loop ends, and sig
// is what the loop statement itself returns.
func (e *Executor) iterate(body Stmt) (stop bool, sig signal) {
	e.loopDepth++
	sig = e.execStmt(body)
	e.loopDepth--
	switch sig {
	case signalBreak:
		return true, signalNone
	case signalReturn:
		return true, signalReturn
	}
	return false, signalNone
}

func (e *Executor) execWhile(n *WhileStmt) signal {
	for {
		if !e.test(n, n.Condition) {
			return signalNone
		}
		e.tick(n.Condition.Span())
		if stop, sig := e.iterate(n.Body); stop {
			return sig
		}
	}
}

func (e *Executor) execFor(n *ForStmt) signal {
	prev := e.env
	e.env = vm.NewEnvironment(prev)
	defer func() { e.env = prev }()

	if n.Init != nil {
		e.execStmt(n.Init)
	}
	for {
		if n.Test != nil && !e.test(n, n.Test) {
			return signalNone
		}
		e.tick(n.SpanVal)
		if stop, sig := e.iterate(n.Body); stop {
			return sig
		}
		if n.Update != nil {
			e.stmt = n
			v := e.eval(n.Update)
			e.record(n.Update.Span(), vm.ForStatement, assignedName(n.Update), v)
		}
	}
}

// loopOver binds name to each value produced by next in a fresh scope.
func (e *Executor) loopOver(s Stmt, name string, header vm.Span, next func(int) (vm.Value, bool), body Stmt) signal {
	for i := 0; ; i++ {
		e.stmt = s
		v, ok := next(i)
		if !ok {
			return signalNone
		}
		e.tick(header)
		prev := e.env
		e.env = vm.NewEnvironment(prev)
		e.checkDeclarable(name, header)
		e.env.Define(name, v, false)
		e.record(header, s.Kind(), name, v)
		stop, sig := e.iterate(body)
		e.env = prev
		if stop {
			return sig
		}
	}
}

func (e *Executor) execForOf(n *ForOfStmt) signal {
	e.stmt = n
	target := e.eval(n.Iterable)
	header := vm.Span{Start: n.SpanVal.Start, End: n.Iterable.Span().End}
	switch t := target.(type) {
	case *vm.List:
		return e.loopOver(n, n.Name, header, func(i int) (vm.Value, bool) {
			if i >= t.Len() {
				return nil, false
			}
			return t.Elements[i], true
		}, n.Body)
	case vm.String:
		chars := []rune(string(t))
		return e.loopOver(n, n.Name, header, func(i int) (vm.Value, bool) {
			if i >= len(chars) {
				return nil, false
			}
			return vm.String(string(chars[i])), true
		}, n.Body)
	}
	panic(e.fail(vm.ForOfLoopTargetNotIterable, n.Iterable.Span(), map[string]any{"type": typeName(target)}))
}

func (e *Executor) execForIn(n *ForInStmt) signal {
	e.stmt = n
	target := e.eval(n.Object)
	header := vm.Span{Start: n.SpanVal.Start, End: n.Object.Span().End}
	var keys []string
	switch t := target.(type) {
	case *vm.Dict:
		keys = append(keys, t.Keys()...)
	case *vm.List:
		for i := range t.Elements {
			keys = append(keys, vm.FormatNumber(float64(i)))
		}
	default:
		panic(e.fail(vm.ForInLoopTargetNotObject, n.Object.Span(), map[string]any{"type": typeName(target)}))
	}
	return e.loopOver(n, n.Name, header, func(i int) (vm.Value, bool) {
		if i >= len(keys) {
			return nil, false
		}
		return vm.String(keys[i]), true
	}, n.Body)
}

func (e *Executor) execRepeat(n *RepeatStmt) signal {
	e.stmt = n
	v := e.eval(n.Count)
	num, ok := v.(vm.Number)
	if !ok || math.IsNaN(float64(num)) {
		panic(e.fail(vm.RepeatCountMustBeNumber, n.Count.Span(), map[string]any{"type": typeName(v)}))
	}
	count := float64(num)
	if count < 0 {
		panic(e.fail(vm.RepeatCountMustBeNonNegative, n.Count.Span(), map[string]any{"count": vm.FormatNumber(count)}))
	}
	if max := e.policy.LoopLimit(); count > float64(max) {
		panic(e.fail(vm.RepeatCountTooHigh, n.Count.Span(), map[string]any{"max": max}))
	}
	header := vm.Span{Start: n.SpanVal.Start, End: n.Count.Span().End}
	for i := 1; i <= int(count); i++ {
		e.stmt = n
		e.tick(header)
		e.record(header, vm.RepeatStatement, "", vm.Number(i))
		if stop, sig := e.iterate(n.Body); stop {
			return sig
		}
	}
	return signalNone
}

// assignedName names the variable an expression statement writes, if any.
func assignedName(x Expr) string {
	var target Expr
	switch n := x.(type) {
	case *AssignmentExpr:
		target = n.Target
	case *UpdateExpr:
		target = n.Target
	}
	if id, ok := target.(*IdentifierExpr); ok {
		return id.Name
	}
	return ""
}
